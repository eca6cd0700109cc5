package adapters

import (
	"github.com/sozolabs/sozograph/internal/canonical"
	"github.com/sozolabs/sozograph/passport"
)

// Relational rows probe the same fields as document-store docs plus the
// action/event columns common in audit tables.
var (
	rowTextFields = []string{
		"text", "message", "content", "description", "notes",
		"summary", "title", "name", "status", "action", "event",
	}
	rowTSFields = []string{
		"updated_at", "created_at", "timestamp", "date", "updatedAt", "createdAt",
	}
)

// Relational converts a relational row into an Interaction. When a table
// name is supplied it is recorded in meta and in the source pointer.
func Relational(row map[string]any, table, source, rowID string) passport.Interaction {
	ts, hasTS := canonical.ParseTS(firstOrNil(row, rowTSFields))
	if !hasTS {
		ts = canonical.Now()
	}

	text := pickText(row, rowTextFields)

	id := rowID
	if id == "" {
		id = stringField(row, "id")
	}
	if id == "" {
		id = stringField(row, "_id")
	}
	if id == "" {
		id = canonical.SHA256JSON(row)[:16]
	}

	if source == "" && table != "" {
		source = "relational:" + table
	}

	var meta map[string]any
	if table != "" {
		meta = map[string]any{"table": table}
	}

	return passport.Interaction{
		ID:     id,
		TS:     ts,
		Type:   "relational",
		Text:   text,
		Source: source,
		Data:   row,
		Meta:   meta,
	}
}

// RelationalBatchList converts many rows from one table.
func RelationalBatchList(rows []map[string]any, table string) []passport.Interaction {
	out := make([]passport.Interaction, 0, len(rows))
	for _, row := range rows {
		source := ""
		if table != "" {
			source = "relational:" + table
		}
		out = append(out, Relational(row, table, source, ""))
	}
	return out
}

// RelationalBatchMap converts a {row_id -> row} mapping in sorted id order.
func RelationalBatchMap(rows map[string]map[string]any, table string) []passport.Interaction {
	out := make([]passport.Interaction, 0, len(rows))
	for _, rowID := range sortedKeys(rows) {
		source := ""
		if table != "" {
			source = "relational:" + table + ":" + rowID
		}
		out = append(out, Relational(rows[rowID], table, source, rowID))
	}
	return out
}
