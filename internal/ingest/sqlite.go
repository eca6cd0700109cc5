package ingest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sozolabs/sozograph/internal/logging"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSource streams rows from a SQLite table as relational payloads. Each
// row becomes one envelope {"table": ..., "row": {...}} so the coalescer
// treats it like any other relational input.
type SQLiteSource struct {
	dbPath string
	table  string
	query  string
}

// NewSQLiteSource creates a source over dbPath reading from table. query
// overrides the default SELECT * when set.
func NewSQLiteSource(dbPath, table, query string) *SQLiteSource {
	return &SQLiteSource{dbPath: dbPath, table: table, query: query}
}

// Type returns the source type identifier
func (s *SQLiteSource) Type() string {
	return "sqlite"
}

// Scan opens the database and streams rows.
func (s *SQLiteSource) Scan(ctx context.Context) (<-chan Item, error) {
	db, err := sql.Open("sqlite3", s.dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	query := s.query
	if query == "" {
		query = fmt.Sprintf("SELECT * FROM %q", s.table)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		db.Close()
		return nil, fmt.Errorf("read columns: %w", err)
	}

	ch := make(chan Item)

	go func() {
		defer close(ch)
		defer db.Close()
		defer rows.Close()

		count := 0
		for rows.Next() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			row, err := scanRow(rows, cols)
			if err != nil {
				logging.L_warn("ingest: failed to scan row", "table", s.table, "error", err)
				continue
			}

			item := Item{
				Payload: map[string]any{"table": s.table, "row": row},
				Hint:    HintRelational,
				Meta: map[string]any{
					"source": "sqlite:" + s.dbPath + ":" + s.table,
					"table":  s.table,
				},
			}

			select {
			case ch <- item:
				count++
			case <-ctx.Done():
				return
			}
		}
		if err := rows.Err(); err != nil {
			logging.L_warn("ingest: row iteration failed", "table", s.table, "error", err)
		}

		logging.L_info("ingest: sqlite scan complete", "table", s.table, "rows", count)
	}()

	return ch, nil
}

// scanRow reads the current row into a column-keyed map. BLOBs and text come
// back as []byte from the driver; both are stringified.
func scanRow(rows *sql.Rows, cols []string) (map[string]any, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(map[string]any, len(cols))
	for i, col := range cols {
		switch v := vals[i].(type) {
		case []byte:
			row[col] = string(v)
		case nil:
			// Omit NULLs; adapters probe for present fields only.
		default:
			row[col] = v
		}
	}
	return row, nil
}
