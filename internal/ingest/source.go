package ingest

import "context"

// Source streams raw payloads for ingestion. Each Item goes through the
// coalescer with its own hint and meta.
type Source interface {
	// Type returns the source type identifier (e.g. "markdown", "sqlite").
	Type() string
	// Scan returns a channel of items to ingest. The channel closes when the
	// source is exhausted or ctx is cancelled.
	Scan(ctx context.Context) (<-chan Item, error)
}

// Item is one raw payload from a Source.
type Item struct {
	Payload any
	Hint    string
	Meta    map[string]any
}
