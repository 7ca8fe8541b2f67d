package lead

import (
	"context"
	"time"
)

// Repository persists leads.
type Repository interface {
	// InsertMany writes all leads in one batch, skipping rows whose place ID
	// already exists. It returns the number of rows actually inserted.
	InsertMany(ctx context.Context, leads []Lead) (int64, error)
	// ListRecent returns the newest leads first.
	ListRecent(ctx context.Context, limit int) ([]StoredLead, error)
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Publisher pushes lead events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces lead IDs.
type IDGenerator interface {
	NewID() (string, error)
}
