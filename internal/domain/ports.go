package domain

import (
	"context"
	"time"
)

// PostRepository defines persistence operations for included posts.
type PostRepository interface {
	// Upsert inserts a post or replaces the stored revision of the same URI.
	Upsert(ctx context.Context, post *Post) error

	// Remove deletes a post by its AT-URI. Removing an absent post is a no-op.
	Remove(ctx context.Context, uri string) error

	// PageAsOf returns up to limit posts indexed at or before asOf, newest
	// first, skipping offset rows.
	PageAsOf(ctx context.Context, asOf time.Time, limit, offset int) ([]Post, error)

	// Count returns the number of stored posts.
	Count(ctx context.Context) (int, error)

	// PurgeOlderThan removes posts indexed more than maxAge ago and returns
	// the number of rows deleted.
	PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}

// CursorRepository defines persistence operations for firehose cursors.
type CursorRepository interface {
	// GetCursor retrieves the last-processed firehose cursor for the given
	// service name. Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, service string) (int64, error)

	// UpdateCursor persists the firehose cursor so we can resume on restart.
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// TrustedAuthors answers whether an author belongs to this deployment's own
// user population.
type TrustedAuthors interface {
	// IsTrusted is a lookup against the current snapshot.
	IsTrusted(did string) bool

	// IsTrustedWithRefresh performs a lookup and, on a miss, refreshes the
	// snapshot once and looks again. The error reports a failed refresh.
	IsTrustedWithRefresh(ctx context.Context, did string) (bool, error)

	// Size returns the number of trusted authors in the current snapshot.
	Size() int
}
