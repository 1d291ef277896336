// Package sqlite is the feed store: a single-file SQLite database holding the
// identifiers of included posts and the firehose resume cursor.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/domain"
	_ "modernc.org/sqlite"
)

// Repository implements domain.PostRepository and domain.CursorRepository
// using SQLite.
type Repository struct {
	db *sql.DB

	// writeMu serializes writers so concurrent upserts from the firehose and
	// the notify endpoint never contend for the database lock.
	writeMu sync.Mutex
}

// Open opens (creating if needed) the database at path, verifies WAL mode and
// applies migrations. The caller should call Close when done.
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Pragmas in the connection string apply to every pooled connection.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// WAL is requested in the DSN; refuse stores where it did not take.
	var journal string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journal); err != nil {
		db.Close()
		return nil, fmt.Errorf("read journal mode: %w", err)
	}
	if journal != "wal" {
		db.Close()
		return nil, fmt.Errorf("feed store needs WAL journal mode, got %q", journal)
	}

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Upsert inserts a post or replaces the revision fields of an existing one.
func (r *Repository) Upsert(ctx context.Context, post *domain.Post) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	query := `
		INSERT INTO posts (uri, cid, author_did, author_label, indexed_at, inserted_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (uri) DO UPDATE SET
			cid = excluded.cid,
			author_label = excluded.author_label,
			indexed_at = excluded.indexed_at,
			inserted_at_epoch = excluded.inserted_at_epoch`

	_, err := r.db.ExecContext(ctx, query,
		post.URI,
		post.CID,
		post.AuthorDID,
		toNullString(post.AuthorLabel),
		post.IndexedAt.UnixMicro(),
		post.InsertedAtEpoch,
	)
	if err != nil {
		return fmt.Errorf("upsert post %s: %w", post.URI, err)
	}
	return nil
}

// Remove deletes a post by URI. Removing an absent post is not an error.
func (r *Repository) Remove(ctx context.Context, uri string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE uri = ?`, uri); err != nil {
		return fmt.Errorf("delete post %s: %w", uri, err)
	}
	return nil
}

// RemoveByAuthor deletes every post by the given author and returns the
// number of rows deleted.
func (r *Repository) RemoveByAuthor(ctx context.Context, did string) (int64, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE author_did = ?`, did)
	if err != nil {
		return 0, fmt.Errorf("delete posts by %s: %w", did, err)
	}
	return res.RowsAffected()
}

// Page returns up to limit posts, newest first, skipping offset rows.
func (r *Repository) Page(ctx context.Context, limit, offset int) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT uri, cid, author_did, author_label, indexed_at, inserted_at_epoch
		FROM posts
		ORDER BY indexed_at DESC, uri DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts (limit=%d, offset=%d): %w", limit, offset, err)
	}
	return scanPosts(rows)
}

// PageAsOf is Page restricted to posts indexed at or before asOf.
func (r *Repository) PageAsOf(ctx context.Context, asOf time.Time, limit, offset int) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT uri, cid, author_did, author_label, indexed_at, inserted_at_epoch
		FROM posts
		WHERE indexed_at <= ?
		ORDER BY indexed_at DESC, uri DESC
		LIMIT ? OFFSET ?`,
		asOf.UnixMicro(), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts (as_of=%v, limit=%d, offset=%d): %w", asOf, limit, offset, err)
	}
	return scanPosts(rows)
}

func scanPosts(rows *sql.Rows) ([]domain.Post, error) {
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var (
			p         domain.Post
			label     sql.NullString
			indexedAt int64
		)
		if err := rows.Scan(&p.URI, &p.CID, &p.AuthorDID, &label, &indexedAt, &p.InsertedAtEpoch); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.AuthorLabel = label.String
		p.IndexedAt = time.UnixMicro(indexedAt).UTC()
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// Count returns the number of stored posts.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// PurgeOlderThan removes posts inserted more than maxAge ago. Returns the
// number of rows deleted.
func (r *Repository) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE inserted_at_epoch < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired posts: %w", err)
	}
	return res.RowsAffected()
}

// GetCursor retrieves the saved firehose cursor for a service.
func (r *Repository) GetCursor(ctx context.Context, service string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM cursors WHERE service = ?`, service,
	).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the firehose cursor for a service.
func (r *Repository) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (service, cursor_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (service) DO UPDATE SET cursor_value = excluded.cursor_value, updated_at = excluded.updated_at`,
		service, cursor, time.Now().Unix(),
	)
	return err
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
