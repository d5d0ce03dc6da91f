// Package cache keeps fetched filing documents in a SQLite database.
// Submission documents never change once published, so entries do not expire.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bighogz/secform/internal/httpclient"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	url        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	fetched_at TEXT NOT NULL
);`

type Store struct {
	db *sql.DB
}

// Open creates or opens the cache at path. ":memory:" gives a private
// in-process cache.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	// single connection: required for :memory: and avoids SQLITE_BUSY between workers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Document is a cached response body and when it was stored.
type Document struct {
	Body      []byte
	FetchedAt time.Time
}

func (s *Store) Get(ctx context.Context, url string) (Document, bool, error) {
	var (
		doc Document
		ts  string
	)
	err := s.db.QueryRowContext(ctx, `SELECT body, fetched_at FROM documents WHERE url = ?`, url).Scan(&doc.Body, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	if doc.FetchedAt, err = time.Parse(time.RFC3339, ts); err != nil {
		return Document{}, false, fmt.Errorf("cached %s: bad fetched_at %q: %w", url, ts, err)
	}
	return doc, true, nil
}

func (s *Store) Put(ctx context.Context, url string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (url, body, fetched_at) VALUES (?, ?, ?)`,
		url, body, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Fetcher reads through the store before falling back to Next.
// Store failures are logged and never fail a fetch.
type Fetcher struct {
	Next  httpclient.Fetcher
	Store *Store
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	doc, ok, err := f.Store.Get(ctx, url)
	if err != nil {
		slog.WarnContext(ctx, "cache read failed", "url", url, "error", err)
	} else if ok {
		slog.DebugContext(ctx, "cache hit", "url", url, "age", time.Since(doc.FetchedAt).Round(time.Second))
		return doc.Body, nil
	}

	body, err := f.Next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := f.Store.Put(ctx, url, body); err != nil {
		slog.WarnContext(ctx, "cache write failed", "url", url, "error", err)
	}
	return body, nil
}
