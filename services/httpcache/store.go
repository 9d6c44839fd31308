package httpcache

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrNotFound is returned by a Store when no entry exists for a key.
var ErrNotFound = errors.New("httpcache: entry not found")

// Entry is one stored response.
type Entry struct {
	Key        string      `json:"key"`
	URL        string      `json:"url"`
	StatusCode int         `json:"statusCode"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	Created    time.Time   `json:"created"`
}

// Store persists cache entries.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
	// DeleteOlderThan removes entries created before cutoff and reports how
	// many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}
