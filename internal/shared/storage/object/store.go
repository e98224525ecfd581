package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound indicates a storage key that does not resolve to an object.
var ErrNotFound = errors.New("object not found")

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Stat(ctx context.Context, storageKey string) error
}

// LinkSigner issues time-limited retrieval URLs for stored objects.
type LinkSigner interface {
	SignDownload(ctx context.Context, storageKey string, expiresIn time.Duration) (url string, expiresAt time.Time, err error)
}
