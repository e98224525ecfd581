package local

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tailor-backend/internal/shared/storage/object"
	"tailor-backend/internal/shared/util"
)

// Store implements ObjectStore using the local filesystem. Download links are
// HMAC-signed paths served by whatever fronts the data directory in dev.
type Store struct {
	baseDir    string
	signingKey []byte
	now        func() time.Time
}

// New creates a new local object store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{
		baseDir:    baseDir,
		signingKey: []byte(util.HashUserKey(baseDir)),
		now:        time.Now,
	}
}

// SaveWithKey writes the reader to disk at a specific storage key.
func (s *Store) SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	clean, err := cleanKey(storageKey)
	if err != nil {
		return 0, err
	}

	fullPath := filepath.Join(s.baseDir, clean)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		return 0, fmt.Errorf("write body: %w", err)
	}
	_ = contentType
	return written, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean, err := cleanKey(storageKey)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.baseDir, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, object.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Stat reports whether a stored object exists at the given key.
func (s *Store) Stat(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	clean, err := cleanKey(storageKey)
	if err != nil {
		return err
	}

	info, err := os.Stat(filepath.Join(s.baseDir, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return object.ErrNotFound
		}
		return err
	}
	if info.IsDir() {
		return object.ErrNotFound
	}
	return nil
}

// SignDownload returns a relative signed URL for dev serving of local objects.
func (s *Store) SignDownload(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	if err := s.Stat(ctx, storageKey); err != nil {
		return "", time.Time{}, err
	}

	expiresAt := s.now().UTC().Add(expiresIn)
	sig := s.sign(storageKey, expiresAt.Unix())

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expiresAt.Unix(), 10))
	q.Set("sig", sig)
	return "/local-objects/" + url.PathEscape(storageKey) + "?" + q.Encode(), expiresAt, nil
}

func (s *Store) sign(storageKey string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	fmt.Fprintf(mac, "%s|%d", storageKey, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}

func cleanKey(storageKey string) (string, error) {
	clean := filepath.Clean(storageKey)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key")
	}
	return clean, nil
}

var (
	_ object.ObjectStore = (*Store)(nil)
	_ object.LinkSigner  = (*Store)(nil)
)
