package uploads

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores upload metadata in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byKey  map[string]Upload
	byUser map[string][]Upload
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byKey:  make(map[string]Upload),
		byUser: make(map[string][]Upload),
	}
}

// Create stores the upload metadata.
func (r *MemoryRepo) Create(ctx context.Context, upload Upload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[upload.Key] = upload
	r.byUser[upload.UserID] = append(r.byUser[upload.UserID], upload)
	return nil
}

// GetByKey returns an upload owned by the given user.
func (r *MemoryRepo) GetByKey(ctx context.Context, userID, key string) (Upload, error) {
	if err := ctx.Err(); err != nil {
		return Upload{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	upload, ok := r.byKey[key]
	if !ok || upload.UserID != userID {
		return Upload{}, ErrNotFound
	}
	return upload, nil
}

// ListByUser returns a user's uploads, newest first, optionally filtered by category.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID, category string, limit, offset int) ([]Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	all := r.byUser[userID]
	r.mu.RUnlock()

	filtered := make([]Upload, 0, len(all))
	for _, u := range all {
		if category != "" && u.Category != category {
			continue
		}
		filtered = append(filtered, u)
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if offset >= len(filtered) {
		return []Upload{}, nil
	}
	end := len(filtered)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return filtered[offset:end], nil
}

var _ Repo = (*MemoryRepo)(nil)
