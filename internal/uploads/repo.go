package uploads

import "context"

// Repo persists upload metadata. The bytes themselves live in the object store.
type Repo interface {
	Create(ctx context.Context, upload Upload) error
	GetByKey(ctx context.Context, userID, key string) (Upload, error)
	ListByUser(ctx context.Context, userID, category string, limit, offset int) ([]Upload, error)
}
