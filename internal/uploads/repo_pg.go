package uploads

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts upload metadata.
func (r *PGRepo) Create(ctx context.Context, upload Upload) error {
	const query = `
INSERT INTO uploads (key, user_id, category, file_name, content_type, size_bytes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.ExecContext(ctx, query,
		upload.Key,
		upload.UserID,
		upload.Category,
		upload.FileName,
		upload.ContentType,
		upload.SizeBytes,
		upload.CreatedAt,
	)
	return err
}

// GetByKey returns an upload owned by the given user.
func (r *PGRepo) GetByKey(ctx context.Context, userID, key string) (Upload, error) {
	const query = `
SELECT key, user_id, category, file_name, content_type, size_bytes, created_at
FROM uploads
WHERE key = $1 AND user_id = $2
LIMIT 1`
	var u Upload
	err := r.DB.QueryRowContext(ctx, query, key, userID).Scan(
		&u.Key,
		&u.UserID,
		&u.Category,
		&u.FileName,
		&u.ContentType,
		&u.SizeBytes,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Upload{}, ErrNotFound
		}
		return Upload{}, err
	}
	return u, nil
}

// ListByUser lists uploads for a user ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID, category string, limit, offset int) ([]Upload, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	const query = `
SELECT key, user_id, category, file_name, content_type, size_bytes, created_at
FROM uploads
WHERE user_id = $1 AND ($2::text = '' OR category = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

	rows, err := r.DB.QueryContext(ctx, query, userID, category, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		var u Upload
		if err := rows.Scan(
			&u.Key,
			&u.UserID,
			&u.Category,
			&u.FileName,
			&u.ContentType,
			&u.SizeBytes,
			&u.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
