package uploads

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"time"

	"tailor-backend/internal/shared/storage/object"
	"tailor-backend/internal/shared/util"
)

const maxUploadBytes = 5 << 20

// Service validates incoming uploads, writes bytes to the object store and
// records metadata in the repo.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	Now   func() time.Time
}

// SaveInput is a decoded upload request.
type SaveInput struct {
	UserID        string
	Category      string
	FileName      string
	ContentType   string
	ContentBase64 string
}

// Save stores a new upload and returns its metadata. Validation failures are
// reported before any bytes reach storage.
func (s *Service) Save(ctx context.Context, input SaveInput) (Upload, error) {
	category, err := ParseCategory(input.Category)
	if err != nil {
		return Upload{}, err
	}

	fileName, err := util.SanitizeFileName(input.FileName)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	content, err := base64.StdEncoding.DecodeString(input.ContentBase64)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: content is not valid base64", ErrInvalidInput)
	}
	if len(content) == 0 {
		return Upload{}, fmt.Errorf("%w: content is empty", ErrInvalidInput)
	}
	if len(content) > maxUploadBytes {
		return Upload{}, fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidInput, maxUploadBytes)
	}

	key := path.Join(category, util.HashUserKey(input.UserID), util.RandomID()+"_"+fileName)

	written, err := s.Store.SaveWithKey(ctx, key, input.ContentType, bytes.NewReader(content))
	if err != nil {
		return Upload{}, fmt.Errorf("store upload: %w", err)
	}

	upload := Upload{
		Key:         key,
		UserID:      input.UserID,
		Category:    category,
		FileName:    fileName,
		ContentType: input.ContentType,
		SizeBytes:   written,
		CreatedAt:   s.now(),
	}
	if err := s.Repo.Create(ctx, upload); err != nil {
		return Upload{}, fmt.Errorf("record upload: %w", err)
	}
	return upload, nil
}

// Get returns an upload owned by the user.
func (s *Service) Get(ctx context.Context, userID, key string) (Upload, error) {
	return s.Repo.GetByKey(ctx, userID, key)
}

// List returns a user's uploads, optionally filtered by category.
func (s *Service) List(ctx context.Context, userID, category string, limit, offset int) ([]Upload, error) {
	if category != "" {
		parsed, err := ParseCategory(category)
		if err != nil {
			return nil, err
		}
		category = parsed
	}
	return s.Repo.ListByUser(ctx, userID, category, limit, offset)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
