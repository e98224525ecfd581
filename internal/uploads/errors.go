package uploads

import "errors"

var (
	// ErrNotFound indicates the upload does not exist or belongs to another user.
	ErrNotFound = errors.New("upload not found")
	// ErrInvalidInput indicates the request failed validation.
	ErrInvalidInput = errors.New("invalid upload input")
)
