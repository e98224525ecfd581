package jobs

import "errors"

var (
	// ErrNotFound indicates the job does not exist.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidInput indicates the submission failed validation.
	ErrInvalidInput = errors.New("invalid job input")
	// ErrForbidden indicates the viewer does not own the job.
	ErrForbidden = errors.New("job belongs to another user")
	// ErrPrecondition indicates the job is not in a state that allows the operation.
	ErrPrecondition = errors.New("job state does not allow this operation")
	// ErrTerminal indicates a status transition was rejected because the job
	// already reached a terminal state.
	ErrTerminal = errors.New("job already in terminal state")
)

const (
	ErrorCodeValidation        = "VALIDATION_ERROR"
	ErrorCodeLLMTimeout        = "LLM_TIMEOUT"
	ErrorCodeLLMSchemaMismatch = "LLM_SCHEMA_MISMATCH"
	ErrorCodeStorage           = "STORAGE_ERROR"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)
