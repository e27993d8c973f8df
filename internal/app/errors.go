package app

import (
	"errors"
	"fmt"
)

var (
	ErrMissingInput   = errors.New("missing input")
	ErrMissingMessage = fmt.Errorf("%w: no message provided", ErrMissingInput)
	ErrMissingFile    = fmt.Errorf("%w: no file part", ErrMissingInput)
	ErrEmptyFilename  = fmt.Errorf("%w: no selected file", ErrMissingInput)

	ErrLLMConfig     = errors.New("llm config is invalid")
	ErrAuditDisabled = errors.New("analysis audit is disabled")
)

// UpstreamError wraps any failure of the completion provider. Its message is
// the provider's message, unchanged.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
