package core

import (
	"errors"
	"fmt"
)

// Failure taxonomy surfaced to API callers. Each maps to a distinct HTTP
// status in the handler layer; internal storage and network errors are
// wrapped as ErrUnavailable instead of leaking their detail.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrBusy             = errors.New("an ingestion is already in progress")
	ErrEmbeddingFailure = errors.New("embedding failure")
	ErrUnavailable      = errors.New("service unavailable")
)

// UnsupportedFormatError reports an upload with a file extension no loader
// handles. The offending extension is part of the message.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type: %q", e.Ext)
}
