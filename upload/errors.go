package upload

import (
	"errors"
	"fmt"
)

var (
	ErrUploadInFlight   = errors.New("an upload is already in progress")
	ErrAlreadyCommitted = errors.New("this file has already been uploaded")
)

// ValidationError reports input rejected before anything remote was tried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type Op string

const (
	OpUpload Op = "upload"
	OpInsert Op = "insert"
)

// RemoteError is a failed remote step. Compensation holds the error from
// undoing earlier steps, if that failed too.
type RemoteError struct {
	Op           Op
	Err          error
	Compensation error
}

func (e *RemoteError) Error() string {
	var msg string

	switch e.Op {
	case OpUpload:
		msg = fmt.Sprintf("failed to upload file: %v", e.Err)
	case OpInsert:
		msg = fmt.Sprintf("failed to create lesson record: %v", e.Err)
	default:
		msg = fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}

	if e.Compensation != nil {
		msg += fmt.Sprintf(" (cleanup also failed: %v)", e.Compensation)
	}

	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
