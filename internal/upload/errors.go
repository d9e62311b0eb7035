package upload

import "fmt"

// Validation and concurrency reasons.
const (
	ReasonNoFiles        = "no-files"
	ReasonNoAssociation  = "no-association"
	ReasonAlreadyRunning = "already-running"
)

// ValidationError is returned before any I/O when the selection cannot be uploaded.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// TransferError is returned when one file's upload failed. Later files were not attempted.
type TransferError struct {
	FileIndex int // 0-based
	FileName  string
	Cause     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("upload of file %d (%s) failed: %v", e.FileIndex+1, e.FileName, e.Cause)
}

func (e *TransferError) Unwrap() error {
	return e.Cause
}

// NotificationError is returned when every file uploaded but the completion webhook failed.
type NotificationError struct {
	Cause error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("completion notification failed: %v", e.Cause)
}

func (e *NotificationError) Unwrap() error {
	return e.Cause
}

// ConcurrencyError is returned when Run is called while a batch is in flight.
type ConcurrencyError struct {
	Reason string
}

func (e *ConcurrencyError) Error() string {
	return "upload rejected: " + e.Reason
}
