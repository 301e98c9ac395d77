package services

import (
	"errors"
	"fmt"
)

// AnalysisError covers every failure of one analysis attempt: capability
// unreachable, non-2xx response, or a response that does not satisfy the
// result schema. It always leaves the project untouched.
type AnalysisError struct {
	Reason string
	Err    error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("analysis failed: %s", e.Reason)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// ChatError covers a failed Oracle turn. The session history keeps the user
// turn but gains no model turn, so the same message can be retried.
type ChatError struct {
	Reason string
	Err    error
}

func (e *ChatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oracle chat failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("oracle chat failed: %s", e.Reason)
}

func (e *ChatError) Unwrap() error { return e.Err }

// ErrContextTooLarge is returned by Session.Send when the fixed context plus
// accumulated history exceeds the capability input bound. The session is left
// unchanged.
var ErrContextTooLarge = errors.New("chat context exceeds capability input limit")

// UploadError is the per-file outcome of a failed ingestion. Sibling files in
// the same batch are not aborted.
type UploadError struct {
	FileName string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed for %s: %v", e.FileName, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
