package core

import "fmt"

// ValidationError reports a request rejected before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// GatewayError reports a model call that failed in a stage where failure is
// user-visible (the primary stream, a judge dossier, a follow-up answer).
//
// Message, when set, replaces the generated text and is safe to show users.
type GatewayError struct {
	Stage   string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Stage)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
