package generation

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest  = errors.New("invalid generation request")
	ErrInvalidResponse = errors.New("invalid generation response")
)

// ServiceError is a non-2xx reply from the remote generation service.
type ServiceError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("generation service %s returned %d: %s", e.Operation, e.StatusCode, body)
}

// Temporary reports whether retrying the same request later may succeed.
func (e *ServiceError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// StageError records which LLM stage failed and after how many attempts.
type StageError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
