package qiita

import "fmt"

// Error represents a failure talking to the Qiita server.
type Error struct {
	Endpoint string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("qiita error for %s: %s: %v", e.Endpoint, e.Message, e.Cause)
	}
	return fmt.Sprintf("qiita error for %s: %s", e.Endpoint, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
