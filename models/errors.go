package models

import "fmt"

// Error codes carried by ScrapeError.
const (
	ErrCodeResultsUnavailable = "RESULTS_UNAVAILABLE"
	ErrCodeNavigation         = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash       = "BROWSER_CRASH"
	ErrCodeVisit              = "VISIT_FAILED"
	ErrCodeInvalidInput       = "INVALID_INPUT"
)

// ScrapeError is the internal error type carrying an error code.
// It supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}
