package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for login failures.
var (
	ErrMissingCookies    = errors.New("session: failed to get required cookies")
	ErrLoginFormNotFound = errors.New("session: login form not found")
	ErrLoginRejected     = errors.New("session: login rejected")
	ErrNilFetcher        = errors.New("session: fetcher is nil")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Stages of a login, used in FetchError.
const (
	StageLoginPage = "login_page"
	StageForm      = "form"
	StageSubmit    = "submit"
	StageSettle    = "settle"
	StageHome      = "home"
	StageCookies   = "cookies"
	StageGuard     = "guard"
)

// FetchError reports which stage of a login failed.
type FetchError struct {
	Stage string
	Err   error
}

// Error implements error.
func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("session: %s failed", e.Stage)
	}
	return fmt.Sprintf("session: %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func stageError(stage string, err error) error {
	return &FetchError{Stage: stage, Err: err}
}

// Validate reports a ValidationError for the first missing credential field.
func Validate(identity, secret string) error {
	if strings.TrimSpace(identity) == "" {
		return &ValidationError{Field: "identity"}
	}
	if secret == "" {
		return &ValidationError{Field: "secret"}
	}
	return nil
}

// CountsAgainstSite reports whether err says the login site itself is
// misbehaving. Rejected credentials, invalid input and caller cancellation
// do not count.
func CountsAgainstSite(err error) bool {
	switch {
	case err == nil:
		return false
	case IsValidation(err), errors.Is(err, ErrLoginRejected), errors.Is(err, context.Canceled):
		return false
	}
	return true
}
