package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *Error {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// InvalidInput creates an invalid input error for the named operation
func InvalidInput(op, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("%s: %s", op, reason)).
		WithDetail("op", op)
}

// UnknownAction creates an error for an action name outside the closed action set
func UnknownAction(name string) *Error {
	return New(ErrCodeUnknownAction, fmt.Sprintf("unknown action '%s'", name)).
		WithDetail("action", name)
}

// HandlerFailed wraps an error returned or raised by an action handler
func HandlerFailed(action, handler string, err error) *Error {
	return Wrap(err, ErrCodeHandlerFailed, fmt.Sprintf("handler '%s' failed for action '%s'", handler, action)).
		WithDetail("action", action).
		WithDetail("handler", handler)
}

// DependencyCycle reports handlers whose declared ordering cannot be satisfied
func DependencyCycle(action string, handlers []string) *Error {
	return New(ErrCodeDependencyCycle, fmt.Sprintf("handler ordering cycle for action '%s'", action)).
		WithDetail("action", action).
		WithDetail("handlers", handlers)
}

// TabConfig reports a missing or malformed tab configuration entry
func TabConfig(page string, tab int, reason string) *Error {
	return New(ErrCodeTabConfig, fmt.Sprintf("page '%s' tab %d: %s", page, tab, reason)).
		WithDetail("page", page).
		WithDetail("tab", tab)
}

// FetchFailed wraps a data-fetch collaborator failure
func FetchFailed(query string, err error) *Error {
	return Wrap(err, ErrCodeFetchFailed, fmt.Sprintf("fetch failed: %s", query)).
		WithDetail("query", query)
}

// StorageFailed wraps a persistence failure
func StorageFailed(backend string, err error) *Error {
	return Wrap(err, ErrCodeStorageFailed, fmt.Sprintf("%s storage failed", backend)).
		WithDetail("backend", backend)
}
