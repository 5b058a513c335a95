package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/prodtrack/errors"
)

// ErrorHandler prints user-facing messages for command errors.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates an error handler writing to out.
func NewErrorHandler(verbose bool, out io.Writer) *ErrorHandler {
	return &ErrorHandler{Verbose: verbose, Out: out}
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "%s Configuration not found. Create prodtrack.yml or pass --config.\n", errorStyle.Render("x"))

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "%s Invalid configuration: %v\n", errorStyle.Render("x"), err)

	case errors.ErrCodeStorageFailed:
		if e, ok := err.(*errors.Error); ok {
			fmt.Fprintf(h.Out, "%s Metrics backend '%v' failed: %v\n", errorStyle.Render("x"), e.Details["backend"], e.Cause)
		} else {
			fmt.Fprintf(h.Out, "%s %v\n", errorStyle.Render("x"), err)
		}

	case errors.ErrCodeFetchFailed:
		if e, ok := err.(*errors.Error); ok {
			fmt.Fprintf(h.Out, "%s List query '%v' failed: %v\n", errorStyle.Render("x"), e.Details["query"], e.Cause)
		} else {
			fmt.Fprintf(h.Out, "%s %v\n", errorStyle.Render("x"), err)
		}

	default:
		fmt.Fprintf(h.Out, "%s Error: %v\n", errorStyle.Render("x"), err)
	}

	if h.Verbose {
		if e, ok := err.(*errors.Error); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", e.ToJSON())
		}
	}
	return err
}
