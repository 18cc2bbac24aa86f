package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/schema"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to out
func NewErrorHandler(out io.Writer, verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     out,
	}
}

func detail(err error, key string) interface{} {
	var pe *errors.PeerError
	if errors.As(err, &pe) {
		return pe.Details[key]
	}
	return nil
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "❌ Configuration not found: %v\n", detail(err, "path"))
		fmt.Fprintf(h.Out, "Create peersync.yml or pass --config.\n")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		if issues, ok := detail(err, "issues").([]schema.Issue); ok && len(issues) > 0 {
			fmt.Fprintf(h.Out, "❌ Configuration does not match the schema:\n")
			for _, is := range issues {
				fmt.Fprintf(h.Out, "  %s: %s\n", is.Path, is.Message)
			}
		} else {
			fmt.Fprintf(h.Out, "❌ %v\n", err)
		}
		fmt.Fprintf(h.Out, "Run 'peersync config schema' to see the accepted keys.\n")

	case errors.ErrCodeEndpointInvalid:
		fmt.Fprintf(h.Out, "❌ Hub endpoint %v is not usable\n", detail(err, "endpoint"))
		fmt.Fprintf(h.Out, "Set hub.endpoint to a ws://, wss://, http:// or https:// URL.\n")

	case errors.ErrCodeConnectFailed:
		fmt.Fprintf(h.Out, "❌ Could not reach the hub at %v\n", detail(err, "endpoint"))

	case errors.ErrCodeDaemonUnavailable:
		fmt.Fprintf(h.Out, "❌ The peersync daemon is not running.\n")
		fmt.Fprintf(h.Out, "Start it with 'peersync daemon start'.\n")

	case errors.ErrCodeInvalidInput:
		fmt.Fprintf(h.Out, "❌ %v\n", err)

	case errors.ErrCodeLedgerPersist, errors.ErrCodeLedgerLoad:
		fmt.Fprintf(h.Out, "❌ Notification storage (%v) failed: %v\n", detail(err, "backend"), err)

	default:
		fmt.Fprintf(h.Out, "❌ Error: %v\n", err)
	}

	if h.Verbose {
		var pe *errors.PeerError
		if errors.As(err, &pe) {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", pe.ToJSON())
		}
	}
	return err
}
