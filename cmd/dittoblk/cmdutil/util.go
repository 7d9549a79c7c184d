// Package cmdutil provides shared utilities for dittoblk client commands.
package cmdutil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/marmos91/dittoblk/internal/cli/output"
	"github.com/marmos91/dittoblk/internal/cli/prompt"
	"github.com/marmos91/dittoblk/pkg/apiclient"
)

// EnvServerURL overrides the default API address.
const EnvServerURL = "DITTOBLK_SERVER"

// DefaultServerURL is used when neither --server nor DITTOBLK_SERVER is set.
const DefaultServerURL = "http://localhost:8080"

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ServerURL string
	Output    string
	NoColor   bool
	Verbose   bool
	Timeout   time.Duration
}

// ServerURL resolves the API address from the flag, the environment and
// the default, in that order.
func ServerURL() string {
	if Flags.ServerURL != "" {
		return Flags.ServerURL
	}
	if env := os.Getenv(EnvServerURL); env != "" {
		return env
	}
	return DefaultServerURL
}

// GetClient returns an API client for the configured server.
func GetClient() *apiclient.Client {
	client := apiclient.New(ServerURL())
	if Flags.Timeout > 0 {
		client = client.WithTimeout(Flags.Timeout)
	}
	return client
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// IsColorDisabled returns whether color output is disabled.
func IsColorDisabled() bool {
	return Flags.NoColor
}

// IsVerbose returns whether verbose output is enabled.
func IsVerbose() bool {
	return Flags.Verbose
}

// PrintOutput renders data in the selected output format. In table format
// emptyMsg is printed instead of a table without rows.
func PrintOutput(w io.Writer, data any, emptyMsg string, table output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}
	return output.Render(w, format, data, table, emptyMsg)
}

// PrintResource renders a single resource in the selected output format.
func PrintResource(w io.Writer, data any, table output.TableRenderer) error {
	return PrintOutput(w, data, "", table)
}

// PrintSuccess prints a confirmation line in table format only, so JSON and
// YAML output stay machine readable.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	output.Success(os.Stdout, !IsColorDisabled(), msg)
}

// RunWithConfirmation asks for confirmation (unless force is true) and runs fn.
// A declined or aborted prompt is not an error.
func RunWithConfirmation(label string, force bool, fn func() error) error {
	confirmed, err := prompt.ConfirmWithForce(label, force)
	if err != nil {
		return HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}
	return fn()
}

// ParseCommaSeparatedList parses a comma-separated string into a slice of trimmed strings.
func ParseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

// BoolToYesNo converts a boolean to "yes" or "no" string.
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// EmptyOr returns the value if not empty, otherwise returns the fallback.
// Useful for table display where empty fields should show "-".
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// HandleAbort checks if error is an abort (Ctrl+C) and prints a message.
// Returns nil for abort (user cancelled), otherwise returns the original error.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}

// ErrorMessage formats a command error for stderr. With --verbose, API
// errors also show the HTTP status and problem type.
func ErrorMessage(err error) string {
	msg := fmt.Sprintf("Error: %v", err)

	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return msg
	}
	if apiErr.IsUnsupported() {
		msg += "\nThe driver of this disk does not implement the operation."
	}
	if IsVerbose() {
		msg += fmt.Sprintf("\n  status: %d %s", apiErr.StatusCode, http.StatusText(apiErr.StatusCode))
		if apiErr.Type != "" {
			msg += "\n  type:   " + apiErr.Type
		}
	}
	return msg
}
