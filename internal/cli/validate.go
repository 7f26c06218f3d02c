package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lapor/internal/report"
)

// PayloadError is one schema violation in a payload.
type PayloadError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Errors []PayloadError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [payload-file]",
		Short: "Validate a report payload without saving it",
		Long: `Validate a report payload against the report schema without saving it.

Checks that kecamatan, desa and jenis_bencana are present, that counts are
non-negative integers and that coordinates are numeric. Reads stdin when
payload-file is omitted or "-".`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	payload, err := readPayload(path, cmd.InOrStdin())
	if err != nil {
		return outputValidationErrors(formatter, []PayloadError{{Message: err.Error()}})
	}
	formatter.VerboseLog("Validating %d byte payload", len(payload))

	v, err := report.NewValidator()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load report schema", err)
	}
	if err := v.Validate(payload); err != nil {
		var ve *report.ValidationError
		if errors.As(err, &ve) {
			return outputValidationErrors(formatter, payloadErrorsOf(ve))
		}
		return outputValidationErrors(formatter, []PayloadError{{Message: err.Error()}})
	}

	return outputValidateSuccess(formatter)
}

// payloadErrorsOf converts a validation error to its CLI form.
func payloadErrorsOf(ve *report.ValidationError) []PayloadError {
	line := 0
	if ve.Pos.IsValid() {
		line = ve.Pos.Line()
	}
	return []PayloadError{{Field: ve.Field, Message: ve.Message, Line: line}}
}

// outputValidateSuccess outputs a successful validation result.
func outputValidateSuccess(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Payload is valid")
	return nil
}

// outputValidationErrors outputs validation errors and returns a failure exit.
func outputValidationErrors(formatter *OutputFormatter, errs []PayloadError) error {
	if formatter.Format == "json" {
		_ = formatter.Error(ErrCodeInvalidPayload, "payload validation failed", ValidationResult{
			Valid:  false,
			Errors: errs,
		})
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Payload is invalid")
		for _, e := range errs {
			switch {
			case e.Field != "" && e.Line > 0:
				fmt.Fprintf(formatter.Writer, "  %s (line %d): %s\n", e.Field, e.Line, e.Message)
			case e.Field != "":
				fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Field, e.Message)
			default:
				fmt.Fprintf(formatter.Writer, "  %s\n", e.Message)
			}
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("payload validation failed with %d error(s)", len(errs)))
}
