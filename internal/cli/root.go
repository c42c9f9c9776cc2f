// Package cli implements meetingctl, an offline companion to the scheduler
// service for planning series, searching slots and checking workflow catalogs.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format   string // "json" | "text"
	Timezone string
	// Now stamps exported calendars. Tests pin it.
	Now func() time.Time

	location *time.Location
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the meetingctl root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Now: time.Now})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cmd := &cobra.Command{
		Use:           "meetingctl",
		Short:         "Plan meeting series and approval workflows offline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			loc, err := time.LoadLocation(opts.Timezone)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid timezone", err)
			}
			opts.location = loc
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Timezone, "timezone", "UTC", "default time zone for rules without one and for text output")

	cmd.AddCommand(newPlanCommand(opts))
	cmd.AddCommand(newSlotsCommand(opts))
	cmd.AddCommand(newWorkflowCommand(opts))
	cmd.AddCommand(newExportCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
