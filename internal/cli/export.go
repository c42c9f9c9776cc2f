package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/meeting-lifecycle/internal/calendarexport"
	"github.com/example/meeting-lifecycle/internal/recurrence"
)

type exportOptions struct {
	rulePath string
	until    string
	output   string
}

func newExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the planned occurrences of a rule file as an .ics calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.rulePath, "rule", "", "path to a YAML rule file")
	cmd.Flags().StringVar(&opts.until, "until", "", "last date to export (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write to file instead of stdout")
	_ = cmd.MarkFlagRequired("rule")
	return cmd
}

func runExport(rootOpts *RootOptions, opts *exportOptions, w io.Writer) error {
	file, rule, occurrences, err := planOccurrences(rootOpts, opts.rulePath, opts.until, recurrence.DefaultMaxOccurrences)
	if err != nil {
		return err
	}

	summary := file.Summary
	if summary == "" {
		summary = rule.SeriesID
	}
	var buf bytes.Buffer
	entries := calendarexport.FromOccurrences(summary, file.Location, occurrences)
	if err := calendarexport.Encode(&buf, summary, entries, rootOpts.Now()); err != nil {
		return WrapExitError(ExitFailure, "export failed", err)
	}

	if opts.output == "" {
		_, err := buf.WriteTo(w)
		return err
	}
	if err := os.WriteFile(opts.output, buf.Bytes(), 0o644); err != nil {
		return WrapExitError(ExitCommandError, "cannot write "+opts.output, err)
	}
	fmt.Fprintf(w, "wrote %d event(s) to %s\n", len(entries), opts.output)
	return nil
}
