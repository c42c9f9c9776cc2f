package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/meeting-lifecycle/internal/availability"
)

type slotsOptions struct {
	busyPath     string
	participants []string
	from         string
	to           string
	duration     int
}

type slotResult struct {
	Participants []string     `json:"participants"`
	Duration     int          `json:"duration_minutes"`
	Slots        []slotWindow `json:"slots"`
}

type slotWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func newSlotsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &slotsOptions{}
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Find common free windows from a YAML busy file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSlots(cmd.Context(), rootOpts, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.busyPath, "busy", "", "path to a YAML file listing busy intervals")
	cmd.Flags().StringSliceVar(&opts.participants, "participants", nil, "comma separated participant ids")
	cmd.Flags().StringVar(&opts.from, "from", "", "search start (RFC 3339)")
	cmd.Flags().StringVar(&opts.to, "to", "", "search end (RFC 3339)")
	cmd.Flags().IntVar(&opts.duration, "duration", 30, "slot length in minutes")
	_ = cmd.MarkFlagRequired("participants")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func runSlots(ctx context.Context, rootOpts *RootOptions, opts *slotsOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	from, err := time.Parse(time.RFC3339, opts.from)
	if err != nil {
		return NewExitError(ExitCommandError, "--from must be RFC 3339")
	}
	to, err := time.Parse(time.RFC3339, opts.to)
	if err != nil {
		return NewExitError(ExitCommandError, "--to must be RFC 3339")
	}
	source, err := loadBusy(opts.busyPath)
	if err != nil {
		return err
	}

	index := availability.NewIndex(source)
	slots, err := index.FindAvailableSlots(ctx, opts.participants, from, to, opts.duration)
	if err != nil {
		return WrapExitError(ExitFailure, "slot search failed", err)
	}

	if rootOpts.Format == "json" {
		result := slotResult{Participants: opts.participants, Duration: opts.duration, Slots: make([]slotWindow, 0, len(slots))}
		for _, s := range slots {
			result.Slots = append(result.Slots, slotWindow{Start: s.Start, End: s.End})
		}
		return writeSuccess(w, result)
	}

	for _, s := range slots {
		start := s.Start.In(rootOpts.location)
		end := s.End.In(rootOpts.location)
		fmt.Fprintf(w, "%s  %s-%s\n", start.Format("2006-01-02 Mon"), start.Format("15:04"), end.Format("15:04 MST"))
	}
	fmt.Fprintf(w, "%d slot(s) of %d minutes for %s\n", len(slots), opts.duration, strings.Join(opts.participants, ", "))
	return nil
}
