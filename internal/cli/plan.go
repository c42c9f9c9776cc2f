package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/meeting-lifecycle/internal/recurrence"
)

type planOptions struct {
	rulePath string
	until    string
	max      int
}

type plannedOccurrence struct {
	Date  string    `json:"date"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type planResult struct {
	SeriesID    string              `json:"series_id"`
	RuleID      string              `json:"rule_id"`
	Occurrences []plannedOccurrence `json:"occurrences"`
}

func newPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &planOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "List the occurrences a rule file would generate",
		Long: `Expand a recurrence rule file without touching any store.

The rule end date bounds the expansion; --until bounds it further and is
required for rules without an end date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.rulePath, "rule", "", "path to a YAML rule file")
	cmd.Flags().StringVar(&opts.until, "until", "", "last date to plan (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.max, "max", recurrence.DefaultMaxOccurrences, "maximum number of occurrences")
	_ = cmd.MarkFlagRequired("rule")
	return cmd
}

func planOccurrences(rootOpts *RootOptions, rulePath, until string, max int) (ruleFile, recurrence.Rule, []recurrence.Occurrence, error) {
	file, rule, err := loadRule(rulePath)
	if err != nil {
		return ruleFile{}, recurrence.Rule{}, nil, err
	}
	rangeEnd, err := parseDateFlag("until", until)
	if err != nil {
		return ruleFile{}, recurrence.Rule{}, nil, err
	}

	engine := recurrence.NewEngine(rootOpts.location, recurrence.WithMaxOccurrences(max))
	occurrences, err := engine.Plan(rule, rangeEnd)
	switch {
	case errors.Is(err, recurrence.ErrUnboundedGeneration):
		return ruleFile{}, recurrence.Rule{}, nil, NewExitError(ExitFailure, "rule has no end date; pass --until")
	case err != nil:
		return ruleFile{}, recurrence.Rule{}, nil, WrapExitError(ExitFailure, "planning failed", err)
	}
	return file, rule, occurrences, nil
}

func runPlan(rootOpts *RootOptions, opts *planOptions, w io.Writer) error {
	_, rule, occurrences, err := planOccurrences(rootOpts, opts.rulePath, opts.until, opts.max)
	if err != nil {
		return err
	}

	if rootOpts.Format == "json" {
		result := planResult{SeriesID: rule.SeriesID, RuleID: rule.ID, Occurrences: make([]plannedOccurrence, 0, len(occurrences))}
		for _, occ := range occurrences {
			result.Occurrences = append(result.Occurrences, plannedOccurrence{
				Date:  occ.Date.Format(time.DateOnly),
				Start: occ.Start,
				End:   occ.End,
			})
		}
		return writeSuccess(w, result)
	}

	for _, occ := range occurrences {
		fmt.Fprintf(w, "%s  %s-%s\n",
			occ.Date.Format("2006-01-02 Mon"),
			occ.Start.Format("15:04"),
			occ.End.Format("15:04 MST"),
		)
	}
	fmt.Fprintf(w, "%d occurrence(s) for series %s (rule %s)\n", len(occurrences), rule.SeriesID, rule.ID)
	return nil
}
