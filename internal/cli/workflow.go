package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/meeting-lifecycle/internal/workflow"
)

type lintResult struct {
	Valid       bool             `json:"valid"`
	Definitions []lintDefinition `json:"definitions,omitempty"`
}

type lintDefinition struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Mandatory  bool     `json:"mandatory"`
	Validators []string `json:"validators"`
}

func newWorkflowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Work with approval workflow catalogs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "lint <catalog.yaml>",
		Short: "Validate a workflow catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(rootOpts, args[0], cmd.OutOrStdout())
		},
	})
	return cmd
}

func runLint(rootOpts *RootOptions, path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot open "+path, err)
	}
	defer f.Close()

	defs, err := workflow.LoadCatalog(f)
	if err != nil {
		if rootOpts.Format == "json" {
			if werr := writeFailure(w, err.Error(), nil); werr != nil {
				return werr
			}
		} else {
			fmt.Fprintf(w, "✗ %s: %v\n", path, err)
		}
		return WrapExitError(ExitFailure, "catalog is invalid", err)
	}

	result := lintResult{Valid: true}
	for _, def := range defs {
		ld := lintDefinition{ID: def.ID, Name: def.Name, Mandatory: def.Mandatory}
		for _, step := range def.Steps {
			ld.Validators = append(ld.Validators, step.ValidatorID)
		}
		result.Definitions = append(result.Definitions, ld)
	}

	if rootOpts.Format == "json" {
		return writeSuccess(w, result)
	}
	for _, def := range result.Definitions {
		mandatory := ""
		if def.Mandatory {
			mandatory = " [mandatory]"
		}
		fmt.Fprintf(w, "%s%s: %d step(s)", def.ID, mandatory, len(def.Validators))
		for i, v := range def.Validators {
			fmt.Fprintf(w, " %d=%s", i+1, v)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "✓ %d definition(s) valid\n", len(result.Definitions))
	return nil
}
