package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c360studio/tagmirror/workflow"
)

func newPlanCommand(a *app) *cobra.Command {
	f := &replicateFlags{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a replication would create, without creating anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPlan(cmd, f)
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) runPlan(cmd *cobra.Command, f *replicateFlags) error {
	source, target, err := a.openWorkspaces(f)
	if err != nil {
		return err
	}
	opts, err := a.buildOptions(f)
	if err != nil {
		return err
	}
	opts.DryRun = true

	result := workflow.NewOrchestrator(source, target, nil, opts, nil, a.logger).Run(cmd.Context())

	out := cmd.OutOrStdout()
	if f.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Plan)
	}
	if !result.Success {
		for _, e := range result.Errors {
			fmt.Fprintf(out, "! [%s] %s\n", e.Kind, e.Message)
		}
		return fmt.Errorf("planning failed")
	}

	fmt.Fprintf(out, "Plan: %d to create, %d to skip\n",
		result.Plan.CreateCount(), result.Plan.SkipCount())
	for i, step := range result.Plan.Steps {
		h := step.Entity.Header()
		switch step.Action {
		case workflow.ActionSkip:
			fmt.Fprintf(out, "%3d. SKIP   %s %q (already %s in target)\n", i+1, h.Kind, h.Name, step.TargetID)
		default:
			name := step.NewName
			if name == h.Name {
				fmt.Fprintf(out, "%3d. CREATE %s %q\n", i+1, h.Kind, h.Name)
			} else {
				fmt.Fprintf(out, "%3d. CREATE %s %q as %q\n", i+1, h.Kind, h.Name, name)
			}
		}
	}
	for _, w := range result.Plan.Warnings {
		fmt.Fprintf(out, "  ~ %s\n", w)
	}
	return nil
}
