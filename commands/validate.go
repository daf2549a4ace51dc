package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c360studio/tagmirror/workflow/validation"
)

func newValidateCommand(a *app) *cobra.Command {
	var (
		file    string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a workspace snapshot for broken references",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, file, jsonOut)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Workspace snapshot to check (JSON)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit findings as JSON")
	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, file string, jsonOut bool) error {
	path, err := resolveSnapshotPath(file, a.cfg.Target, "target")
	if err != nil {
		// Fall back to --file only wording; this command takes any snapshot.
		return fmt.Errorf("no snapshot to check: pass --file")
	}

	snap, err := loadSnapshot(path)
	if err != nil {
		return err
	}

	issues := validation.CheckIntegrity(snap)
	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(issues); err != nil {
			return err
		}
	} else if len(issues) == 0 {
		fmt.Fprintf(out, "OK: %d entities, no broken references\n", snap.Count())
	} else {
		for _, issue := range issues {
			fmt.Fprintf(out, "%s %q -> %s: %s\n", issue.Kind, issue.Name, issue.Reference, issue.Details)
		}
	}

	if len(issues) > 0 {
		return fmt.Errorf("%d broken reference(s)", len(issues))
	}
	return nil
}
