package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/firedoc/internal/core"
)

func purposeLabel(p core.TargetPurpose) string {
	switch p {
	case core.PurposeListen:
		return "listen"
	case core.PurposeLimboResolution:
		return "limbo-resolution"
	case core.PurposeExistenceFilterMismatch:
		return "existence-filter-mismatch"
	default:
		return "unknown"
	}
}

func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List every persisted listen target",
		RunE:  runTargets,
	}
}

func runTargets(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())

	targets, err := cc.Store.ListTargets(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no active targets")
		return nil
	}

	for _, td := range targets {
		scope := td.Target.CollectionPath.String()
		if td.Target.IsCollectionGroup() {
			scope = "group:" + td.Target.CollectionGroup
		}

		fmt.Fprintf(cmd.OutOrStdout(), "target %-4d seq=%-6d purpose=%-28s scope=%s resume_token=%d bytes\n",
			td.TargetID, td.SequenceNumber, purposeLabel(td.Purpose), scope, len(td.ResumeToken))
	}

	return nil
}
