package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"concord/internal/derive"
	"concord/internal/runner"
)

func newDeriveCommand(ctx *commandContext) *cobra.Command {
	var sourceID, pivotID, targetID int64

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive mappings across a pivot edition",
		Long: `Derive compose existing mappings instead of running an aligner: when the
source edition is already mapped into the pivot and the pivot into the target,
each source segment inherits the target ranges its pivot range overlaps, with
confidence discounted by both mapping confidences and the overlap.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if sourceID == targetID || sourceID == pivotID || pivotID == targetID {
				return fmt.Errorf("source, pivot, and target editions must all differ")
			}

			lock, err := runner.Acquire(cfg.LockPath())
			if err != nil {
				return err
			}
			defer lock.Release()

			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			for _, id := range []int64{sourceID, pivotID, targetID} {
				if err := requireEdition(cmd, st, id); err != nil {
					return err
				}
			}

			deriver := derive.New(st, ctx.policyValue(), logger)
			summary, err := deriver.Run(cmd.Context(), sourceID, pivotID, targetID)
			if err != nil {
				return err
			}
			printSummary(cmd, "derive", summary)
			return nil
		},
	}

	cmd.Flags().Int64Var(&sourceID, "source", 0, "Source edition identifier")
	cmd.Flags().Int64Var(&pivotID, "pivot", 0, "Pivot edition identifier")
	cmd.Flags().Int64Var(&targetID, "target", 0, "Target edition identifier")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("pivot")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
