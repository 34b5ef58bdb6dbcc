package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newMappingsCommand(ctx *commandContext) *cobra.Command {
	var sourceID, targetID int64

	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "List mappings for an edition pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := requireEdition(cmd, st, sourceID); err != nil {
				return err
			}
			if err := requireEdition(cmd, st, targetID); err != nil {
				return err
			}

			mappings, err := st.MappingsForPair(cmd.Context(), sourceID, targetID)
			if err != nil {
				return err
			}
			if len(mappings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No mappings for this pair yet. Run `concord align` first.")
				return nil
			}

			rows := make([][]string, 0, len(mappings))
			for _, m := range mappings {
				rows = append(rows, []string{
					m.SourceNumber.String(),
					fmt.Sprintf("[%s, %s]", m.TargetStart, m.TargetEnd),
					fmt.Sprintf("%.3f", m.Confidence),
					string(m.Status),
					m.Algorithm,
				})
			}

			headers := []string{"Source", "Target Range", "Confidence", "Status", "Algorithm"}
			if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					headers, rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			}
			// Piped output stays machine-friendly.
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(headers, "\t"))
			for _, row := range rows {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(row, "\t"))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&sourceID, "source", 0, "Source edition identifier")
	cmd.Flags().Int64Var(&targetID, "target", 0, "Target edition identifier")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
