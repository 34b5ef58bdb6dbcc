package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"concord/internal/store"
)

var titleCaser = cases.Title(language.English)

func newEditionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "editions",
		Short: "List registered editions",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			editions, err := st.ListEditions(cmd.Context())
			if err != nil {
				return err
			}
			if len(editions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No editions registered. Use `concord import` to load one.")
				return nil
			}

			rows := make([][]string, 0, len(editions))
			for _, edition := range editions {
				segments := ""
				if min, max, ok, err := st.EditionBounds(cmd.Context(), edition.ID); err == nil && ok {
					segments = fmt.Sprintf("%s to %s", min, max)
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", edition.ID),
					edition.Title,
					titleCaser.String(string(edition.Media)),
					segments,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Media", "Segments"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	return cmd
}

func requireEdition(cmd *cobra.Command, st *store.Store, editionID int64) error {
	return requireEditionContext(cmd.Context(), st, editionID)
}

func requireEditionContext(ctx context.Context, st *store.Store, editionID int64) error {
	edition, err := st.GetEdition(ctx, editionID)
	if err != nil {
		return err
	}
	if edition == nil {
		return fmt.Errorf("edition %d not found; run `concord editions` to list known editions", editionID)
	}
	return nil
}
