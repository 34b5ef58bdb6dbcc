package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"concord/internal/align"
	"concord/internal/align/greedy"
	"concord/internal/align/llmalign"
	"concord/internal/align/vote"
	"concord/internal/config"
	"concord/internal/media"
	"concord/internal/retrieval"
	"concord/internal/runner"
	"concord/internal/services/embed"
	"concord/internal/services/llm"
)

func newAlignCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Propose segment mappings between two editions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newAlignSubcommand(ctx, "vote",
		"Align with per-event candidate voting"))
	cmd.AddCommand(newAlignSubcommand(ctx, "greedy",
		"Align sequentially with a forward-only search window"))
	cmd.AddCommand(newAlignSubcommand(ctx, "checkpoint",
		"Align one segment at a time with LLM window placement"))
	cmd.AddCommand(newAlignSubcommand(ctx, "range",
		"Align whole editions in one batched LLM request"))

	return cmd
}

func newAlignSubcommand(ctx *commandContext, mode, short string) *cobra.Command {
	var sourceID, targetID int64
	var recompute bool

	cmd := &cobra.Command{
		Use:   mode,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := runAlign(ctx, cmd, mode, sourceID, targetID, recompute)
			if err != nil {
				return err
			}
			printSummary(cmd, mode, summary)
			return nil
		},
	}

	cmd.Flags().Int64Var(&sourceID, "source", 0, "Source edition identifier")
	cmd.Flags().Int64Var(&targetID, "target", 0, "Target edition identifier")
	cmd.Flags().BoolVar(&recompute, "recompute", false, "Realign every segment instead of resuming past the checkpoint")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runAlign(ctx *commandContext, cmd *cobra.Command, mode string, sourceID, targetID int64, recompute bool) (align.Summary, error) {
	var summary align.Summary

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return summary, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return summary, err
	}
	if sourceID == targetID {
		return summary, fmt.Errorf("source and target editions must differ")
	}

	lock, err := runner.Acquire(cfg.LockPath())
	if err != nil {
		return summary, err
	}
	defer lock.Release()

	st, err := ctx.openStore()
	if err != nil {
		return summary, err
	}
	defer st.Close()

	if err := requireEdition(cmd, st, sourceID); err != nil {
		return summary, err
	}
	if err := requireEdition(cmd, st, targetID); err != nil {
		return summary, err
	}

	policy := ctx.policyValue()
	searcher := retrieval.NewIndex(st, media.ChannelEvents)

	switch mode {
	case "vote":
		var embedder vote.Embedder
		if cfg.Embedding.APIKey != "" {
			client, err := embed.NewClient(embed.Config{
				APIKey:  cfg.Embedding.APIKey,
				BaseURL: cfg.Embedding.BaseURL,
				Model:   cfg.Embedding.Model,
			})
			if err != nil {
				return summary, err
			}
			embedder = client
		}
		aligner := vote.New(st, searcher, embedder, policy, logger)
		return aligner.Run(cmd.Context(), sourceID, targetID, vote.Options{Recompute: recompute})
	case "greedy":
		aligner := greedy.New(st, searcher, policy, logger)
		return aligner.Run(cmd.Context(), sourceID, targetID, greedy.Options{Recompute: recompute})
	case "checkpoint":
		client, err := newLLMClient(cfg.LLM)
		if err != nil {
			return summary, err
		}
		aligner := llmalign.NewCheckpointAligner(st, client, cfg.LLM.Model, policy, logger)
		return aligner.Run(cmd.Context(), sourceID, targetID, llmalign.Options{Recompute: recompute})
	case "range":
		client, err := newLLMClient(cfg.LLM)
		if err != nil {
			return summary, err
		}
		aligner := llmalign.NewRangeAligner(st, client, cfg.LLM.Model, policy, logger)
		return aligner.Run(cmd.Context(), sourceID, targetID, llmalign.Options{Recompute: recompute})
	default:
		return summary, fmt.Errorf("unknown alignment mode %q", mode)
	}
}

func newLLMClient(cfg config.LLM) (*llm.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api_key is required for LLM alignment; set [llm] api_key or CONCORD_LLM_API_KEY")
	}
	return llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}), nil
}

func printSummary(cmd *cobra.Command, mode string, summary align.Summary) {
	out := renderTable(
		[]string{"Mode", "Considered", "Matched", "Skipped", "Errored"},
		[][]string{{
			mode,
			fmt.Sprintf("%d", summary.Total()),
			fmt.Sprintf("%d", summary.Matched),
			fmt.Sprintf("%d", summary.Skipped),
			fmt.Sprintf("%d", summary.Errored),
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
	fmt.Fprintln(cmd.OutOrStdout(), out)
}
