package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"concord/internal/media"
)

// editionDocument is the JSON shape `concord import` accepts: one edition
// with its segments and optional precomputed per-event vectors.
type editionDocument struct {
	Title    string            `json:"title"`
	Media    string            `json:"media"`
	Segments []segmentDocument `json:"segments"`
}

type segmentDocument struct {
	Number         string      `json:"number"`
	Summary        string      `json:"summary"`
	Events         []string    `json:"events"`
	Characters     []string    `json:"characters"`
	Locations      []string    `json:"locations"`
	Keywords       []string    `json:"keywords"`
	TimeContext    string      `json:"time_context"`
	EventVectors   [][]float32 `json:"event_vectors"`
	EmbeddingModel string      `json:"embedding_model"`
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import an edition with its segments and fingerprints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var doc editionDocument
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("parse import file: %w", err)
			}
			mediaType := media.Type(doc.Media)
			if !mediaType.Valid() {
				return fmt.Errorf("unsupported media type %q; expected novel, anime, or manhwa", doc.Media)
			}
			if len(doc.Segments) == 0 {
				return fmt.Errorf("import file has no segments")
			}

			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			edition, err := st.CreateEdition(cmd.Context(), doc.Title, mediaType)
			if err != nil {
				return err
			}

			segments, vectors := 0, 0
			for _, sd := range doc.Segments {
				number, err := media.ParseOrdinal(sd.Number)
				if err != nil {
					return fmt.Errorf("segment %q: %w", sd.Number, err)
				}
				inserted, err := st.InsertSegment(cmd.Context(), &media.Segment{
					EditionID:   edition.ID,
					Number:      number,
					Media:       mediaType,
					Summary:     sd.Summary,
					Events:      sd.Events,
					Characters:  sd.Characters,
					Locations:   sd.Locations,
					Keywords:    sd.Keywords,
					TimeContext: media.TimeContext(sd.TimeContext),
				})
				if err != nil {
					return fmt.Errorf("segment %s: %w", number, err)
				}
				segments++

				for i, vector := range sd.EventVectors {
					if len(vector) == 0 {
						continue
					}
					err := st.PutFingerprint(cmd.Context(), &media.Fingerprint{
						SegmentID:  inserted.ID,
						Channel:    media.ChannelEvents,
						EventIndex: i,
						Model:      sd.EmbeddingModel,
						Vector:     vector,
					})
					if err != nil {
						return fmt.Errorf("segment %s event %d: %w", number, i, err)
					}
					vectors++
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported edition %d (%s): %d segments, %d event vectors\n",
				edition.ID, edition.Title, segments, vectors)
			return nil
		},
	}
	return cmd
}
