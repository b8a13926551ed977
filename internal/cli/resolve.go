package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ricettario/internal/corpus"
	"ricettario/internal/youtube"
	"ricettario/pkg/logger"
)

type resolveOptions struct {
	corpus       string
	out          string
	updateCorpus bool
}

func newResolveCommand(app *App) *cobra.Command {
	var opts resolveOptions
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Match corpus recipes with videos from the allowlisted YouTube channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := app.Log.With(logger.String("run_id", uuid.NewString()))

			cfg := app.Config.YouTube
			if cfg.APIKey == "" {
				return errors.New("youtube.api_key is not set (RICETTARIO_YOUTUBE_API_KEY)")
			}
			corpusPath := firstNonEmpty(opts.corpus, app.Config.Corpus.Path)
			outPath := firstNonEmpty(opts.out, app.Config.Corpus.VideoIndex)

			c, err := corpus.Load(corpusPath)
			if err != nil {
				return err
			}
			catalog, err := youtube.NewAPICatalog(ctx, cfg.APIKey)
			if err != nil {
				return err
			}

			rows, stats, runErr := youtube.NewResolver(catalog, cfg, log).ResolveAll(ctx, c.Recipes)
			app.Metrics.ObserveResolver("kept", stats.Kept)
			app.Metrics.ObserveResolver("matched", stats.Matched)
			app.Metrics.ObserveResolver("unresolved", stats.Unresolved-stats.TimedOut)
			app.Metrics.ObserveResolver("timeout", stats.TimedOut)
			if runErr != nil {
				// rows so far are still worth keeping
				log.Warn("Resolver interrupted", logger.Int("resolved", len(rows)), logger.Error(runErr))
			}

			if err := corpus.SaveVideoIndex(outPath, rows); err != nil {
				return err
			}
			log.Info("Video index saved", logger.String("path", outPath), logger.Int("rows", len(rows)))

			if opts.updateCorpus && runErr == nil {
				n := corpus.ApplyVideos(c.Recipes, rows)
				if n > 0 {
					if err := corpus.Save(corpusPath, c); err != nil {
						return err
					}
				}
				log.Info("Corpus video ids filled", logger.Int("updated", n))
			}

			renderResolver(cmd.OutOrStdout(), stats, len(rows))
			if runErr != nil {
				return fmt.Errorf("resolve: %w", runErr)
			}
			return app.flushMetrics()
		},
	}
	cmd.Flags().StringVar(&opts.corpus, "corpus", "", "corpus file (overrides corpus.path)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "video index file (overrides corpus.video_index)")
	cmd.Flags().BoolVar(&opts.updateCorpus, "update-corpus", false, "fill empty youtubeId fields in the corpus from resolved rows")
	return cmd
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
