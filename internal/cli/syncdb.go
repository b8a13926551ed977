package cli

import (
	"github.com/spf13/cobra"

	"ricettario/internal/corpus"
	"ricettario/internal/scraper"
	"ricettario/pkg/database"
	"ricettario/pkg/logger"
)

func newSyncDBCommand(app *App) *cobra.Command {
	var corpusPath string
	cmd := &cobra.Command{
		Use:   "sync-db",
		Short: "Mirror the corpus and video index into the sqlite database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := corpus.Load(firstNonEmpty(corpusPath, app.Config.Corpus.Path))
			if err != nil {
				return err
			}
			rows, err := corpus.LoadVideoIndex(app.Config.Corpus.VideoIndex)
			if err != nil {
				return err
			}

			db, err := database.OpenAndMigrate(app.Config.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			inserted, err := scraper.SaveToDatabase(ctx, db, c.Recipes)
			if err != nil {
				return err
			}
			if err := scraper.SaveVideoIndex(ctx, db, rows); err != nil {
				return err
			}
			app.Metrics.SetCorpusSize(len(c.Recipes))
			app.Log.Info("Database synced",
				logger.String("db", app.Config.Database.Path),
				logger.Int("recipes", len(c.Recipes)),
				logger.Int("inserted", inserted),
				logger.Int("videos", len(rows)),
			)
			return app.flushMetrics()
		},
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "corpus file (overrides corpus.path)")
	return cmd
}
