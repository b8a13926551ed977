package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ricettario/internal/corpus"
	"ricettario/internal/normalize"
	"ricettario/pkg/logger"
)

func newImportCSVCommand(app *App) *cobra.Command {
	var (
		corpusPath string
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "import-csv <sheet.csv>",
		Short: "Merge recipes from a spreadsheet export into the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := firstNonEmpty(corpusPath, app.Config.Corpus.Path)
			c, err := corpus.Load(path)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open sheet: %w", err)
			}
			defer f.Close()

			recs, rejected, err := corpus.ReadSheet(f, normalize.New(nil))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			for _, r := range rejected {
				app.Log.Info("Sheet row rejected", logger.String("title", r.Title), logger.String("reason", r.Reason))
			}
			app.Metrics.ObserveMerge(0, len(rejected), 0)

			res, err := mergeIntoCorpus(app, app.Log, c, path, recs, dryRun)
			if err != nil {
				return err
			}
			renderMerge(cmd.OutOrStdout(), res)
			return app.flushMetrics()
		},
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "corpus file (overrides corpus.path)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing the corpus")
	return cmd
}

func newExportCSVCommand(app *App) *cobra.Command {
	var corpusPath string
	cmd := &cobra.Command{
		Use:   "export-csv <sheet.csv>",
		Short: "Write the corpus as a spreadsheet-friendly CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := corpus.Load(firstNonEmpty(corpusPath, app.Config.Corpus.Path))
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := corpus.WriteSheet(&buf, c.Recipes); err != nil {
				return fmt.Errorf("encode sheet: %w", err)
			}
			if err := corpus.WriteFileAtomic(args[0], buf.Bytes()); err != nil {
				return err
			}
			app.Log.Info("Sheet exported", logger.String("path", args[0]), logger.Int("recipes", len(c.Recipes)))
			return nil
		},
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "corpus file (overrides corpus.path)")
	return cmd
}
