package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ricettario/internal/corpus"
	"ricettario/internal/extract"
	"ricettario/internal/fetch"
	"ricettario/internal/normalize"
	"ricettario/internal/scraper"
	"ricettario/pkg/logger"
	"ricettario/pkg/models"
)

type scrapeOptions struct {
	sources string
	corpus  string
	workers int
	dryRun  bool
}

func newScrapeCommand(app *App) *cobra.Command {
	var opts scrapeOptions
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the configured sources and merge new recipes into the corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runScrape(cmd.Context(), app, opts, cmd.OutOrStdout()); err != nil {
				return err
			}
			return app.flushMetrics()
		},
	}
	cmd.Flags().StringVarP(&opts.sources, "sources", "s", "sources.txt", "sources file (one URL per line, or YAML descriptors)")
	cmd.Flags().StringVar(&opts.corpus, "corpus", "", "corpus file (overrides corpus.path)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "concurrent page fetches (overrides fetch.workers, max 8)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "extract and report without writing the corpus")
	return cmd
}

func (a *App) loadSources(path string) ([]scraper.Source, error) {
	ds, err := scraper.LoadSources(path)
	if err != nil {
		return nil, err
	}
	valid, err := scraper.ValidSources(ds, a.Log)
	if err != nil {
		return nil, err
	}
	dcfg := scraper.DiscoverConfig{UserAgent: a.Config.Fetch.UserAgent, Timeout: a.Config.Fetch.Timeout}
	out := make([]scraper.Source, 0, len(valid))
	for _, d := range valid {
		out = append(out, scraper.NewSource(d, dcfg))
	}
	return out, nil
}

func runScrape(ctx context.Context, app *App, opts scrapeOptions, out io.Writer) error {
	runID := uuid.NewString()
	log := app.Log.With(logger.String("run_id", runID))

	// A corpus that cannot be read aborts before any page is fetched.
	path := firstNonEmpty(opts.corpus, app.Config.Corpus.Path)
	c, err := corpus.Load(path)
	if err != nil {
		return err
	}

	sources, err := app.loadSources(opts.sources)
	if err != nil {
		return err
	}
	urls := scraper.NewAggregator(log, sources...).CollectURLs(ctx)
	log.Info("Collected pages", logger.Int("sources", len(sources)), logger.Int("pages", len(urls)))

	workers := opts.workers
	if workers == 0 {
		workers = app.Config.Fetch.Workers
	}
	p := &scraper.Pipeline{
		Fetcher:    fetch.New(app.Config.Fetch.Config, nil, log),
		Cascade:    extract.NewCascade(app.Config.Heuristic),
		Normalizer: normalize.New(nil),
		Workers:    workers,
		Log:        log,
		Metrics:    app.Metrics,
	}
	rep, err := p.Run(ctx, runID, urls)
	if err != nil {
		return fmt.Errorf("scrape run: %w", err)
	}

	res, err := mergeIntoCorpus(app, log, c, path, rep.Recipes(), opts.dryRun)
	if err != nil {
		return err
	}

	renderReport(out, rep)
	renderMerge(out, res)
	return nil
}

// mergeIntoCorpus merges candidates into c, loaded from path, and saves it
// back unless dryRun.
func mergeIntoCorpus(app *App, log logger.Logger, c *corpus.Corpus, path string, candidates []models.Recipe, dryRun bool) (corpus.MergeResult, error) {
	res := corpus.Merge(c.Recipes, candidates, corpus.MergeOptions{SortByTitle: app.Config.Corpus.SortByTitle})
	app.Metrics.ObserveMerge(res.Stats.Accepted, res.Stats.Invalid, res.Stats.Duplicate)
	for _, rej := range res.Rejected {
		log.Info("Candidate rejected",
			logger.String("id", rej.ID),
			logger.String("url", rej.URL),
			logger.String("reason", rej.Reason),
		)
	}

	if dryRun {
		log.Info("Dry run, corpus left untouched", logger.String("path", path))
		return res, nil
	}
	c.Recipes = res.Recipes
	if err := corpus.Save(path, c); err != nil {
		return res, err
	}
	app.Metrics.SetCorpusSize(len(c.Recipes))
	log.Info("Corpus saved",
		logger.String("path", path),
		logger.Int("recipes", len(c.Recipes)),
		logger.Int("accepted", res.Stats.Accepted),
	)
	return res, nil
}
