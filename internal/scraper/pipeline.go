package scraper

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"ricettario/internal/extract"
	"ricettario/internal/fetch"
	"ricettario/internal/metrics"
	"ricettario/internal/normalize"
	"ricettario/pkg/logger"
	"ricettario/pkg/models"
)

// Outcome is what happened to one page.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeFetchError  Outcome = "fetch_error"
	OutcomeNoCandidate Outcome = "no_candidate"
	OutcomeInvalid     Outcome = "invalid"
)

const (
	DefaultWorkers = 4
	MaxWorkers     = 8
)

// Fetcher is the part of fetch.Fetcher the pipeline needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// PageResult is the outcome of one URL.
type PageResult struct {
	URL      string
	Outcome  Outcome
	Strategy string
	Reason   string
	Recipe   *models.Recipe
}

// Report collects page results in input order.
type Report struct {
	RunID    string
	Pages    []PageResult
	Started  time.Time
	Finished time.Time
}

// Counts tallies pages per outcome.
func (r *Report) Counts() map[Outcome]int {
	out := make(map[Outcome]int, 4)
	for _, p := range r.Pages {
		out[p.Outcome]++
	}
	return out
}

// Recipes returns the normalized recipes of successful pages in input order.
func (r *Report) Recipes() []models.Recipe {
	var out []models.Recipe
	for _, p := range r.Pages {
		if p.Outcome == OutcomeOK && p.Recipe != nil {
			out = append(out, *p.Recipe)
		}
	}
	return out
}

// Pipeline fetches, extracts and normalizes pages with a bounded pool.
type Pipeline struct {
	Fetcher    Fetcher
	Cascade    *extract.Cascade
	Normalizer *normalize.Normalizer
	Workers    int
	Log        logger.Logger
	Metrics    *metrics.Metrics
}

// ClampWorkers keeps the pool size in 1..MaxWorkers, zero meaning the default.
func ClampWorkers(n int) int {
	switch {
	case n <= 0:
		return DefaultWorkers
	case n > MaxWorkers:
		return MaxWorkers
	}
	return n
}

// Run processes urls. Per-page failures land in the report; only a
// cancelled ctx makes Run fail.
func (p *Pipeline) Run(ctx context.Context, runID string, urls []string) (*Report, error) {
	log := p.Log
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With(logger.String("run_id", runID))

	rep := &Report{RunID: runID, Pages: make([]PageResult, len(urls)), Started: time.Now()}

	var g errgroup.Group
	g.SetLimit(ClampWorkers(p.Workers))
	for i, u := range urls {
		g.Go(func() error {
			if ctx.Err() != nil {
				rep.Pages[i] = PageResult{URL: u, Outcome: OutcomeFetchError, Reason: ctx.Err().Error()}
				return nil
			}
			rep.Pages[i] = p.processPage(ctx, log, u)
			return nil
		})
	}
	_ = g.Wait()
	rep.Finished = time.Now()

	for _, pr := range rep.Pages {
		p.Metrics.ObservePage(string(pr.Outcome), pr.Strategy)
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

func (p *Pipeline) processPage(ctx context.Context, log logger.Logger, u string) PageResult {
	res := PageResult{URL: u}

	start := time.Now()
	body, err := p.Fetcher.Fetch(ctx, u)
	p.Metrics.ObserveFetch(time.Since(start))
	if err != nil {
		res.Outcome, res.Reason = OutcomeFetchError, err.Error()
		var fe *fetch.FetchError
		if errors.As(err, &fe) && fe.StatusCode != 0 {
			log.Warn("Skipping page", logger.String("url", u), logger.Int("status", fe.StatusCode))
		} else {
			log.Warn("Skipping page", logger.String("url", u), logger.Error(err))
		}
		return res
	}

	page, err := extract.ParsePage(u, body)
	if err != nil {
		res.Outcome, res.Reason = OutcomeNoCandidate, err.Error()
		log.Warn("Skipping page", logger.String("url", u), logger.Error(err))
		return res
	}

	found := p.Cascade.Run(page)
	res.Strategy = found.Strategy
	if len(found.Candidates) == 0 {
		res.Outcome, res.Reason = OutcomeNoCandidate, "no strategy produced a candidate"
		log.Info("No recipe found", logger.String("url", u))
		return res
	}

	recipe, err := p.Normalizer.Normalize(found.Candidates[0], extract.PageMetaFrom(page.Doc), u)
	if err != nil {
		// a normal filtering outcome, counted but not a failure
		res.Outcome, res.Reason = OutcomeInvalid, err.Error()
		log.Debug("Candidate rejected", logger.String("url", u), logger.String("strategy", found.Strategy), logger.Error(err))
		return res
	}

	res.Outcome, res.Recipe = OutcomeOK, &recipe
	log.Debug("Recipe extracted",
		logger.String("url", u),
		logger.String("strategy", found.Strategy),
		logger.String("id", recipe.ID),
	)
	return res
}
