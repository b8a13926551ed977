// Package youtube matches recipe titles to videos from an allowlist of
// channels and produces the video index.
package youtube

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ricettario/internal/normalize"
	"ricettario/pkg/logger"
	"ricettario/pkg/models"
)

// ErrNotFound is returned by a Catalog when a video id does not exist.
var ErrNotFound = errors.New("video not found")

// Video is the catalog view of one video.
type Video struct {
	ID           string
	Title        string
	ChannelID    string
	ChannelTitle string
	Embeddable   bool
}

// Catalog looks videos up by id and by free-text query. Search results are
// returned in the catalog's own relevance order.
type Catalog interface {
	Video(ctx context.Context, id string) (Video, error)
	Search(ctx context.Context, query string, limit int) ([]Video, error)
}

const (
	DefaultMaxResults = 10
	DefaultDelay      = 300 * time.Millisecond
	DefaultTimeout    = 8 * time.Second
)

// Config mirrors the youtube.* configuration keys.
type Config struct {
	APIKey        string        `mapstructure:"api_key"`
	Channels      []string      `mapstructure:"channels"`
	MaxResults    int           `mapstructure:"max_results"`
	Delay         time.Duration `mapstructure:"delay"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MinConfidence float64       `mapstructure:"min_confidence"`
}

// WithDefaults fills zero values. A negative Delay disables pacing.
func (c Config) WithDefaults() Config {
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.Delay == 0 {
		c.Delay = DefaultDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Stats counts resolver outcomes for one run.
type Stats struct {
	Kept       int // existing id validated
	Matched    int // found through search
	Unresolved int
	TimedOut   int // subset of Unresolved
}

// Resolver produces one VideoIndexRow per recipe.
type Resolver struct {
	catalog Catalog
	cfg     Config
	allow   map[string]struct{}
	limiter *rate.Limiter
	log     logger.Logger
}

// NewResolver creates a Resolver. With an empty channel allowlist every
// lookup ends unresolved.
func NewResolver(catalog Catalog, cfg Config, log logger.Logger) *Resolver {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	allow := make(map[string]struct{}, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			allow[ch] = struct{}{}
		}
	}
	if len(allow) == 0 {
		log.Warn("YouTube channel allowlist is empty, no video will be accepted")
	}

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	return &Resolver{
		catalog: catalog,
		cfg:     cfg,
		allow:   allow,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

// Confidence is the token overlap of two titles: |A∩B| / max(|A|,|B|)
// over their folded word sets, and 0 when either set is empty.
func Confidence(a, b string) float64 {
	ta, tb := normalize.FoldTokens(a), normalize.FoldTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(ta), len(tb)))
}

func (r *Resolver) accepts(v Video) bool {
	if !v.Embeddable || v.ID == "" {
		return false
	}
	_, ok := r.allow[v.ChannelID]
	return ok
}

func (r *Resolver) wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

func matchRow(title string, v Video) models.VideoIndexRow {
	return models.VideoIndexRow{
		Title:        title,
		YouTubeID:    v.ID,
		MatchTitle:   v.Title,
		ChannelTitle: v.ChannelTitle,
		ChannelID:    v.ChannelID,
		Confidence:   Confidence(title, v.Title),
	}
}

// outcome is internal bookkeeping for Stats.
type outcome int

const (
	outcomeUnresolved outcome = iota
	outcomeKept
	outcomeMatched
	outcomeTimedOut
)

// Resolve finds the video for one recipe. An already present id is checked
// first and kept when it passes the allowlist; otherwise the first search
// hit that passes the allowlist and the confidence floor wins. The whole
// lookup is capped by the configured timeout and a timeout is a miss.
func (r *Resolver) Resolve(ctx context.Context, rec models.Recipe) models.VideoIndexRow {
	row, _ := r.resolve(ctx, rec)
	return row
}

func (r *Resolver) resolve(ctx context.Context, rec models.Recipe) (models.VideoIndexRow, outcome) {
	miss := models.VideoIndexRow{Title: rec.Title}
	if len(r.allow) == 0 {
		return miss, outcomeUnresolved
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	timedOut := func(err error) bool {
		return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	}

	if id := normalize.ExtractYouTubeID(rec.YouTubeID); id != "" {
		if err := r.wait(ctx); err != nil {
			return miss, outcomeTimedOut
		}
		v, err := r.catalog.Video(ctx, id)
		switch {
		case err == nil && r.accepts(v):
			return matchRow(rec.Title, v), outcomeKept
		case err == nil:
			r.log.Debug("Existing video rejected by allowlist",
				logger.String("title", rec.Title),
				logger.String("youtube_id", id),
				logger.String("channel_id", v.ChannelID),
			)
		case timedOut(err):
			return miss, outcomeTimedOut
		case !errors.Is(err, ErrNotFound):
			r.log.Warn("Video lookup failed", logger.String("youtube_id", id), logger.Error(err))
		}
	}

	if err := r.wait(ctx); err != nil {
		return miss, outcomeTimedOut
	}
	hits, err := r.catalog.Search(ctx, rec.Title, r.cfg.MaxResults)
	if err != nil {
		if timedOut(err) {
			return miss, outcomeTimedOut
		}
		r.log.Warn("Video search failed", logger.String("title", rec.Title), logger.Error(err))
		return miss, outcomeUnresolved
	}
	for _, v := range hits {
		if !r.accepts(v) {
			continue
		}
		row := matchRow(rec.Title, v)
		if row.Confidence < r.cfg.MinConfidence {
			continue
		}
		return row, outcomeMatched
	}
	return miss, outcomeUnresolved
}

// ResolveAll resolves recipes one after the other, paced by the configured
// delay. Rows keep the order of recipes. It stops early only when ctx is
// cancelled, returning the rows produced so far and ctx's error.
func (r *Resolver) ResolveAll(ctx context.Context, recipes []models.Recipe) ([]models.VideoIndexRow, Stats, error) {
	rows := make([]models.VideoIndexRow, 0, len(recipes))
	var stats Stats
	for _, rec := range recipes {
		if err := ctx.Err(); err != nil {
			return rows, stats, err
		}
		row, out := r.resolve(ctx, rec)
		switch out {
		case outcomeKept:
			stats.Kept++
		case outcomeMatched:
			stats.Matched++
		case outcomeTimedOut:
			stats.TimedOut++
			stats.Unresolved++
		default:
			stats.Unresolved++
		}
		if row.Resolved() {
			r.log.Debug("Video resolved",
				logger.String("title", rec.Title),
				logger.String("youtube_id", row.YouTubeID),
				logger.Float64("confidence", row.Confidence),
			)
		}
		rows = append(rows, row)
	}
	return rows, stats, nil
}
