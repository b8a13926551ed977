package scraper

import (
	"context"
	"net/url"
	"strings"

	"ricettario/pkg/logger"
)

// Source is implemented by each kind of source descriptor. A source is
// responsible for turning its descriptor into the recipe page URLs to scrape.
type Source interface {
	Name() string
	URLs(ctx context.Context) ([]string, error)
}

// PageSource is a single recipe page.
type PageSource struct {
	Descriptor Descriptor
}

func (s PageSource) Name() string { return s.Descriptor.Name }

func (s PageSource) URLs(context.Context) ([]string, error) {
	return []string{s.Descriptor.URL}, nil
}

// IndexSource expands an index page into recipe pages.
type IndexSource struct {
	Descriptor Descriptor
	Config     DiscoverConfig
}

func (s IndexSource) Name() string { return s.Descriptor.Name }

func (s IndexSource) URLs(ctx context.Context) ([]string, error) {
	return Discover(ctx, s.Descriptor, s.Config)
}

// NewSource maps a validated descriptor to its Source.
func NewSource(d Descriptor, cfg DiscoverConfig) Source {
	if d.Type == SourceIndex {
		return IndexSource{Descriptor: d, Config: cfg}
	}
	return PageSource{Descriptor: d}
}

// Aggregator collects page URLs from several sources.
type Aggregator struct {
	Sources []Source
	Log     logger.Logger
}

// NewAggregator creates a new Aggregator with the given sources.
func NewAggregator(log logger.Logger, sources ...Source) *Aggregator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Aggregator{Sources: sources, Log: log}
}

// CollectURLs asks every source for its pages and returns them in source
// order, each URL once. A failing source is logged and skipped.
func (a *Aggregator) CollectURLs(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var out []string

	for _, src := range a.Sources {
		urls, err := src.URLs(ctx)
		if err != nil {
			// keep going: one broken source should not kill the run
			a.Log.Warn("Source failed", logger.String("source", src.Name()), logger.Error(err))
			continue
		}
		a.Log.Debug("Source expanded", logger.String("source", src.Name()), logger.Int("urls", len(urls)))

		for _, u := range urls {
			key := normalizeKey(u)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

// normalizeKey is the identity of a page URL: lowercase scheme and host,
// no fragment, no trailing slash.
func normalizeKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
