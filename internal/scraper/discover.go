package scraper

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// DiscoverConfig carries the client identity used for index pages.
type DiscoverConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// Discover visits an index page and returns the recipe links on it: same
// allowlist as the descriptor (or the index host when none is set), path
// matching LinkPattern, fragments dropped, first MaxPages in page order.
func Discover(ctx context.Context, d Descriptor, cfg DiscoverConfig) ([]string, error) {
	d = d.withDefaults()
	index, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("index url: %w", err)
	}
	pattern, err := regexp.Compile(d.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("link pattern: %w", err)
	}
	domains := d.AllowedDomains
	if len(domains) == 0 {
		domains = []string{index.Hostname()}
	}

	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.MaxDepth(1),
		colly.AllowedDomains(index.Hostname()),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}

	var (
		mu      sync.Mutex
		links   []string
		seen    = make(map[string]struct{})
		pageErr error
	)
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		abs := e.Request.AbsoluteURL(e.Attr("href"))
		u, err := url.Parse(abs)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		if !hostAllowed(u.Hostname(), domains) || !pattern.MatchString(u.Path) {
			return
		}
		u.Fragment = ""
		key := normalizeKey(u.String())

		mu.Lock()
		defer mu.Unlock()
		if _, dup := seen[key]; dup || len(links) >= d.MaxPages {
			return
		}
		seen[key] = struct{}{}
		links = append(links, u.String())
	})
	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		pageErr = fmt.Errorf("index %s: HTTP %d: %w", d.URL, r.StatusCode, err)
	})

	if err := c.Visit(d.URL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", d.URL, err)
	}
	c.Wait()

	if pageErr != nil {
		return nil, pageErr
	}
	return links, nil
}
