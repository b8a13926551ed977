package scraper

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"ricettario/pkg/logger"
)

// ErrNoValidSources aborts a run whose sources file yields nothing usable.
var ErrNoValidSources = errors.New("no valid sources")

// SourceType says how a descriptor turns into page URLs.
type SourceType string

const (
	SourcePage  SourceType = "page"  // the URL is a recipe page
	SourceIndex SourceType = "index" // the URL lists recipe pages
)

const (
	DefaultLinkPattern = `/ricett|/recipe`
	DefaultMaxPages    = 50
)

// Descriptor is one entry of a sources file.
type Descriptor struct {
	Name           string     `yaml:"name"`
	Type           SourceType `yaml:"type"`
	URL            string     `yaml:"url"`
	AllowedDomains []string   `yaml:"allowed_domains"`
	LinkPattern    string     `yaml:"link_pattern"`
	MaxPages       int        `yaml:"max_pages"`
}

type sourcesFile struct {
	Sources []Descriptor `yaml:"sources"`
}

// LoadSources reads a sources file, see ParseSources.
func LoadSources(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources %s: %w", path, err)
	}
	return ParseSources(data)
}

// ParseSources accepts either YAML with a top-level "sources" list or plain
// text with one page URL per line ('#' starts a comment).
func ParseSources(data []byte) ([]Descriptor, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err == nil && len(f.Sources) > 0 {
		for i := range f.Sources {
			f.Sources[i] = f.Sources[i].withDefaults()
		}
		return f.Sources, nil
	}

	var out []Descriptor
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, Descriptor{URL: line}.withDefaults())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan sources: %w", err)
	}
	return out, nil
}

func (d Descriptor) withDefaults() Descriptor {
	d.URL = strings.TrimSpace(d.URL)
	if d.Type == "" {
		d.Type = SourcePage
	}
	d.Type = SourceType(strings.ToLower(string(d.Type)))
	if d.Name == "" {
		if u, err := url.Parse(d.URL); err == nil && u.Host != "" {
			d.Name = u.Hostname()
		} else {
			d.Name = d.URL
		}
	}
	if d.Type == SourceIndex {
		if d.LinkPattern == "" {
			d.LinkPattern = DefaultLinkPattern
		}
		if d.MaxPages <= 0 {
			d.MaxPages = DefaultMaxPages
		}
	}
	return d
}

// Validate checks the URL, the type, the domain allowlist and the link pattern.
func (d Descriptor) Validate() error {
	u, err := url.Parse(d.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid url %q", d.URL)
	}
	switch d.Type {
	case SourcePage, SourceIndex:
	default:
		return fmt.Errorf("unknown source type %q", d.Type)
	}
	if len(d.AllowedDomains) > 0 && !hostAllowed(u.Hostname(), d.AllowedDomains) {
		return fmt.Errorf("host %s outside allowed domains %v", u.Hostname(), d.AllowedDomains)
	}
	if d.LinkPattern != "" {
		if _, err := regexp.Compile(d.LinkPattern); err != nil {
			return fmt.Errorf("link pattern: %w", err)
		}
	}
	return nil
}

// hostAllowed matches host against domains, subdomains included.
func hostAllowed(host string, domains []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// ValidSources drops invalid descriptors with a logged reason. It fails with
// ErrNoValidSources when nothing is left.
func ValidSources(ds []Descriptor, log logger.Logger) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(ds))
	for _, d := range ds {
		if err := d.Validate(); err != nil {
			log.Warn("Skipping source",
				logger.String("source", d.Name),
				logger.String("reason", err.Error()),
			)
			continue
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, ErrNoValidSources
	}
	return out, nil
}
