package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"ricettario/pkg/models"
)

type fakeCatalog struct {
	mu       sync.Mutex
	videos   map[string]Video
	results  []Video
	block    bool
	searches []string
	lookups  []string
}

func (f *fakeCatalog) Video(ctx context.Context, id string) (Video, error) {
	f.mu.Lock()
	f.lookups = append(f.lookups, id)
	f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return Video{}, ErrNotFound
	}
	return v, nil
}

func (f *fakeCatalog) Search(ctx context.Context, query string, limit int) ([]Video, error) {
	f.mu.Lock()
	f.searches = append(f.searches, query)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func testConfig() Config {
	return Config{
		Channels: []string{"UC_allowed"},
		Delay:    time.Millisecond,
		Timeout:  time.Second,
	}
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.6, Confidence("Pasta al pomodoro", "Pasta al pomodoro fresco e veloce"), 1e-9)
	assert.InDelta(t, 1.0, Confidence("Crème brûlée", "CREME BRULEE"), 1e-9)
	assert.Zero(t, Confidence("", "Pasta"))
	assert.Zero(t, Confidence("Pasta", "!!!"))
	assert.Zero(t, Confidence("Pane", "Pizza"))
}

func TestResolveKeepsValidExistingID(t *testing.T) {
	cat := &fakeCatalog{videos: map[string]Video{
		"dQw4w9WgXcQ": {ID: "dQw4w9WgXcQ", Title: "Torta soffice", ChannelID: "UC_allowed", ChannelTitle: "Cucina", Embeddable: true},
	}}
	r := NewResolver(cat, testConfig(), nil)

	row := r.Resolve(context.Background(), models.Recipe{Title: "Torta", YouTubeID: "dQw4w9WgXcQ"})
	assert.Equal(t, "dQw4w9WgXcQ", row.YouTubeID)
	assert.Equal(t, "Torta soffice", row.MatchTitle)
	assert.Equal(t, "Cucina", row.ChannelTitle)
	assert.InDelta(t, 0.5, row.Confidence, 1e-9)
	assert.Empty(t, cat.searches, "a valid existing id must not trigger a search")
}

func TestResolveFallsBackWhenExistingIDNotAllowed(t *testing.T) {
	cat := &fakeCatalog{
		videos: map[string]Video{
			"aaaaaaaaaaa": {ID: "aaaaaaaaaaa", Title: "Torta", ChannelID: "UC_other", Embeddable: true},
		},
		results: []Video{{ID: "bbbbbbbbbbb", Title: "Torta della nonna", ChannelID: "UC_allowed", Embeddable: true}},
	}
	row := NewResolver(cat, testConfig(), nil).Resolve(context.Background(), models.Recipe{Title: "Torta", YouTubeID: "aaaaaaaaaaa"})
	assert.Equal(t, "bbbbbbbbbbb", row.YouTubeID)
	assert.Equal(t, []string{"Torta"}, cat.searches)
}

func TestResolveTakesFirstAllowedHitNotBestScored(t *testing.T) {
	cat := &fakeCatalog{results: []Video{
		{ID: "11111111111", Title: "Pasta al pomodoro", ChannelID: "UC_other", Embeddable: true},
		{ID: "22222222222", Title: "Pasta al pomodoro", ChannelID: "UC_allowed", Embeddable: false},
		{ID: "33333333333", Title: "Pasta al pomodoro fresco e veloce", ChannelID: "UC_allowed", Embeddable: true},
		{ID: "44444444444", Title: "Pasta al pomodoro", ChannelID: "UC_allowed", Embeddable: true},
	}}
	row := NewResolver(cat, testConfig(), nil).Resolve(context.Background(), models.Recipe{Title: "Pasta al pomodoro"})
	assert.Equal(t, "33333333333", row.YouTubeID)
	assert.Equal(t, "UC_allowed", row.ChannelID)
	assert.InDelta(t, 0.6, row.Confidence, 1e-9)
}

func TestResolveMinConfidence(t *testing.T) {
	cat := &fakeCatalog{results: []Video{
		{ID: "33333333333", Title: "Pasta al pomodoro fresco e veloce", ChannelID: "UC_allowed", Embeddable: true},
		{ID: "44444444444", Title: "Pasta al pomodoro", ChannelID: "UC_allowed", Embeddable: true},
	}}
	cfg := testConfig()
	cfg.MinConfidence = 0.8
	row := NewResolver(cat, cfg, nil).Resolve(context.Background(), models.Recipe{Title: "Pasta al pomodoro"})
	assert.Equal(t, "44444444444", row.YouTubeID)
}

func TestResolveMissIsEmptyRow(t *testing.T) {
	cat := &fakeCatalog{results: []Video{{ID: "11111111111", Title: "Pane", ChannelID: "UC_other", Embeddable: true}}}
	row := NewResolver(cat, testConfig(), nil).Resolve(context.Background(), models.Recipe{Title: "Pane"})
	assert.Equal(t, models.VideoIndexRow{Title: "Pane"}, row)
	assert.False(t, row.Resolved())
}

func TestResolveEmptyAllowlistNeverMatches(t *testing.T) {
	cat := &fakeCatalog{results: []Video{{ID: "11111111111", Title: "Pane", ChannelID: "UC_allowed", Embeddable: true}}}
	cfg := testConfig()
	cfg.Channels = nil
	row := NewResolver(cat, cfg, nil).Resolve(context.Background(), models.Recipe{Title: "Pane"})
	assert.False(t, row.Resolved())
	assert.Empty(t, cat.searches)
}

func TestResolveAllCountsTimeouts(t *testing.T) {
	cat := &fakeCatalog{block: true}
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond

	rows, stats, err := NewResolver(cat, cfg, nil).ResolveAll(context.Background(), []models.Recipe{{Title: "Lenta"}, {Title: "Lentissima"}})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Lenta", rows[0].Title)
	assert.False(t, rows[0].Resolved())
	assert.Equal(t, Stats{Unresolved: 2, TimedOut: 2}, stats)
	assert.Len(t, cat.searches, 2, "timed out lookups are not retried")
}

func TestResolveAllStats(t *testing.T) {
	cat := &fakeCatalog{
		videos:  map[string]Video{"aaaaaaaaaaa": {ID: "aaaaaaaaaaa", Title: "Torta", ChannelID: "UC_allowed", Embeddable: true}},
		results: []Video{{ID: "bbbbbbbbbbb", Title: "Pane fatto in casa", ChannelID: "UC_allowed", Embeddable: true}},
	}
	recipes := []models.Recipe{
		{Title: "Torta", YouTubeID: "aaaaaaaaaaa"},
		{Title: "Pane"},
	}
	rows, stats, err := NewResolver(cat, testConfig(), nil).ResolveAll(context.Background(), recipes)
	require.NoError(t, err)
	assert.Equal(t, Stats{Kept: 1, Matched: 1}, stats)
	assert.Equal(t, "aaaaaaaaaaa", rows[0].YouTubeID)
	assert.Equal(t, "bbbbbbbbbbb", rows[1].YouTubeID)
}

func TestResolveAllStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rows, _, err := NewResolver(&fakeCatalog{}, testConfig(), nil).ResolveAll(ctx, []models.Recipe{{Title: "A"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rows)
}

func TestAPICatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/videos"):
			if r.URL.Query().Get("id") != "dQw4w9WgXcQ" {
				_, _ = w.Write([]byte(`{"items":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"items":[{"id":"dQw4w9WgXcQ","snippet":{"title":"Pasta &amp; fagioli","channelId":"UC_allowed","channelTitle":"Cucina"},"status":{"embeddable":true}}]}`))
		case strings.HasSuffix(r.URL.Path, "/search"):
			assert.Equal(t, "video", r.URL.Query().Get("type"))
			assert.Equal(t, "true", r.URL.Query().Get("videoEmbeddable"))
			assert.Equal(t, "5", r.URL.Query().Get("maxResults"))
			_, _ = w.Write([]byte(`{"items":[
				{"id":{"kind":"youtube#channel","channelId":"UC_x"},"snippet":{"title":"Channel"}},
				{"id":{"kind":"youtube#video","videoId":"bbbbbbbbbbb"},"snippet":{"title":"Pane","channelId":"UC_allowed","channelTitle":"Cucina"}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cat, err := NewAPICatalog(context.Background(), "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	v, err := cat.Video(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, Video{ID: "dQw4w9WgXcQ", Title: "Pasta & fagioli", ChannelID: "UC_allowed", ChannelTitle: "Cucina", Embeddable: true}, v)

	_, err = cat.Video(context.Background(), "zzzzzzzzzzz")
	assert.ErrorIs(t, err, ErrNotFound)

	hits, err := cat.Search(context.Background(), "pane", 5)
	require.NoError(t, err)
	assert.Equal(t, []Video{{ID: "bbbbbbbbbbb", Title: "Pane", ChannelID: "UC_allowed", ChannelTitle: "Cucina", Embeddable: true}}, hits)
}
