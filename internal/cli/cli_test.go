package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ricettario/internal/corpus"
	"ricettario/internal/metrics"
	"ricettario/pkg/database"
	"ricettario/pkg/logger"
	"ricettario/pkg/models"
)

const recipePage = `<html><head>
<script type="application/ld+json">{"@type":"Recipe","name":"Torta di mele","recipeIngredient":["3 mele","200g farina"],"recipeInstructions":["Sbuccia le mele","Inforna"],"recipeCategory":"Dolci"}</script>
</head></html>`

type testEnv struct {
	dir    string
	corpus string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	env := testEnv{dir: dir, corpus: filepath.Join(dir, "recipes.json")}
	cfg := "corpus:\n  path: " + env.corpus + "\n  video_index: " + filepath.Join(dir, "videos.json") +
		"\ndatabase:\n  path: " + filepath.Join(dir, "ricettario.db") +
		"\nfetch:\n  retries: -1\n  timeout: 2s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644))
	return env
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := &App{Version: "test", newLogger: func(logger.Config) (logger.Logger, error) { return logger.NewNop(), nil }}
	root := newRoot(app)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScrapeMergesIntoCorpus(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ricette/torta" {
			_, _ = w.Write([]byte(recipePage))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	sources := filepath.Join(env.dir, "sources.txt")
	require.NoError(t, os.WriteFile(sources, []byte(srv.URL+"/ricette/torta\n"+srv.URL+"/ricette/sparita\nnot a url\n"), 0o644))
	metricsFile := filepath.Join(env.dir, "metrics.prom")

	out, err := run(t, "scrape", "--sources", sources, "--metrics-file", metricsFile)
	require.NoError(t, err)
	assert.Contains(t, out, "torta-di-mele")
	assert.Contains(t, out, "fetch_error")

	c, err := corpus.Load(env.corpus)
	require.NoError(t, err)
	require.Len(t, c.Recipes, 1)
	assert.Equal(t, "Torta di mele", c.Recipes[0].Title)
	assert.Equal(t, []string{"Dolci"}, c.Recipes[0].Tags)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `ricettario_pages_total{outcome="ok",strategy="jsonld"} 1`)

	// a second run finds nothing new
	_, err = run(t, "scrape", "--sources", sources)
	require.NoError(t, err)
	c, err = corpus.Load(env.corpus)
	require.NoError(t, err)
	assert.Len(t, c.Recipes, 1)
}

func TestScrapeWithoutValidSourcesFails(t *testing.T) {
	env := newTestEnv(t)
	sources := filepath.Join(env.dir, "sources.txt")
	require.NoError(t, os.WriteFile(sources, []byte("# nothing here\nftp://example.com/x\n"), 0o644))

	_, err := run(t, "scrape", "--sources", sources)
	require.Error(t, err)
	_, statErr := os.Stat(env.corpus)
	assert.True(t, os.IsNotExist(statErr), "no corpus is written on a failed run")
}

func TestScrapeKeepsMalformedCorpusUntouched(t *testing.T) {
	env := newTestEnv(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(recipePage))
	}))
	defer srv.Close()
	require.NoError(t, os.WriteFile(env.corpus, []byte(`{"version":1}`), 0o644))
	sources := filepath.Join(env.dir, "sources.txt")
	require.NoError(t, os.WriteFile(sources, []byte(srv.URL+"/ricette/torta\n"), 0o644))

	_, err := run(t, "scrape", "--sources", sources)
	assert.ErrorIs(t, err, corpus.ErrMalformed)
	assert.Zero(t, hits.Load(), "no page is fetched when the corpus cannot be read")
	data, err := os.ReadFile(env.corpus)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))
}

func TestCSVRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	sheet := filepath.Join(env.dir, "sheet.csv")
	require.NoError(t, os.WriteFile(sheet, []byte("title,url,ingredients,steps,time\n"+
		"Pasta e ceci,https://example.com/pasta-ceci,\"200 g ceci|160 g pasta\",\"Cuoci i ceci|Aggiungi la pasta\",40\n"+
		"Vuota,,,,\n"), 0o644))

	out, err := run(t, "import-csv", sheet)
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "accepted")

	c, err := corpus.Load(env.corpus)
	require.NoError(t, err)
	require.Len(t, c.Recipes, 1)
	assert.Equal(t, "pasta-e-ceci", c.Recipes[0].ID)

	exported := filepath.Join(env.dir, "out", "export.csv")
	_, err = run(t, "export-csv", exported)
	require.NoError(t, err)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "title,url,image,ingredients,steps,time,servings,tags,youtubeId\n"))
	assert.Contains(t, string(data), "Pasta e ceci")
}

func TestImportCSVKeepsMalformedCorpusUntouched(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.corpus, []byte(`[{"id":`), 0o644))
	sheet := filepath.Join(env.dir, "sheet.csv")
	require.NoError(t, os.WriteFile(sheet, []byte("title,ingredients,steps\nPasta,pasta,Cuoci\n"), 0o644))

	_, err := run(t, "import-csv", sheet)
	assert.ErrorIs(t, err, corpus.ErrMalformed)
	data, err := os.ReadFile(env.corpus)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":`, string(data))
}

func TestSyncDBAndRouter(t *testing.T) {
	env := newTestEnv(t)
	c := &corpus.Corpus{Recipes: []models.Recipe{{
		ID:          "risotto",
		Title:       "Risotto",
		URL:         "https://example.com/risotto",
		Image:       models.PlaceholderImage,
		Ingredients: []models.Ingredient{{Ref: "riso", Qty: models.Num(320), Unit: "g"}},
		Steps:       []string{"Tosta il riso"},
		Tags:        []string{"Primi"},
	}}}
	require.NoError(t, corpus.Save(env.corpus, c))
	require.NoError(t, corpus.SaveVideoIndex(filepath.Join(env.dir, "videos.json"), []models.VideoIndexRow{
		{Title: "Risotto", YouTubeID: "dQw4w9WgXcQ", ChannelID: "UC1", Confidence: 1},
	}))

	_, err := run(t, "sync-db")
	require.NoError(t, err)
	// mirroring twice is a no-op
	_, err = run(t, "sync-db")
	require.NoError(t, err)

	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(env.dir, "ricettario.db")})
	require.NoError(t, err)
	defer db.Close()

	gin.SetMode(gin.TestMode)
	router := newRouter(db, logger.NewNop(), metrics.New(), "test.db", env.corpus)

	get := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		return w
	}

	w := get("/recipes?tag=primi")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Total int             `json:"total"`
		Items []models.Recipe `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, c.Recipes[0], list.Items[0])

	assert.Equal(t, http.StatusOK, get("/recipes/risotto").Code)
	assert.Equal(t, http.StatusOK, get("/videos?title=risotto").Code)
	assert.Equal(t, http.StatusOK, get("/health").Code)
	assert.Equal(t, http.StatusOK, get("/metrics").Code)

	w = get("/corpus")
	require.Equal(t, http.StatusOK, w.Code)
	var raw []models.Recipe
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, c.Recipes, raw)
}

func TestSyncDBPicksUpLaterChanges(t *testing.T) {
	env := newTestEnv(t)
	videos := filepath.Join(env.dir, "videos.json")
	c := &corpus.Corpus{Recipes: []models.Recipe{{
		ID:          "risotto",
		Title:       "Risotto",
		Image:       models.PlaceholderImage,
		Ingredients: []models.Ingredient{{Ref: "riso"}},
		Steps:       []string{"Tosta il riso"},
	}}}
	require.NoError(t, corpus.Save(env.corpus, c))
	require.NoError(t, corpus.SaveVideoIndex(videos, []models.VideoIndexRow{
		{Title: "Risotto", YouTubeID: "dQw4w9WgXcQ"},
		{Title: "Tiramisù", YouTubeID: "9bZkp7q19f0"},
	}))
	_, err := run(t, "sync-db")
	require.NoError(t, err)

	c.Recipes[0].YouTubeID = "dQw4w9WgXcQ"
	require.NoError(t, corpus.Save(env.corpus, c))
	require.NoError(t, corpus.SaveVideoIndex(videos, []models.VideoIndexRow{
		{Title: "Risotto", YouTubeID: "dQw4w9WgXcQ"},
	}))
	_, err = run(t, "sync-db")
	require.NoError(t, err)

	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(env.dir, "ricettario.db")})
	require.NoError(t, err)
	defer db.Close()

	var youtubeID string
	require.NoError(t, db.QueryRow(`SELECT youtube_id FROM recipes WHERE id = ?`, "risotto").Scan(&youtubeID))
	assert.Equal(t, "dQw4w9WgXcQ", youtubeID)

	var titles []string
	rows, err := db.Query(`SELECT title FROM video_index ORDER BY title`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var title string
		require.NoError(t, rows.Scan(&title))
		titles = append(titles, title)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Risotto"}, titles)
}

func TestResolveRequiresAPIKey(t *testing.T) {
	newTestEnv(t)
	t.Setenv("RICETTARIO_YOUTUBE_API_KEY", "")
	_, err := run(t, "resolve")
	assert.ErrorContains(t, err, "youtube.api_key")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "ricettario version test\n", out)
}
