package recipes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ricettario/pkg/models"
)

var cols = []string{"id", "title", "url", "image", "ingredients", "steps", "time_minutes", "servings", "tags", "youtube_id"}

func newRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := gin.New()
	NewHandler(NewRepo(db), nil).RegisterRoutes(r.Group(""))
	return r, mock
}

func get(r *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestBuildListSQL(t *testing.T) {
	sqlStr, args := buildListSQL(ListQuery{Q: " Crème ", Tags: []string{"Dolci", " ", "primi"}, Limit: 500, Offset: -3}, false)
	assert.Contains(t, sqlStr, "WHERE title_key LIKE ? AND (LOWER(tags) LIKE ? OR LOWER(tags) LIKE ?)")
	assert.Contains(t, sqlStr, "LIMIT ? OFFSET ?")
	assert.Equal(t, []any{"%creme%", `%"dolci"%`, `%"primi"%`, DefaultLimit, 0}, args)

	sqlStr, args = buildListSQL(ListQuery{}, true)
	assert.Equal(t, "SELECT COUNT(*) FROM recipes", sqlStr)
	assert.Empty(t, args)
}

func TestListRecipes(t *testing.T) {
	r, mock := newRouter(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM recipes WHERE \(LOWER\(tags\) LIKE \? OR LOWER\(tags\) LIKE \?\)`).
		WithArgs(`%"dolci"%`, `%"primi"%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, title, .* FROM recipes WHERE .* LIMIT \? OFFSET \?`).
		WithArgs(`%"dolci"%`, `%"primi"%`, 5, 0).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"torta", "Torta", "https://example.com/torta", models.PlaceholderImage,
			`[{"ref":"farina","qty":200,"unit":"g"}]`, `["Mescola","Inforna"]`, 45, nil, `["Dolci"]`, "",
		))

	w := get(r, "/recipes?tag=Dolci,Primi&limit=5")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Total int             `json:"total"`
		Limit int             `json:"limit"`
		Items []models.Recipe `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, 5, body.Limit)
	require.Len(t, body.Items, 1)
	got := body.Items[0]
	assert.Equal(t, "torta", got.ID)
	assert.Equal(t, []models.Ingredient{{Ref: "farina", Qty: models.Num(200), Unit: "g"}}, got.Ingredients)
	require.NotNil(t, got.Time)
	assert.Equal(t, 45, *got.Time)
	assert.Nil(t, got.Servings)
	assert.Equal(t, []string{"Dolci"}, got.Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecipesCountFails(t *testing.T) {
	r, mock := newRouter(t)
	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(assert.AnError)

	w := get(r, "/recipes")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetRecipe(t *testing.T) {
	r, mock := newRouter(t)
	mock.ExpectQuery(`FROM recipes WHERE id = \?`).WithArgs("torta").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("torta", "Torta", "", "", `[]`, `[]`, nil, 8, `[]`, "dQw4w9WgXcQ"))
	mock.ExpectQuery(`FROM recipes WHERE id = \?`).WithArgs("sparita").
		WillReturnRows(sqlmock.NewRows(cols))

	w := get(r, "/recipes/torta")
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Recipe
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "dQw4w9WgXcQ", got.YouTubeID)
	require.NotNil(t, got.Servings)
	assert.Equal(t, 8, *got.Servings)

	assert.Equal(t, http.StatusNotFound, get(r, "/recipes/sparita").Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoLookup(t *testing.T) {
	r, mock := newRouter(t)
	vcols := []string{"title", "youtube_id", "match_title", "channel_title", "channel_id", "confidence"}
	mock.ExpectQuery(`FROM video_index`).WithArgs("pasta al pomodoro").
		WillReturnRows(sqlmock.NewRows(vcols).AddRow("Pasta al Pomodoro", "dQw4w9WgXcQ", "Pasta al pomodoro fresco", "Cucina", "UC1", 0.75))
	mock.ExpectQuery(`FROM video_index`).WithArgs("pane").
		WillReturnRows(sqlmock.NewRows(vcols).AddRow("Pane", "", "", "", "", 0))

	w := get(r, "/videos?title=Pasta%20al%20Pomodoro")
	require.Equal(t, http.StatusOK, w.Code)
	var v models.VideoIndexRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "dQw4w9WgXcQ", v.YouTubeID)
	assert.InDelta(t, 0.75, v.Confidence, 1e-9)

	assert.Equal(t, http.StatusNotFound, get(r, "/videos?title=Pane").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/videos").Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
