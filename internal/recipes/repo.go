package recipes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ricettario/internal/normalize"
	"ricettario/pkg/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Repo reads the sqlite mirror written by sync-db.
type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	Q      string   // keyword search in title
	Tags   []string // any-match
	Limit  int
	Offset int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const recipeColumns = `id, title, url, image, ingredients, steps, time_minutes, servings, tags, youtube_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(s rowScanner) (models.Recipe, error) {
	var (
		r                          models.Recipe
		ingredientsJSON, stepsJSON string
		tagsJSON                   string
		timeMinutes, servings      sql.NullInt64
	)
	if err := s.Scan(
		&r.ID, &r.Title, &r.URL, &r.Image, &ingredientsJSON, &stepsJSON, &timeMinutes, &servings, &tagsJSON, &r.YouTubeID,
	); err != nil {
		return r, err
	}
	if timeMinutes.Valid {
		r.Time = models.IntPtr(int(timeMinutes.Int64))
	}
	if servings.Valid {
		r.Servings = models.IntPtr(int(servings.Int64))
	}
	_ = json.Unmarshal([]byte(ingredientsJSON), &r.Ingredients)
	_ = json.Unmarshal([]byte(stepsJSON), &r.Steps)
	_ = json.Unmarshal([]byte(tagsJSON), &r.Tags)
	return r, nil
}

// GetByID returns nil, nil when no row matches.
func (r *Repo) GetByID(ctx context.Context, id string) (*models.Recipe, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id)
	rec, err := scanRecipe(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByID: %w", err)
	}
	return &rec, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Recipe, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Recipe, 0, clampLimit(q.Limit))
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// VideoByTitle looks the video index up by folded title. nil, nil means
// the title was never resolved.
func (r *Repo) VideoByTitle(ctx context.Context, title string) (*models.VideoIndexRow, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT title, youtube_id, match_title, channel_title, channel_id, confidence
		FROM video_index
		WHERE title_key = ?
	`, normalize.TitleKey(title))

	var v models.VideoIndexRow
	if err := row.Scan(&v.Title, &v.YouTubeID, &v.MatchTitle, &v.ChannelTitle, &v.ChannelID, &v.Confidence); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan video: %w", err)
	}
	return &v, nil
}

func clampLimit(n int) int {
	if n <= 0 || n > MaxLimit {
		return DefaultLimit
	}
	return n
}

// buildListSQL builds either COUNT(*) or SELECT list.
// The tag filter is any-match, done with LIKE inside the stored JSON text.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	sqlStr := `SELECT ` + recipeColumns + ` FROM recipes`
	if countOnly {
		sqlStr = `SELECT COUNT(*) FROM recipes`
	}

	var where []string
	var args []any

	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "title_key LIKE ?")
		args = append(args, "%"+normalize.TitleKey(kw)+"%")
	}

	var tagOr []string
	for _, t := range q.Tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		tagOr = append(tagOr, "LOWER(tags) LIKE ?")
		args = append(args, `%"`+strings.ToLower(t)+`"%`)
	}
	if len(tagOr) > 0 {
		where = append(where, "("+strings.Join(tagOr, " OR ")+")")
	}

	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		sqlStr += " ORDER BY title_key ASC LIMIT ? OFFSET ?"
		args = append(args, clampLimit(q.Limit), offset)
	}
	return sqlStr, args
}
