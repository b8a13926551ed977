package scraper

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"ricettario/internal/normalize"
	"ricettario/pkg/models"
)

// SaveToDatabase mirrors recipes into the `recipes` table. It follows the
// corpus policy: rows already present are left untouched, except that a
// youtube_id attached to the corpus after the first sync fills an empty
// column. It returns the number of rows inserted or filled.
func SaveToDatabase(ctx context.Context, db *sql.DB, recipes []models.Recipe) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recipes (id, title, title_key, url, image, ingredients, steps, time_minutes, servings, tags, youtube_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET youtube_id = excluded.youtube_id
		WHERE recipes.youtube_id = '' AND excluded.youtube_id <> ''
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range recipes {
		ingredientsJSON, err := json.Marshal(nonNil(r.Ingredients))
		if err != nil {
			return 0, fmt.Errorf("marshal ingredients for %s: %w", r.ID, err)
		}
		stepsJSON, err := json.Marshal(nonNil(r.Steps))
		if err != nil {
			return 0, fmt.Errorf("marshal steps for %s: %w", r.ID, err)
		}
		tagsJSON, err := json.Marshal(nonNil(r.Tags))
		if err != nil {
			return 0, fmt.Errorf("marshal tags for %s: %w", r.ID, err)
		}

		res, err := stmt.ExecContext(
			ctx,
			r.ID,
			r.Title,
			normalize.TitleKey(r.Title),
			r.URL,
			r.Image,
			string(ingredientsJSON),
			string(stepsJSON),
			nullInt(r.Time),
			nullInt(r.Servings),
			string(tagsJSON),
			r.YouTubeID,
		)
		if err != nil {
			return 0, fmt.Errorf("exec insert for %s: %w", r.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// SaveVideoIndex replaces the mirrored video index. The index is derived
// data: the table is cleared and refilled in one transaction, so titles no
// longer in the index disappear from the mirror.
func SaveVideoIndex(ctx context.Context, db *sql.DB, rows []models.VideoIndexRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM video_index`); err != nil {
		return fmt.Errorf("clear video_index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO video_index (title_key, title, youtube_id, match_title, channel_title, channel_id, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title_key) DO UPDATE SET
		  title = excluded.title,
		  youtube_id = excluded.youtube_id,
		  match_title = excluded.match_title,
		  channel_title = excluded.channel_title,
		  channel_id = excluded.channel_id,
		  confidence = excluded.confidence
	`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			normalize.TitleKey(r.Title), r.Title, r.YouTubeID, r.MatchTitle, r.ChannelTitle, r.ChannelID, r.Confidence,
		); err != nil {
			return fmt.Errorf("exec upsert for %q: %w", r.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
