package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"ricettario/internal/normalize"
	"ricettario/pkg/models"
)

// LoadVideoIndex reads the resolver output. A missing file yields no rows;
// the index is disposable and regenerated on every resolve run.
func LoadVideoIndex(path string) ([]models.VideoIndexRow, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read video index %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var rows []models.VideoIndexRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrMalformed, err)
	}
	return rows, nil
}

// SaveVideoIndex writes rows as a JSON array, atomically.
func SaveVideoIndex(path string, rows []models.VideoIndexRow) error {
	if rows == nil {
		rows = []models.VideoIndexRow{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encode video index: %w", err)
	}
	return WriteFileAtomic(path, append(data, '\n'))
}

// VideoLookup indexes rows by normalized title, the way the UI looks them
// up. Later rows win.
func VideoLookup(rows []models.VideoIndexRow) map[string]models.VideoIndexRow {
	out := make(map[string]models.VideoIndexRow, len(rows))
	for _, r := range rows {
		out[normalize.TitleKey(r.Title)] = r
	}
	return out
}

// ApplyVideos copies resolved ids onto recipes that have none and returns
// how many were updated. Existing ids are left alone.
func ApplyVideos(recipes []models.Recipe, rows []models.VideoIndexRow) int {
	lookup := VideoLookup(rows)
	n := 0
	for i := range recipes {
		if recipes[i].YouTubeID != "" {
			continue
		}
		if row, ok := lookup[normalize.TitleKey(recipes[i].Title)]; ok && row.Resolved() {
			recipes[i].YouTubeID = row.YouTubeID
			n++
		}
	}
	return n
}
