// Package corpus reads and writes the persisted recipe corpus and the
// resolver's video index.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ricettario/internal/normalize"
	"ricettario/pkg/models"
)

// ErrMalformed is returned when a corpus file is neither a JSON array nor
// an object with a "recipes" array.
var ErrMalformed = errors.New("malformed corpus")

// Shape is the top-level layout of a corpus file.
type Shape int

const (
	ShapeArray   Shape = iota // [ {...}, ... ]
	ShapeWrapped              // { "recipes": [ ... ], ... }
)

// Corpus is an in-memory corpus file. Save writes it back in the shape it
// was read in; other top-level keys of a wrapped file are kept as they were.
type Corpus struct {
	Recipes []models.Recipe

	shape Shape
	extra map[string]json.RawMessage
}

// Shape reports the layout the corpus will be written in.
func (c *Corpus) Shape() Shape { return c.shape }

// Load reads path. A missing file is an empty corpus, not an error.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Corpus{shape: ShapeArray}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes either corpus shape and folds legacy video aliases
// (ytid, videoId, video URL) into youtubeId.
func Parse(data []byte) (*Corpus, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &Corpus{shape: ShapeArray}, nil
	}

	var (
		items []json.RawMessage
		c     = &Corpus{}
	)
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		c.shape = ShapeArray
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		raw, ok := obj["recipes"]
		if !ok {
			return nil, fmt.Errorf("%w: object without recipes array", ErrMalformed)
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: recipes: %v", ErrMalformed, err)
		}
		delete(obj, "recipes")
		c.shape, c.extra = ShapeWrapped, obj
	default:
		return nil, fmt.Errorf("%w: unexpected %q", ErrMalformed, data[0])
	}

	c.Recipes = make([]models.Recipe, 0, len(items))
	for i, item := range items {
		r, err := decodeRecipe(item)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformed, i, err)
		}
		c.Recipes = append(c.Recipes, r)
	}
	return c, nil
}

type videoAliases struct {
	YTID    string `json:"ytid"`
	VideoID string `json:"videoId"`
	Video   string `json:"video"`
}

func decodeRecipe(raw json.RawMessage) (models.Recipe, error) {
	var r models.Recipe
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, err
	}
	if r.YouTubeID == "" {
		var a videoAliases
		_ = json.Unmarshal(raw, &a)
		for _, v := range []string{a.YTID, a.VideoID, a.Video} {
			if id := normalize.ExtractYouTubeID(v); id != "" {
				r.YouTubeID = id
				break
			}
		}
	}
	return r, nil
}

// Marshal renders the corpus in its shape, indented for diff-friendly files.
func (c *Corpus) Marshal() ([]byte, error) {
	recipes := c.Recipes
	if recipes == nil {
		recipes = []models.Recipe{}
	}
	if c.shape == ShapeArray {
		return json.MarshalIndent(recipes, "", "  ")
	}

	out := make(map[string]any, len(c.extra)+1)
	for k, v := range c.extra {
		out[k] = v
	}
	out["recipes"] = recipes
	return json.MarshalIndent(out, "", "  ")
}

// Save writes c to path atomically.
func Save(path string, c *Corpus) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	return WriteFileAtomic(path, append(data, '\n'))
}

// WriteFileAtomic writes data to a temp file next to path, syncs it and
// renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	committed = true
	return nil
}
