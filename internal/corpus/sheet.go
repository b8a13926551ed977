package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"ricettario/internal/normalize"
	"ricettario/pkg/models"
)

// SheetColumns is the header written by WriteSheet and understood by ReadSheet.
var SheetColumns = []string{"title", "url", "image", "ingredients", "steps", "time", "servings", "tags", "youtubeId"}

var listSep = regexp.MustCompile(`\r?\n|\|`)

// ReadSheet reads a recipe sheet exported from the shared spreadsheet and
// runs every row through n. Rows that do not normalize come back as
// RejectInvalid rejections; only an unreadable sheet is an error.
func ReadSheet(r io.Reader, n *normalize.Normalizer) ([]models.Recipe, []Rejection, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := readHeader(cr)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet header: %w", err)
	}
	if _, ok := header["title"]; !ok {
		return nil, nil, fmt.Errorf("%w: sheet has no title column", ErrMalformed)
	}

	var (
		out      []models.Recipe
		rejected []Rejection
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read sheet row: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		c := models.RawCandidate{
			Strategy:    "csv",
			Title:       valueAt(header, row, "title"),
			URL:         valueAt(header, row, "url"),
			Image:       valueAt(header, row, "image"),
			Ingredients: splitCell(valueAt(header, row, "ingredients")),
			Steps:       splitCell(valueAt(header, row, "steps")),
			Time:        sheetDuration(valueAt(header, row, "time")),
			Servings:    valueAt(header, row, "servings"),
			Video:       firstNonEmpty(valueAt(header, row, "youtubeid"), valueAt(header, row, "youtube_id")),
			Tags:        splitTags(valueAt(header, row, "tags")),
		}
		rec, err := n.Normalize(c, models.PageMeta{}, c.URL)
		if err != nil {
			rejected = append(rejected, Rejection{ID: rec.ID, Title: c.Title, URL: c.URL, Reason: RejectInvalid})
			continue
		}
		out = append(out, rec)
	}
	return out, rejected, nil
}

// WriteSheet writes recipes in SheetColumns order. List cells are
// newline separated so ReadSheet can read them back.
func WriteSheet(w io.Writer, recipes []models.Recipe) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SheetColumns); err != nil {
		return err
	}
	for _, r := range recipes {
		ings := make([]string, 0, len(r.Ingredients))
		for _, ing := range r.Ingredients {
			ings = append(ings, ingredientLine(ing))
		}
		if err := cw.Write([]string{
			r.Title,
			r.URL,
			sheetImage(r.Image),
			strings.Join(ings, "\n"),
			strings.Join(r.Steps, "\n"),
			optionalInt(r.Time),
			optionalInt(r.Servings),
			strings.Join(r.Tags, ", "),
			r.YouTubeID,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func splitCell(s string) []string {
	var out []string
	for _, part := range listSep.Split(s, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitTags(s string) []string {
	return splitCell(strings.ReplaceAll(s, ",", "|"))
}

// sheetDuration accepts plain minutes as well as an ISO-8601 duration.
func sheetDuration(s string) string {
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return fmt.Sprintf("PT%dM", n)
	}
	return s
}

func ingredientLine(ing models.Ingredient) string {
	parts := make([]string, 0, 3)
	if ing.Qty != nil {
		parts = append(parts, ing.Qty.String())
	}
	if ing.Unit != "" {
		parts = append(parts, ing.Unit)
	}
	parts = append(parts, ing.Ref)
	return strings.Join(parts, " ")
}

// sheetImage leaves the placeholder out so a re-import does not resolve it
// against the recipe URL.
func sheetImage(img string) string {
	if img == models.PlaceholderImage {
		return ""
	}
	return img
}

func optionalInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
