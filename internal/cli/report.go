package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"ricettario/internal/corpus"
	"ricettario/internal/scraper"
	"ricettario/internal/youtube"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	return t
}

// renderReport prints one row per page, failures included, then the totals.
func renderReport(out io.Writer, rep *scraper.Report) {
	t := newTable(out)
	t.SetTitle(fmt.Sprintf("Run %s", rep.RunID))
	t.AppendHeader(table.Row{"URL", "Outcome", "Strategy", "Recipe / Reason"})
	for _, p := range rep.Pages {
		detail := p.Reason
		if p.Recipe != nil {
			detail = p.Recipe.ID
		}
		t.AppendRow(table.Row{p.URL, p.Outcome, p.Strategy, detail})
	}
	counts := rep.Counts()
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d pages in %s", len(rep.Pages), rep.Finished.Sub(rep.Started).Round(time.Millisecond)),
		fmt.Sprintf("ok %d", counts[scraper.OutcomeOK]),
		fmt.Sprintf("no candidate %d", counts[scraper.OutcomeNoCandidate]),
		fmt.Sprintf("fetch errors %d, invalid %d", counts[scraper.OutcomeFetchError], counts[scraper.OutcomeInvalid]),
	})
	t.Render()
}

func renderMerge(out io.Writer, res corpus.MergeResult) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Existing", "Accepted", "Invalid", "Duplicate", "Total"})
	t.AppendRow(table.Row{res.Stats.Existing, res.Stats.Accepted, res.Stats.Invalid, res.Stats.Duplicate, len(res.Recipes)})
	t.Render()
}

func renderResolver(out io.Writer, stats youtube.Stats, rows int) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Recipes", "Kept", "Matched", "Unresolved", "Timed out"})
	t.AppendRow(table.Row{rows, stats.Kept, stats.Matched, stats.Unresolved, stats.TimedOut})
	t.Render()
}
