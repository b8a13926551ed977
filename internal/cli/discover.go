package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"ricettario/pkg/logger"
)

func newDiscoverCommand(app *App) *cobra.Command {
	var sources string
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the recipe pages the configured sources expand to, without scraping them",
		RunE: func(cmd *cobra.Command, args []string) error {
			srcs, err := app.loadSources(sources)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Source", "URL"})
			total := 0
			for _, s := range srcs {
				urls, err := s.URLs(cmd.Context())
				if err != nil {
					app.Log.Warn("Source skipped", logger.String("source", s.Name()), logger.Error(err))
					continue
				}
				for _, u := range urls {
					t.AppendRow(table.Row{s.Name(), u})
				}
				total += len(urls)
			}
			t.AppendFooter(table.Row{fmt.Sprintf("%d sources", len(srcs)), fmt.Sprintf("%d pages", total)})
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&sources, "sources", "s", "sources.txt", "sources file (one URL per line, or YAML descriptors)")
	return cmd
}
