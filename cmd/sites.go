package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "Lists the supported sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			orchestrator := appInstance.Orchestrator()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Site", "Host", "Index", "Max Pages", "Two Phase"})
			for _, id := range orchestrator.Sites() {
				site, _ := orchestrator.Site(id)
				var maxPages any = "-"
				if site.MaxPages > 0 {
					maxPages = site.MaxPages
				}
				t.AppendRow(table.Row{id, site.Host, site.IndexURL(1), maxPages, site.TwoPhase})
			}
			t.Render()
			return nil
		},
	}
}
