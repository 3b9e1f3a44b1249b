package cli

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/lvec/internal/client"
	"github.com/nickcecere/lvec/internal/ui"
)

func newQueryCmd() *cobra.Command {
	var (
		nResults int
		where    []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "query <collection> <text>...",
		Short: "Find the documents closest to natural language queries",
		Long: `Embed each query text with the collection's embedding function and
return the nearest documents by cosine distance. Lower distance is closer.

Examples:
  lvec query travel_policies "What is the policy for international flights?" -n 2
  lvec query travel_policies "portal" --where policy_type=flights
  lvec query travel_policies "hotel budget" "train travel" --json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseMetadata(where)
			if err != nil {
				return err
			}

			c, col, err := lookupCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			log.Debug("Querying collection", "collection", col.Name(), "queries", len(args)-1, "n", nResults)
			results, err := col.Query(cmd.Context(), client.QueryRequest{
				Texts:    args[1:],
				NResults: nResults,
				Where:    filter,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, results)
			}

			for gi, group := range results {
				if gi > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, ui.Header.Render(fmt.Sprintf("Query: %q", group.Query)))
				if len(group.Matches) == 0 {
					fmt.Fprintln(out, ui.Dim.Render("  (no results)"))
					continue
				}
				for i, m := range group.Matches {
					fmt.Fprintf(out, "\n  %d. %s %s\n", i+1, ui.DocumentID.Render(m.ID), ui.FormatDistance(m.Distance))
					fmt.Fprintln(out, ui.DocumentText.Render(m.Document))
					if len(m.Metadata) > 0 {
						fmt.Fprintln(out, "    "+ui.Dim.Render(formatMetadata(m.Metadata)))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&nResults, "n-results", "n", client.DefaultNResults, "number of results per query")
	cmd.Flags().StringArrayVar(&where, "where", nil, "metadata filter as key=value (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
