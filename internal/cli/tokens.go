package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/tokens"
	"github.com/nickcecere/lvec/internal/ui"
)

func newTokensCmd() *cobra.Command {
	var (
		model  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "tokens <text>...",
		Short: "Count tokens and estimate embedding cost",
		Long: `Count the tokens in each text with the configured encoding and estimate
what embedding them with a remote model would cost. Text is read from stdin
when no arguments are given.

Examples:
  lvec tokens "Hello" "ChromaDB is awesome!"
  cat policy.txt | lvec tokens --model text-embedding-3-large`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			if model == "" {
				model = cfg.Embeddings.OpenAI.Model
			}

			texts := args
			if len(texts) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				texts = []string{strings.TrimRight(string(data), "\n")}
			}

			counter, err := tokens.NewCounter(cfg.Tokens.Encoding)
			if err != nil {
				return err
			}
			summary := counter.Summarize(model, texts)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, summary)
			}

			for _, c := range summary.Counts {
				fmt.Fprintf(out, "%s %q\n", ui.Dim.Render("Text:"), c.Text)
				fmt.Fprintf(out, "%s %d\n\n", ui.Dim.Render("Tokens:"), c.Tokens)
			}
			fmt.Fprintf(out, "Total: %d tokens (%s)\n", summary.Total, summary.Encoding)
			if price, ok := tokens.PricePerMillion(model); ok {
				fmt.Fprintf(out, "Estimated cost with %s: %s\n", model, ui.FormatCost(summary.Cost))
				fmt.Fprintln(out, ui.Dim.Render(fmt.Sprintf("(at $%.2f per 1M tokens)", price)))
			} else {
				fmt.Fprintln(out, ui.Warning.Render("No price known for "+model))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "embedding model to price (default: embeddings.openai.model)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
