package cli

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/lvec/internal/client"
	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/ui"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store status and statistics",
		Long: `Display information about the store including:
- Storage path and size on disk
- Number of collections and documents
- Per-collection embedding function and health`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()

			c, err := openClient(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			stats, err := c.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}
			infos, err := c.ListCollections(ctx)
			if err != nil {
				return err
			}
			log.Debug("Loaded store status", "collections", stats.Collections, "documents", stats.Documents)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Header.Render("Store Status"))
			fmt.Fprintln(out)

			if cfg.IsEphemeral() {
				fmt.Fprintf(out, "  %s in memory (discarded on exit)\n", ui.Dim.Render("Storage:"))
			} else {
				fmt.Fprintf(out, "  %s %s\n", ui.Dim.Render("Storage:"), c.Path())
				fmt.Fprintf(out, "  %s %s\n", ui.Dim.Render("Size:"), formatBytes(stats.SizeBytes))
			}
			fmt.Fprintf(out, "  %s %d collections, %d documents\n", ui.Dim.Render("Contents:"), stats.Collections, stats.Documents)

			if len(infos) == 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Run 'lvec demo' or 'lvec collection create <name>' to get started.")
			}

			for _, info := range infos {
				fmt.Fprintln(out)
				fmt.Fprintf(out, "%s %s\n", ui.Highlight.Render("Collection:"), ui.Bold.Render(info.Name))
				fmt.Fprintf(out, "  %s %s (%s)\n", ui.Dim.Render("Model:"), info.Model, info.Provider)
				fmt.Fprintf(out, "  %s %d\n", ui.Dim.Render("Documents:"), info.Count)
				fmt.Fprintf(out, "  %s %s\n", ui.Dim.Render("Created:"), formatTime(info.CreatedAt))
				fmt.Fprintf(out, "  %s %s\n", ui.Dim.Render("Health:"), healthStatus(info))
			}

			// Show config info
			fmt.Fprintln(out)
			fmt.Fprintln(out, ui.Dim.Render("Configuration:"))
			fmt.Fprintf(out, "  Embedding Provider: %s\n", cfg.Embeddings.Provider)
			fmt.Fprintf(out, "  Token Encoding: %s\n", cfg.Tokens.Encoding)
			return nil
		},
	}
}

// healthStatus returns a health indicator for a collection.
func healthStatus(info client.CollectionInfo) string {
	if info.Count == 0 {
		return ui.Warning.Render("empty (no documents)")
	}
	if info.Dimensions == 0 {
		return ui.Warning.Render("no vectors (re-import may be needed)")
	}
	return ui.Success.Render("healthy")
}
