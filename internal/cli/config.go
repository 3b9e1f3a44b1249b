package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/ui"
)

func newConfigCmd() *cobra.Command {
	var showPath bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long: `Display current configuration settings and config file locations.

Examples:
  # Show current configuration
  lvec config

  # Show config file paths
  lvec config --path`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			out := cmd.OutOrStdout()

			if showPath {
				fmt.Fprintln(out, ui.Header.Render("Configuration Paths"))
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Global config: %s\n", config.GlobalConfigPath())
				fmt.Fprintf(out, "Local config:  .lvecrc.yaml (searched from cwd upward)\n")
				fmt.Fprintf(out, "Active config: %s\n", config.ConfigFilePath())
				fmt.Fprintf(out, "Database:      %s\n", config.DatabaseFile(cfg.Database.Path))
				return nil
			}

			fmt.Fprintln(out, ui.Header.Render("Current Configuration"))
			fmt.Fprintln(out)

			fmt.Fprintln(out, ui.Bold.Render("Embeddings:"))
			fmt.Fprintf(out, "  Provider: %s\n", cfg.Embeddings.Provider)
			fmt.Fprintf(out, "  Local Dimensions: %d\n", cfg.Embeddings.Local.Dimensions)
			fmt.Fprintf(out, "  Ollama URL: %s\n", cfg.Embeddings.Ollama.URL)
			fmt.Fprintf(out, "  Ollama Model: %s\n", cfg.Embeddings.Ollama.Model)
			fmt.Fprintf(out, "  OpenAI Model: %s\n", cfg.Embeddings.OpenAI.Model)
			if cfg.Embeddings.OpenAI.BaseURL != "" {
				fmt.Fprintf(out, "  OpenAI Base URL: %s\n", cfg.Embeddings.OpenAI.BaseURL)
			}
			key := "not set"
			if cfg.Embeddings.OpenAI.APIKey != "" {
				key = "set"
			}
			fmt.Fprintf(out, "  OpenAI API Key: %s\n", key)
			fmt.Fprintln(out)

			fmt.Fprintln(out, ui.Bold.Render("Database:"))
			if cfg.IsEphemeral() {
				fmt.Fprintln(out, "  Mode: in memory")
			} else {
				fmt.Fprintf(out, "  Path: %s\n", cfg.Database.Path)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, ui.Bold.Render("Tokens:"))
			fmt.Fprintf(out, "  Encoding: %s\n", cfg.Tokens.Encoding)
			fmt.Fprintln(out)

			fmt.Fprintln(out, ui.Bold.Render("Import:"))
			fmt.Fprintf(out, "  Max File Size: %d bytes\n", cfg.Import.MaxFileSize)
			fmt.Fprintf(out, "  Max File Count: %d\n", cfg.Import.MaxFileCount)
			fmt.Fprintf(out, "  Chunk Size: %d\n", cfg.Import.ChunkSize)
			fmt.Fprintf(out, "  Chunk Overlap: %d\n", cfg.Import.ChunkOverlap)
			fmt.Fprintln(out)

			fmt.Fprintln(out, ui.Bold.Render("Ignore Patterns:"))
			fmt.Fprintf(out, "  %d patterns configured\n", len(cfg.Ignore))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showPath, "path", false, "show config file paths")
	return cmd
}
