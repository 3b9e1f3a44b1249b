// Package cli implements the command-line interface for lvec.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nickcecere/lvec/internal/client"
	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/embeddings"
	"github.com/nickcecere/lvec/internal/ui"
)

var (
	// Version information set at build time
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	debug     bool
	dbPath    string
	ephemeral bool
)

// SetVersionInfo sets the version information from build flags.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// NewRootCmd builds the lvec command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lvec",
		Short: "Local vector store for learning semantic search",
		Long: `lvec is a small local vector database with a guided tutorial.

Documents live in named collections. Each collection embeds its documents
with one embedding function (a built-in hashing model by default, or Ollama
and OpenAI) and answers natural language queries by cosine distance.

Examples:
  # Walk through the tutorial
  lvec demo

  # Add a document and query it
  lvec add travel_policies --id flight_policy_01 --doc "Economy class for domestic flights."
  lvec query travel_policies "What is the flight policy?"

  # Load a folder of text files
  lvec import ./handbook`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.SetDebug(debug)
			if debug {
				log.Debug("Debug logging enabled")
			}

			if err := config.Load(cfgFile); err != nil {
				log.Warn("Failed to load config", "error", err)
			}

			cfg := config.Get()
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			if ephemeral {
				cfg.Database.Ephemeral = true
			}
			return nil
		},
	}

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/lvec/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "storage directory (overrides database.path)")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "use an in-memory store that is discarded on exit")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(
		newDemoCmd(),
		newGuideCmd(),
		newCollectionCmd(),
		newAddCmd(false),
		newAddCmd(true),
		newQueryCmd(),
		newGetCmd(),
		newDeleteCmd(),
		newCountCmd(),
		newPeekCmd(),
		newTokensCmd(),
		newImportCmd(),
		newWatchCmd(),
		newMcpCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

func init() {
	ui.InitLogger()
}

// newVersionCmd shows version information
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lvec %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// openClient opens the configured store with the configured embedding function.
func openClient(cfg *config.Config) (*client.Client, error) {
	emb, err := embeddings.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}

	opts := []client.Option{
		client.WithEmbedder(emb),
		client.WithResolver(embeddings.Resolver(cfg)),
	}
	if cfg.IsEphemeral() {
		log.Debug("Opening in-memory store")
		return client.NewEphemeral(opts...)
	}

	log.Debug("Opening store", "path", cfg.Database.Path)
	c, err := client.NewPersistent(cfg.Database.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return c, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, onSignal func(os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			if onSignal != nil {
				onSignal(sig)
			}
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// parseMetadata turns key=value pairs into metadata. Whole numbers become
// integers, other numbers floats, and lowercase true/false booleans.
func parseMetadata(pairs []string) (client.Metadata, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	md := make(client.Metadata, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q (expected key=value)", pair)
		}
		md[key] = parseValue(value)
	}
	return md, nil
}

func parseValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	// If today, show time only
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return "today at " + t.Format("15:04")
	}

	// If this year, omit year
	if t.Year() == now.Year() {
		return t.Format("Jan 2 at 15:04")
	}

	return t.Format("Jan 2, 2006 at 15:04")
}

// formatBytes formats bytes as human-readable string.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// truncatePath shortens a path for display.
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}
