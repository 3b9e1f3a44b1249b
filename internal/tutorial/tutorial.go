// Package tutorial replays the travel-policies walkthrough against the lvec
// client: collections, document CRUD, durable storage, collection management
// and remote embeddings with token counting.
package tutorial

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nickcecere/lvec/internal/client"
	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/embeddings"
	"github.com/nickcecere/lvec/internal/tokens"
	"github.com/nickcecere/lvec/internal/ui"
)

// DefaultDir is where the durable steps keep their data.
const DefaultDir = "./lvec_db"

const ruleWidth = 70

// Step is one walkthrough step.
type Step struct {
	Number int
	Title  string
	run    func(r *Runner, ctx context.Context) error
}

var steps = []Step{
	{Number: 2, Title: "Creating your first collection", run: (*Runner).step2},
	{Number: 3, Title: "CRUD operations on documents", run: (*Runner).step3},
	{Number: 4, Title: "Persistent database", run: (*Runner).step4},
	{Number: 5, Title: "Managing collections", run: (*Runner).step5},
	{Number: 6, Title: "Remote embeddings and token counting", run: (*Runner).step6},
}

// Steps returns the available steps in order.
func Steps() []Step {
	return append([]Step(nil), steps...)
}

// RemoteFactory builds the embedding function used by step 6.
type RemoteFactory func() (embeddings.Service, error)

// Runner prints the walkthrough to a writer.
type Runner struct {
	out      io.Writer
	cfg      *config.Config
	dir      string
	embedder embeddings.Service
	remote   RemoteFactory
	counter  *tokens.Counter
}

// Option configures a Runner.
type Option func(*Runner)

// WithDir sets the durable directory used by steps 4 and 5.
func WithDir(dir string) Option {
	return func(r *Runner) {
		r.dir = dir
	}
}

// WithEmbedder sets the default embedding function.
func WithEmbedder(e embeddings.Service) Option {
	return func(r *Runner) {
		r.embedder = e
	}
}

// WithRemote sets how step 6 builds its remote embedding function.
func WithRemote(f RemoteFactory) Option {
	return func(r *Runner) {
		r.remote = f
	}
}

// NewRunner creates a Runner. The token encoding comes from cfg.
func NewRunner(out io.Writer, cfg *config.Config, opts ...Option) (*Runner, error) {
	counter, err := tokens.NewCounter(cfg.Tokens.Encoding)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		out:     out,
		cfg:     cfg,
		dir:     DefaultDir,
		counter: counter,
		remote: func() (embeddings.Service, error) {
			o := cfg.Embeddings.OpenAI
			svc, err := embeddings.NewOpenAIService(o.APIKey, o.Model, o.BaseURL, o.Dimensions)
			if err != nil {
				return nil, err
			}
			return svc, nil
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.embedder == nil {
		emb, err := embeddings.NewService(cfg)
		if err != nil {
			return nil, err
		}
		r.embedder = emb
	}
	return r, nil
}

// Dir returns the durable directory.
func (r *Runner) Dir() string {
	return r.dir
}

// Run runs a single step.
func (r *Runner) Run(ctx context.Context, number int) error {
	for _, s := range steps {
		if s.Number == number {
			log.Debug("Running tutorial step", "step", number, "title", s.Title)
			return s.run(r, ctx)
		}
	}
	return fmt.Errorf("unknown step %d (available: 2-6)", number)
}

// RunAll runs every step in order.
func (r *Runner) RunAll(ctx context.Context) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Run(ctx, s.Number); err != nil {
			return fmt.Errorf("step %d: %w", s.Number, err)
		}
	}
	return nil
}

func (r *Runner) ephemeral() (*client.Client, error) {
	return client.NewEphemeral(r.clientOptions()...)
}

func (r *Runner) persistent() (*client.Client, error) {
	return client.NewPersistent(r.dir, r.clientOptions()...)
}

func (r *Runner) clientOptions() []client.Option {
	return []client.Option{
		client.WithEmbedder(r.embedder),
		client.WithResolver(r.resolve),
	}
}

// resolve restores embedding functions for collections written by earlier runs.
func (r *Runner) resolve(provider, model string) (embeddings.Service, error) {
	if provider == string(embeddings.ProviderOpenAI) {
		return r.remote()
	}
	return embeddings.NewServiceForCollection(provider, model, r.cfg)
}

// Output helpers

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Runner) println(args ...any) {
	fmt.Fprintln(r.out, args...)
}

func (r *Runner) banner(title string) {
	rule := ui.HorizontalRule(ruleWidth)
	r.println(rule)
	r.println(ui.StepTitle.Render(title))
	r.println(rule)
}

func (r *Runner) section(n int, title string) {
	r.println()
	r.println(ui.HorizontalRule(ruleWidth))
	r.println(ui.Header.Render(fmt.Sprintf("%d. %s", n, title)))
	r.println(ui.HorizontalRule(ruleWidth))
}

func (r *Runner) ok(format string, args ...any) {
	r.println(ui.Success.Render("✓ " + fmt.Sprintf(format, args...)))
}

func (r *Runner) warn(format string, args ...any) {
	r.println(ui.Warning.Render("! " + fmt.Sprintf(format, args...)))
}

func (r *Runner) note(text string) {
	for _, line := range strings.Split(strings.Trim(text, "\n"), "\n") {
		r.println(ui.Dim.Render(line))
	}
}

func (r *Runner) label(key string, value any) {
	r.println("   " + ui.Label(key, value))
}

func (r *Runner) printMatches(group client.QueryResult) {
	r.printf("\nQuery: %q\n", group.Query)
	if len(group.Matches) == 0 {
		r.println(ui.Dim.Render("   (no results)"))
		return
	}
	for i, m := range group.Matches {
		r.printf("\n   Result %d: %s %s\n", i+1, ui.DocumentID.Render(m.ID), ui.FormatDistance(m.Distance))
		r.println(ui.DocumentText.Render(m.Document))
		if len(m.Metadata) > 0 {
			r.println("   " + ui.Dim.Render(formatMetadata(m.Metadata)))
		}
	}
}

func (r *Runner) printCollections(ctx context.Context, c *client.Client) error {
	infos, err := c.ListCollections(ctx)
	if err != nil {
		return err
	}
	r.printf("\nTotal collections: %d\n", len(infos))
	for _, info := range infos {
		r.printf("   • %s %s\n", ui.CollectionName.Render(info.Name), ui.Dim.Render(fmt.Sprintf("(%d documents)", info.Count)))
	}
	return nil
}

func formatMetadata(md client.Metadata) string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, md[k])
	}
	return strings.Join(parts, " ")
}
