// Package importer loads directories of text files into a collection, one
// document per chunk.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nickcecere/lvec/internal/client"
	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/fs"
)

// Metadata keys written on every imported document.
const (
	MetaSource    = "source"
	MetaChunk     = "chunk"
	MetaHash      = "hash"
	MetaStartLine = "start_line"
	MetaEndLine   = "end_line"
	MetaHeading   = "heading"
)

const defaultBatchSize = 50

// Importer keeps a collection in sync with the files under a directory.
type Importer struct {
	client  *client.Client
	cfg     *config.Config
	chunker *fs.TextChunker

	progress Progress
	mu       sync.Mutex
}

// Progress tracks an import run.
type Progress struct {
	TotalFiles    int
	ImportedFiles int
	SkippedFiles  int
	RemovedFiles  int
	TotalChunks   int
	Errors        int
	StartTime     time.Time
	CurrentFile   string
}

// ProgressFunc is called after each file.
type ProgressFunc func(Progress)

// Options configures an import.
type Options struct {
	// Collection defaults to the directory name.
	Collection string

	Path string

	Extensions     []string
	IgnorePatterns []string

	// Force re-imports files whose hash is unchanged.
	Force bool

	// Prune deletes documents whose source file no longer exists.
	Prune bool

	BatchSize  int
	OnProgress ProgressFunc
}

// New creates an Importer writing through c.
func New(c *client.Client, cfg *config.Config) *Importer {
	return &Importer{
		client: c,
		cfg:    cfg,
		chunker: fs.NewTextChunker(fs.ChunkOptions{
			ChunkSize:    cfg.Import.ChunkSize,
			ChunkOverlap: cfg.Import.ChunkOverlap,
		}),
	}
}

// Import walks opts.Path and writes every changed file into the collection.
func (im *Importer) Import(ctx context.Context, opts Options) (Progress, error) {
	absPath, err := filepath.Abs(opts.Path)
	if err != nil {
		return Progress{}, fmt.Errorf("failed to resolve path: %w", err)
	}

	name, err := CollectionName(opts.Collection, absPath)
	if err != nil {
		return Progress{}, err
	}

	col, err := im.client.GetOrCreateCollection(ctx, name)
	if err != nil {
		return Progress{}, err
	}

	walker, err := im.newWalker(absPath, opts)
	if err != nil {
		return Progress{}, err
	}

	im.mu.Lock()
	im.progress = Progress{StartTime: time.Now()}
	im.mu.Unlock()

	var files []fs.FileInfo
	if err := walker.Walk(func(fi fs.FileInfo) error {
		files = append(files, fi)
		return nil
	}); err != nil {
		return im.Progress(), fmt.Errorf("failed to walk directory: %w", err)
	}

	im.update(func(p *Progress) { p.TotalFiles = len(files) })
	log.Info("Found files to import", "count", len(files), "collection", name)

	seen := make(map[string]bool, len(files))
	for _, fi := range files {
		if err := ctx.Err(); err != nil {
			return im.Progress(), err
		}

		seen[fi.RelPath] = true
		im.update(func(p *Progress) { p.CurrentFile = fi.RelPath })

		imported, err := im.importFile(ctx, col, fi, opts)
		if err != nil {
			log.Warn("Failed to import file", "path", fi.RelPath, "error", err)
			im.update(func(p *Progress) { p.Errors++ })
			continue
		}

		im.update(func(p *Progress) {
			if imported {
				p.ImportedFiles++
			} else {
				p.SkippedFiles++
			}
		})
		if opts.OnProgress != nil {
			opts.OnProgress(im.Progress())
		}
	}

	if opts.Prune {
		if err := im.prune(ctx, col, seen); err != nil {
			return im.Progress(), err
		}
	}

	p := im.Progress()
	log.Info("Import complete",
		"collection", name,
		"imported", p.ImportedFiles,
		"unchanged", p.SkippedFiles,
		"removed", p.RemovedFiles,
		"chunks", p.TotalChunks,
		"duration", time.Since(p.StartTime).Round(time.Millisecond),
	)
	return p, nil
}

// ImportFile re-imports a single file below root. Used by the watcher.
func (im *Importer) ImportFile(ctx context.Context, collection, root, path string) error {
	col, err := im.client.GetOrCreateCollection(ctx, collection)
	if err != nil {
		return err
	}

	walker, err := im.newWalker(root, Options{})
	if err != nil {
		return err
	}

	fi, ok := walker.Stat(path)
	if !ok {
		log.Debug("File not importable, skipping", "path", path)
		return nil
	}

	_, err = im.importFile(ctx, col, fi, Options{})
	return err
}

// RemoveFile deletes every document imported from relPath.
func (im *Importer) RemoveFile(ctx context.Context, collection, relPath string) (int, error) {
	col, err := im.client.GetCollection(ctx, collection)
	if err != nil {
		return 0, err
	}
	return col.DeleteWhere(ctx, client.Metadata{MetaSource: filepath.ToSlash(relPath)})
}

// Progress returns the current import progress.
func (im *Importer) Progress() Progress {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.progress
}

func (im *Importer) update(fn func(*Progress)) {
	im.mu.Lock()
	fn(&im.progress)
	im.mu.Unlock()
}

func (im *Importer) newWalker(root string, opts Options) (*fs.FileWalker, error) {
	patterns := append(append([]string{}, im.cfg.Ignore...), opts.IgnorePatterns...)
	walker, err := fs.NewFileWalker(fs.WalkOptions{
		Root:           root,
		MaxFileSize:    int64(im.cfg.Import.MaxFileSize),
		MaxFileCount:   im.cfg.Import.MaxFileCount,
		IgnorePatterns: patterns,
		UseGitignore:   true,
		Extensions:     opts.Extensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create file walker: %w", err)
	}
	return walker, nil
}

// importFile replaces the documents of one file. It reports false when the
// stored hash already matches.
func (im *Importer) importFile(ctx context.Context, col *client.Collection, fi fs.FileInfo, opts Options) (bool, error) {
	source := client.Metadata{MetaSource: fi.RelPath}

	if !opts.Force {
		existing, err := col.Get(ctx, client.GetRequest{Where: source, Limit: 1})
		if err != nil {
			return false, err
		}
		if len(existing) > 0 && existing[0].Metadata[MetaHash] == fi.Hash {
			log.Debug("File unchanged, skipping", "path", fi.RelPath)
			return false, nil
		}
	}

	content, err := os.ReadFile(fi.Path)
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}

	chunks := im.chunker.Chunk(string(content))

	var req client.AddRequest
	for _, ch := range chunks {
		req.IDs = append(req.IDs, DocumentID(fi.RelPath, ch.Index))
		req.Documents = append(req.Documents, ch.Content)
		req.Metadatas = append(req.Metadatas, chunkMetadata(fi, ch))
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	// Old chunks go only once every new chunk is embedded
	if err := col.Replace(ctx, source, req, batchSize); err != nil {
		return false, fmt.Errorf("failed to replace chunks: %w", err)
	}
	if len(chunks) == 0 {
		log.Debug("No chunks generated", "path", fi.RelPath)
		return true, nil
	}

	im.update(func(p *Progress) { p.TotalChunks += len(chunks) })
	log.Debug("Imported file", "path", fi.RelPath, "chunks", len(chunks))
	return true, nil
}

// prune removes documents whose source was not seen during the walk.
func (im *Importer) prune(ctx context.Context, col *client.Collection, seen map[string]bool) error {
	docs, err := col.Get(ctx, client.GetRequest{})
	if err != nil {
		return err
	}

	stale := make(map[string]bool)
	for _, d := range docs {
		src, ok := d.Metadata[MetaSource].(string)
		if ok && !seen[src] {
			stale[src] = true
		}
	}

	for src := range stale {
		if _, err := col.DeleteWhere(ctx, client.Metadata{MetaSource: src}); err != nil {
			return fmt.Errorf("failed to prune %s: %w", src, err)
		}
		log.Debug("Pruned removed file", "path", src)
		im.update(func(p *Progress) { p.RemovedFiles++ })
	}
	return nil
}

// CollectionName returns name, or the base name of dir when name is empty.
// A directory name that is not a valid collection name is an error.
func CollectionName(name, dir string) (string, error) {
	if name != "" {
		return name, nil
	}
	name = filepath.Base(dir)
	if err := client.ValidateName(name); err != nil {
		return "", fmt.Errorf("directory %s does not make a valid collection name, pass --collection: %w", dir, err)
	}
	return name, nil
}

// DocumentID is the ID given to chunk n of a file.
func DocumentID(relPath string, n int) string {
	return relPath + "#" + strconv.Itoa(n)
}

func chunkMetadata(fi fs.FileInfo, ch fs.Chunk) client.Metadata {
	md := client.Metadata{
		MetaSource:    fi.RelPath,
		MetaChunk:     ch.Index,
		MetaHash:      fi.Hash,
		MetaStartLine: ch.StartLine,
		MetaEndLine:   ch.EndLine,
	}
	if ch.Heading != "" {
		md[MetaHeading] = ch.Heading
	}
	return md
}
