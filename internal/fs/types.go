// Package fs finds and splits the text files that lvec imports.
package fs

import (
	"io"
	"time"
)

// FileInfo describes a text file found under an import root.
type FileInfo struct {
	Path    string    // Absolute path
	RelPath string    // Slash-separated path relative to the root, used as the document source
	Size    int64     // Bytes
	ModTime time.Time // Last modification time
	Hash    string    // xxhash of the contents
}

// Chunk is one piece of a file stored as a document.
type Chunk struct {
	Content   string
	StartLine int // 1-indexed
	EndLine   int // 1-indexed, inclusive
	Index     int
	Heading   string // Nearest Markdown heading above the chunk, if any
}

// WalkOptions configures the file walker.
type WalkOptions struct {
	Root string

	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64

	// MaxFileCount stops the walk after this many files.
	MaxFileCount int

	// IgnorePatterns use gitignore syntax.
	IgnorePatterns []string

	IncludeHidden bool

	// UseGitignore also honours <root>/.gitignore.
	UseGitignore bool

	// Extensions limits the walk to these extensions (".md", "txt").
	// Empty means every text file.
	Extensions []string
}

// ChunkOptions configures the chunker. Sizes are in characters.
type ChunkOptions struct {
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int
}

// DefaultWalkOptions returns the walk settings used when none are configured.
func DefaultWalkOptions() WalkOptions {
	return WalkOptions{
		MaxFileSize:  1024 * 1024,
		MaxFileCount: 5000,
		UseGitignore: true,
	}
}

// DefaultChunkOptions returns the chunk settings used when none are configured.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		ChunkSize:    800,
		ChunkOverlap: 80,
		MinChunkSize: 40,
	}
}

// Walker walks a directory tree and yields files.
type Walker interface {
	// Walk calls fn for each file. The walk stops if fn returns an error.
	Walk(fn func(FileInfo) error) error

	Stats() WalkStats
}

// WalkStats counts what a walk saw.
type WalkStats struct {
	FilesFound   int
	FilesSkipped int
	DirsSkipped  int
	TotalBytes   int64
	SkippedBytes int64
}

// Chunker splits text into chunks.
type Chunker interface {
	Chunk(content string) []Chunk
	ChunkReader(r io.Reader) ([]Chunk, error)
}
