package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Ignorer matches paths against ignore rules.
type Ignorer interface {
	MatchesPath(path string) bool
}

// combinedIgnorer checks the root .gitignore and the configured patterns.
type combinedIgnorer struct {
	file     *gitignore.GitIgnore
	patterns *gitignore.GitIgnore
}

func (c *combinedIgnorer) MatchesPath(path string) bool {
	return c.file.MatchesPath(path) || c.patterns.MatchesPath(path)
}

// FileWalker implements Walker over the local file system.
type FileWalker struct {
	opts    WalkOptions
	ignorer Ignorer
	stats   WalkStats
	extSet  map[string]bool
}

// NewFileWalker creates a walker rooted at opts.Root.
func NewFileWalker(opts WalkOptions) (*FileWalker, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	opts.Root = root

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", root)
	}

	w := &FileWalker{opts: opts}

	if len(opts.Extensions) > 0 {
		w.extSet = make(map[string]bool)
		for _, ext := range opts.Extensions {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			w.extSet[strings.ToLower(ext)] = true
		}
	}

	w.initIgnorer()
	return w, nil
}

// Root returns the absolute walk root.
func (w *FileWalker) Root() string {
	return w.opts.Root
}

func (w *FileWalker) initIgnorer() {
	patterns := append([]string{}, w.opts.IgnorePatterns...)
	patterns = append(patterns, binaryPatterns...)
	compiled := gitignore.CompileIgnoreLines(patterns...)

	if w.opts.UseGitignore {
		gitignorePath := filepath.Join(w.opts.Root, ".gitignore")
		if _, err := os.Stat(gitignorePath); err == nil {
			gi, err := gitignore.CompileIgnoreFile(gitignorePath)
			if err != nil {
				log.Warn("Failed to parse .gitignore", "path", gitignorePath, "error", err)
			} else {
				w.ignorer = &combinedIgnorer{file: gi, patterns: compiled}
				return
			}
		}
	}

	w.ignorer = compiled
}

// Walk traverses the tree in lexical order.
func (w *FileWalker) Walk(fn func(FileInfo) error) error {
	w.stats = WalkStats{}

	return filepath.WalkDir(w.opts.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Debug("Error accessing path", "path", path, "error", err)
			return nil
		}
		if path == w.opts.Root {
			return nil
		}

		relPath, err := filepath.Rel(w.opts.Root, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if w.skipDir(d.Name(), relPath) {
				w.stats.DirsSkipped++
				return filepath.SkipDir
			}
			return nil
		}

		if w.opts.MaxFileCount > 0 && w.stats.FilesFound >= w.opts.MaxFileCount {
			return filepath.SkipAll
		}

		info, ok := w.check(path, d.Name(), relPath)
		if !ok {
			return nil
		}

		w.stats.FilesFound++
		w.stats.TotalBytes += info.Size
		return fn(info)
	})
}

// Stat returns the FileInfo for a single path under the root, and false when
// the walker would have skipped it.
func (w *FileWalker) Stat(path string) (FileInfo, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, false
	}
	relPath, err := filepath.Rel(w.opts.Root, abs)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return FileInfo{}, false
	}
	relPath = filepath.ToSlash(relPath)

	dir := filepath.Dir(relPath)
	for dir != "." && dir != "/" {
		if w.skipDir(filepath.Base(dir), dir) {
			return FileInfo{}, false
		}
		dir = filepath.Dir(dir)
	}

	return w.check(abs, filepath.Base(abs), relPath)
}

// Ignored reports whether a root-relative path matches the ignore rules.
func (w *FileWalker) Ignored(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	if isDir {
		return w.skipDir(filepath.Base(relPath), relPath)
	}
	return w.skipFile(filepath.Base(relPath), relPath)
}

// Stats returns the statistics of the last walk.
func (w *FileWalker) Stats() WalkStats {
	return w.stats
}

// check applies the file filters and hashes files that pass.
func (w *FileWalker) check(path, name, relPath string) (FileInfo, bool) {
	if w.skipFile(name, relPath) {
		w.stats.FilesSkipped++
		return FileInfo{}, false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return FileInfo{}, false
	}

	if w.opts.MaxFileSize > 0 && info.Size() > w.opts.MaxFileSize {
		w.stats.FilesSkipped++
		w.stats.SkippedBytes += info.Size()
		return FileInfo{}, false
	}

	if w.extSet != nil && !w.extSet[strings.ToLower(filepath.Ext(path))] {
		w.stats.FilesSkipped++
		return FileInfo{}, false
	}

	if binary, err := isBinaryFile(path); err != nil || binary {
		w.stats.FilesSkipped++
		return FileInfo{}, false
	}

	hash, err := hashFile(path)
	if err != nil {
		log.Debug("Failed to hash file", "path", path, "error", err)
		return FileInfo{}, false
	}

	return FileInfo{
		Path:    path,
		RelPath: relPath,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Hash:    hash,
	}, true
}

func (w *FileWalker) skipDir(name, relPath string) bool {
	if name == ".git" {
		return true
	}
	if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	return w.ignorer != nil && w.ignorer.MatchesPath(relPath+"/")
}

func (w *FileWalker) skipFile(name, relPath string) bool {
	if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	return w.ignorer != nil && w.ignorer.MatchesPath(relPath)
}

// hashFile computes the xxhash of a file's contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// HashContent computes the xxhash of content bytes.
func HashContent(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

func isBinaryFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 8192)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}

	return isBinaryContent(buf[:n]), nil
}

// isBinaryContent treats NUL bytes or more than 30% control characters as binary.
func isBinaryContent(content []byte) bool {
	if len(content) == 0 {
		return false
	}

	nonPrintable := 0
	for _, b := range content {
		if b == 0 {
			return true
		}
		if b < 32 && b != '\t' && b != '\n' && b != '\r' {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(len(content)) > 0.3
}

// binaryPatterns are skipped regardless of configuration.
var binaryPatterns = []string{
	"*.pdf",
	"*.doc",
	"*.docx",
	"*.xls",
	"*.xlsx",
	"*.ppt",
	"*.pptx",
	"*.png",
	"*.jpg",
	"*.jpeg",
	"*.gif",
	"*.ico",
	"*.zip",
	"*.tar",
	"*.gz",
	"*.7z",
	"*.mp3",
	"*.mp4",
	"*.wav",
	"*.exe",
	"*.dll",
	"*.so",
	"*.dylib",
	"*.sqlite",
	"*.sqlite3",
	"*.db",
}
