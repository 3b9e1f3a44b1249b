package fs

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"
)

// TextChunker splits text into overlapping line-aligned chunks. Markdown
// headings start a new section so a chunk never spans two headings.
type TextChunker struct {
	opts ChunkOptions
}

// NewTextChunker creates a chunker, filling zero options from the defaults.
func NewTextChunker(opts ChunkOptions) *TextChunker {
	def := DefaultChunkOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = def.ChunkOverlap
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 10
	}
	if opts.MinChunkSize <= 0 {
		opts.MinChunkSize = def.MinChunkSize
	}

	return &TextChunker{opts: opts}
}

// section is a run of lines under one heading.
type section struct {
	heading string
	start   int // 0-indexed first line
	lines   []string
}

// Chunk splits content into chunks. Blank content yields nil.
func (c *TextChunker) Chunk(content string) []Chunk {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var chunks []Chunk
	for _, sec := range c.sections(strings.Split(content, "\n")) {
		for _, ch := range c.chunkLines(sec.lines) {
			ch.StartLine += sec.start
			ch.EndLine += sec.start
			ch.Heading = sec.heading
			ch.Index = len(chunks)
			chunks = append(chunks, ch)
		}
	}
	return chunks
}

// ChunkReader reads all of r and chunks it.
func (c *TextChunker) ChunkReader(r io.Reader) ([]Chunk, error) {
	var content strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		content.WriteString(scanner.Text())
		content.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return c.Chunk(content.String()), nil
}

// sections cuts lines at Markdown headings. A section shorter than
// MinChunkSize is folded into the one after it.
func (c *TextChunker) sections(lines []string) []section {
	var out []section
	cur := section{}

	flush := func() {
		if len(cur.lines) == 0 {
			return
		}
		out = append(out, cur)
	}

	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}

		if !inFence && isHeading(trimmed) {
			if len(cur.lines) > 0 && runeLen(cur.lines) >= c.opts.MinChunkSize {
				flush()
				cur = section{start: i}
			}
			if cur.heading == "" {
				cur.heading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			}
		}
		cur.lines = append(cur.lines, line)
	}
	flush()

	return out
}

// chunkLines performs line-aligned chunking with overlap. Line numbers in the
// result are relative to lines.
func (c *TextChunker) chunkLines(lines []string) []Chunk {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil
	}

	var chunks []Chunk
	chunkStart := 0
	currentSize := 0
	var currentLines []string

	for lineNum, line := range lines {
		lineLen := utf8.RuneCountInString(line) + 1

		if currentSize+lineLen > c.opts.ChunkSize && len(currentLines) > 0 {
			chunks = append(chunks, Chunk{
				Content:   strings.Join(currentLines, "\n"),
				StartLine: chunkStart + 1,
				EndLine:   chunkStart + len(currentLines),
			})

			overlap, overlapSize := c.overlap(currentLines)
			currentLines = append([]string{}, overlap...)
			chunkStart = lineNum - len(overlap)
			currentSize = overlapSize
		}

		currentLines = append(currentLines, line)
		currentSize += lineLen
	}

	if len(currentLines) > 0 {
		content := strings.Join(currentLines, "\n")
		if len(chunks) == 0 || utf8.RuneCountInString(content) >= c.opts.MinChunkSize {
			chunks = append(chunks, Chunk{
				Content:   content,
				StartLine: chunkStart + 1,
				EndLine:   chunkStart + len(currentLines),
			})
		} else {
			// Too small to stand alone; fold the new lines into the previous chunk
			prev := &chunks[len(chunks)-1]
			tail := prev.EndLine - chunkStart
			if tail < 0 {
				tail = 0
			}
			if tail < len(currentLines) {
				prev.Content += "\n" + strings.Join(currentLines[tail:], "\n")
			}
			prev.EndLine = chunkStart + len(currentLines)
		}
	}

	return chunks
}

// overlap returns the trailing lines that fit within ChunkOverlap characters.
func (c *TextChunker) overlap(lines []string) ([]string, int) {
	if c.opts.ChunkOverlap <= 0 || len(lines) <= 1 {
		return nil, 0
	}

	var out []string
	size := 0
	for i := len(lines) - 1; i > 0; i-- {
		lineLen := utf8.RuneCountInString(lines[i]) + 1
		if size+lineLen > c.opts.ChunkOverlap {
			break
		}
		out = append([]string{lines[i]}, out...)
		size += lineLen
	}

	return out, size
}

func isHeading(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
	return level <= 6 && len(trimmed) > level && trimmed[level] == ' '
}

func runeLen(lines []string) int {
	n := 0
	for _, l := range lines {
		n += utf8.RuneCountInString(l) + 1
	}
	return n
}
