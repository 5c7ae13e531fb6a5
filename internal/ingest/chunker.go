// Package ingest carves an uploaded document's extracted text into the
// chunks stored by store.DocumentRepository and, when a vector backend is
// configured, embedded into vectorindex for semantic retrieval (C8).
package ingest

import (
	"regexp"
	"strings"

	"freshness/internal/config"
)

// Chunk is one produced unit of text, addressed by its position within the
// source document.
type Chunk struct {
	Index int
	Text  string
}

// Chunker splits document text into Chunks per cfg.Strategy.
type Chunker interface {
	Chunk(text string, cfg config.ChunkConfig) ([]Chunk, error)
}

// SimpleChunker implements the "fixed", "markdown", and "code" strategies.
type SimpleChunker struct{}

// Chunk dispatches to the strategy named by cfg.Strategy, defaulting to
// "fixed" for an empty or unrecognized value.
func (SimpleChunker) Chunk(text string, cfg config.ChunkConfig) ([]Chunk, error) {
	strategy := strings.ToLower(cfg.Strategy)
	switch strategy {
	case "", "fixed", "tokens", "sentences":
		return fixedChunk(text, cfg), nil
	case "markdown", "md":
		return markdownChunk(text, cfg), nil
	case "code":
		return codeChunk(text, cfg), nil
	default:
		return fixedChunk(text, cfg), nil
	}
}

func targetLen(cfg config.ChunkConfig) int {
	n := cfg.MaxTokens
	if n <= 0 {
		n = 512
	}
	return n * 4 // rough 4 chars per token
}

// fixedChunk produces contiguous chunks of target size with optional
// overlap, cutting at a whitespace boundary past the chunk's midpoint when
// one is available.
func fixedChunk(text string, cfg config.ChunkConfig) []Chunk {
	tgt := targetLen(cfg)
	if tgt < 32 {
		tgt = 32
	}
	ov := cfg.Overlap
	if ov < 0 {
		ov = 0
	}
	ovChars := ov * 4
	var out []Chunk
	start := 0
	idx := 0
	for start < len(text) {
		end := start + tgt
		if end > len(text) {
			end = len(text)
		} else if i := strings.LastIndex(text[start:end], " "); i > tgt/2 {
			end = start + i
		}
		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			out = append(out, Chunk{Index: idx, Text: chunk})
			idx++
		}
		if end == len(text) {
			break
		}
		next := end - ovChars
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// markdownChunk splits on heading and paragraph boundaries, keeping a
// heading line attached to the content that follows it.
func markdownChunk(text string, cfg config.ChunkConfig) []Chunk {
	tgt := targetLen(cfg)
	lines := strings.Split(text, "\n")
	var out []Chunk
	var buf strings.Builder
	idx := 0
	writeFlush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			out = append(out, Chunk{Index: idx, Text: s})
			idx++
			buf.Reset()
		}
	}
	for i, ln := range lines {
		isHeading := strings.HasPrefix(ln, "#")
		isParaBreak := strings.TrimSpace(ln) == "" && i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != ""
		if isHeading && buf.Len() > 0 {
			writeFlush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(ln)
		if (isHeading || isParaBreak) && buf.Len() >= tgt {
			writeFlush()
		}
	}
	writeFlush()
	return out
}

var codeSplitRe = regexp.MustCompile(`(?m)^\s*(func |class |def |#[#\s]|//)`)

// codeChunk prefers to break before a function/class/comment boundary once
// the buffer has grown past target size, or whenever the buffer already
// holds a function.
func codeChunk(text string, cfg config.ChunkConfig) []Chunk {
	tgt := targetLen(cfg)
	lines := strings.Split(text, "\n")
	var out []Chunk
	var buf strings.Builder
	idx := 0
	for i, ln := range lines {
		if codeSplitRe.MatchString(ln) && buf.Len() > 0 && (buf.Len()+len(ln)+1 > tgt || strings.Contains(buf.String(), "func ")) {
			out = append(out, Chunk{Index: idx, Text: strings.TrimRight(buf.String(), "\n")})
			idx++
			buf.Reset()
		}
		buf.WriteString(ln)
		if i < len(lines)-1 {
			buf.WriteString("\n")
		}
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		out = append(out, Chunk{Index: idx, Text: s})
	}
	return out
}
