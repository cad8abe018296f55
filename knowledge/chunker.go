package knowledge

import (
	"strings"

	"go.uber.org/zap"
)

// ChunkingConfig controls how documents are split. Sizes are in characters.
type ChunkingConfig struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
	MinChunkSize int `json:"min_chunk_size"`
}

// DefaultChunkingConfig returns chunk sizes that keep a retrieved snippet
// small enough to quote in a prompt while preserving whole guidance items.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:    800,
		ChunkOverlap: 120,
		MinChunkSize: 40,
	}
}

// Chunk is one fragment of a source document.
type Chunk struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Chunker splits markdown documents recursively, preferring section
// boundaries over paragraph and sentence boundaries.
type Chunker struct {
	config ChunkingConfig
	logger *zap.Logger
}

// separators in priority order: markdown headings first so chunks align
// with knowledge-base sections.
var separators = []string{"\n## ", "\n### ", "\n\n", "\n", " "}

func NewChunker(config ChunkingConfig, logger *zap.Logger) *Chunker {
	if config.ChunkSize <= 0 {
		config = DefaultChunkingConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{config: config, logger: logger.With(zap.String("component", "chunker"))}
}

// ChunkDocument splits a document into overlapping chunks. Chunks below
// MinChunkSize are dropped; whitespace-only documents yield none.
func (c *Chunker) ChunkDocument(source, content string) []Chunk {
	pieces := c.recursiveSplit(content, separators)
	if c.config.ChunkOverlap > 0 {
		pieces = c.addOverlap(pieces)
	}

	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if len(piece) < c.config.MinChunkSize {
			continue
		}
		chunks = append(chunks, Chunk{Source: source, Content: piece})
	}

	c.logger.Debug("chunked document",
		zap.String("source", source),
		zap.Int("chunks", len(chunks)))
	return chunks
}

func (c *Chunker) recursiveSplit(text string, seps []string) []string {
	if len(text) <= c.config.ChunkSize {
		return []string{text}
	}
	if len(seps) == 0 {
		return c.splitByCharacters(text)
	}

	sep := seps[0]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return c.recursiveSplit(text, seps[1:])
	}

	var pieces []string
	current := ""
	for i, part := range parts {
		if i > 0 {
			part = sep + part
		}
		if len(current)+len(part) <= c.config.ChunkSize {
			current += part
			continue
		}
		if current != "" {
			pieces = append(pieces, current)
		}
		if len(part) > c.config.ChunkSize {
			pieces = append(pieces, c.recursiveSplit(part, seps[1:])...)
			current = ""
		} else {
			current = part
		}
	}
	if current != "" {
		pieces = append(pieces, current)
	}
	return pieces
}

func (c *Chunker) splitByCharacters(text string) []string {
	var pieces []string
	runes := []rune(text)
	for i := 0; i < len(runes); i += c.config.ChunkSize {
		end := i + c.config.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[i:end]))
	}
	return pieces
}

// addOverlap prefixes each chunk after the first with the tail of its
// predecessor so retrieval does not lose context at chunk boundaries.
func (c *Chunker) addOverlap(pieces []string) []string {
	if len(pieces) < 2 {
		return pieces
	}
	out := make([]string, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		prev := []rune(pieces[i-1])
		start := len(prev) - c.config.ChunkOverlap
		if start < 0 {
			start = 0
		}
		out[i] = string(prev[start:]) + pieces[i]
	}
	return out
}
