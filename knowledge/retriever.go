package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Snippet is one retrieved chunk with its similarity score.
type Snippet struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Retriever indexes markdown documents and answers similarity queries.
type Retriever struct {
	store    *Store
	embedder Embedder
	chunker  *Chunker
	logger   *zap.Logger
}

func NewRetriever(store *Store, embedder Embedder, chunker *Chunker, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		chunker:  chunker,
		logger:   logger.With(zap.String("component", "knowledge")),
	}
}

// IndexDir walks dir for .md files and (re)indexes each one. Returns the
// total number of chunks stored.
func (r *Retriever) IndexDir(ctx context.Context, dir string) (int, error) {
	if err := r.store.Migrate(ctx); err != nil {
		return 0, fmt.Errorf("migrate chunk store: %w", err)
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk knowledge dir %s: %w", dir, err)
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no markdown files found under %s", dir)
	}

	total := 0
	for _, path := range files {
		n, err := r.IndexFile(ctx, path)
		if err != nil {
			return total, err
		}
		total += n
	}
	r.logger.Info("knowledge index built",
		zap.Int("files", len(files)),
		zap.Int("chunks", total))
	return total, nil
}

// IndexFile chunks, embeds, and stores a single markdown file, replacing any
// chunks previously stored for it.
func (r *Retriever) IndexFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	chunks := r.chunker.ChunkDocument(path, string(data))
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", path, err)
	}

	if err := r.store.Replace(ctx, path, chunks, vectors); err != nil {
		return 0, fmt.Errorf("store chunks for %s: %w", path, err)
	}
	return len(chunks), nil
}

// Retrieve returns the topK most similar chunks for the query, best first.
// An empty index yields an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if topK <= 0 {
		topK = 3
	}
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVec := vectors[0]

	records, err := r.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	snippets := make([]Snippet, 0, len(records))
	for _, rec := range records {
		score := CosineSimilarity(queryVec, decodeVector(rec.Vector))
		snippets = append(snippets, Snippet{
			Source:  rec.Source,
			Content: rec.Content,
			Score:   score,
		})
	}
	sort.SliceStable(snippets, func(i, j int) bool { return snippets[i].Score > snippets[j].Score })
	if len(snippets) > topK {
		snippets = snippets[:topK]
	}
	return snippets, nil
}

// FormatContext joins snippets into the prompt-ready context block, each
// prefixed with its source path.
func FormatContext(snippets []Snippet) string {
	parts := make([]string, 0, len(snippets))
	for _, s := range snippets {
		text := strings.TrimSpace(s.Content)
		if text == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("SOURCE: %s\n%s", s.Source, text))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// Sources returns the unique snippet sources in retrieval order.
func Sources(snippets []Snippet) []string {
	seen := make(map[string]struct{}, len(snippets))
	var out []string
	for _, s := range snippets {
		if _, ok := seen[s.Source]; ok {
			continue
		}
		seen[s.Source] = struct{}{}
		out = append(out, s.Source)
	}
	return out
}
