// Package retrieval answers free-text queries over the knowledge
// store: embed the query, score every stored chunk by cosine
// similarity, and return the top matches. Falls back to keyword
// search when the embedding service is unavailable.
package retrieval

import (
	"context"
	"errors"
	"math"
	"sort"

	"tessera/internal/core"
	"tessera/internal/errs"
	"tessera/internal/store"
)

// Result is one ranked chunk returned by Search.
type Result struct {
	ChunkID      int64
	ArticleID    int64
	ArticleTitle string
	SectionName  string
	ChunkKind    core.ChunkKind
	Content      string
	Similarity   float64
}

// embedder is the subset of *services.EmbedService Retriever depends
// on, narrow enough to fake in tests.
type embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// knowledgeStore is the subset of *store.Store Retriever depends on.
type knowledgeStore interface {
	ScanEmbeddings(model string) ([]store.EmbeddingRow, error)
	SearchArticles(query string, limit int) ([]store.ArticleSummary, error)
}

// Retriever answers Search requests over a store, using an embedding
// service to vectorize queries and falling back to keyword search
// when that service is unavailable.
type Retriever struct {
	embedder embedder
	store    knowledgeStore
}

// New builds a Retriever.
func New(embed embedder, st knowledgeStore) *Retriever {
	return &Retriever{embedder: embed, store: st}
}

// Search embeds queryText, scores every stored chunk's embedding by
// cosine similarity, and returns the top k results with similarity at
// or above minSimilarity, ordered by similarity descending with ties
// broken by chunk_id ascending. On a ServiceError from the embedding
// service it degrades to keyword search via the store.
func (r *Retriever) Search(ctx context.Context, queryText string, k int, minSimilarity float64) ([]Result, error) {
	vectors, err := r.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		if errors.Is(err, errs.ServiceKind) {
			return r.keywordFallback(queryText, k)
		}
		return nil, err
	}
	query := vectors[0]

	rows, err := r.store.ScanEmbeddings(r.embedder.ModelName())
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		sim := cosineSimilarity(query, row.Vector)
		if sim < minSimilarity {
			continue
		}
		results = append(results, Result{
			ChunkID:      row.ChunkID,
			ArticleID:    row.ArticleID,
			ArticleTitle: row.Title,
			SectionName:  row.SectionName,
			ChunkKind:    row.Kind,
			Content:      row.Content,
			Similarity:   sim,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// keywordFallback degrades Search to the store's title/summary/content
// keyword ranking when the embedding service is unreachable. There is
// no chunk-level granularity here, so each matched article contributes
// a single pseudo-chunk built from its summary.
func (r *Retriever) keywordFallback(queryText string, k int) ([]Result, error) {
	summaries, err := r.store.SearchArticles(queryText, k)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(summaries))
	for _, a := range summaries {
		results = append(results, Result{
			ArticleID:    a.ArticleID,
			ArticleTitle: a.Title,
			ChunkKind:    core.ChunkSummary,
			Content:      a.Summary,
			Similarity:   0,
		})
	}
	return results, nil
}

// cosineSimilarity returns the cosine similarity of a and b, or 0 if
// either vector has zero norm or they differ in length.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
