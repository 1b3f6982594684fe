package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tessera/internal/core"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	s, err := New(tmpDir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	dbPath := filepath.Join(tmpDir, "tessera.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected database file to be created")
	}
}

func TestNewInvalidDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	invalidPath := filepath.Join(tmpDir, "file.txt")
	_ = os.WriteFile(invalidPath, []byte("test"), 0644)

	// A regular file can't be mkdir'd into; nested under it must fail.
	if _, err := New(filepath.Join(invalidPath, "nested")); err == nil {
		t.Error("expected error when data dir path is obstructed by a file")
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertArticleInsertsNewArticle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.UpsertArticle(core.Article{Title: "Go", URL: "https://en.wikipedia.org/wiki/Go", Content: "content"}, nil)
	if err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected non-zero article id")
	}

	got, err := s.GetArticleByID(id)
	if err != nil {
		t.Fatalf("GetArticleByID failed: %v", err)
	}
	if got == nil || got.Title != "Go" {
		t.Fatalf("expected to find article 'Go', got %+v", got)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("expected updated_at >= created_at")
	}
}

func TestUpsertArticleReplacesOnExistingTitle(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.UpsertArticle(core.Article{Title: "Go", URL: "https://en.wikipedia.org/wiki/Go", Content: "v1"}, nil)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	id2, err := s.UpsertArticle(core.Article{Title: "Go", URL: "https://en.wikipedia.org/wiki/Go", Content: "v2"}, nil)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected article id to stay stable across upserts, got %d then %d", id1, id2)
	}

	got, err := s.GetArticleByID(id1)
	if err != nil {
		t.Fatalf("GetArticleByID failed: %v", err)
	}
	if got.Content != "v2" {
		t.Errorf("expected content replaced with v2, got %q", got.Content)
	}
}

func TestUpsertArticleIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	article := core.Article{Title: "Go", URL: "https://en.wikipedia.org/wiki/Go", Content: "content"}

	id1, err := s.UpsertArticle(article, nil)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	id2, err := s.UpsertArticle(article, nil)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected idempotent upsert to keep the same id")
	}
}

func TestUpsertLinkRejectsSelfLoop(t *testing.T) {
	s := newTestStore(t)
	id, err := s.UpsertArticle(core.Article{Title: "Go", URL: "https://en.wikipedia.org/wiki/Go"}, nil)
	if err != nil {
		t.Fatalf("upsert article failed: %v", err)
	}

	if err := s.UpsertLink(id, id, "self", 0.5); err == nil {
		t.Errorf("expected self-loop link to be rejected")
	}
}

func TestUpsertLinkIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.UpsertArticle(core.Article{Title: "Go", URL: "https://en.wikipedia.org/wiki/Go"}, nil)
	b, _ := s.UpsertArticle(core.Article{Title: "Rust", URL: "https://en.wikipedia.org/wiki/Rust"}, nil)

	if err := s.UpsertLink(a, b, "Rust", 0.6); err != nil {
		t.Fatalf("first upsert_link failed: %v", err)
	}
	if err := s.UpsertLink(a, b, "Rust", 0.6); err != nil {
		t.Fatalf("second upsert_link failed: %v", err)
	}

	links, err := s.OutboundLinks(a, 0)
	if err != nil {
		t.Fatalf("OutboundLinks failed: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected exactly one link row, got %d", len(links))
	}
	if links[0].RelevanceScore != 0.6 {
		t.Errorf("expected relevance score 0.6, got %f", links[0].RelevanceScore)
	}
}

func TestOutboundAndInboundLinksOrderedByScore(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.UpsertArticle(core.Article{Title: "Go", URL: "https://en.wikipedia.org/wiki/Go"}, nil)
	b, _ := s.UpsertArticle(core.Article{Title: "Rust", URL: "https://en.wikipedia.org/wiki/Rust"}, nil)
	c, _ := s.UpsertArticle(core.Article{Title: "Zig", URL: "https://en.wikipedia.org/wiki/Zig"}, nil)

	_ = s.UpsertLink(a, b, "Rust", 0.3)
	_ = s.UpsertLink(a, c, "Zig", 0.9)

	out, err := s.OutboundLinks(a, 0)
	if err != nil {
		t.Fatalf("OutboundLinks failed: %v", err)
	}
	if len(out) != 2 || out[0].ToArticleID != c || out[1].ToArticleID != b {
		t.Fatalf("expected links ordered by score descending, got %+v", out)
	}

	in, err := s.InboundLinks(c, 0)
	if err != nil {
		t.Fatalf("InboundLinks failed: %v", err)
	}
	if len(in) != 1 || in[0].FromArticleID != a {
		t.Fatalf("expected one inbound link from a, got %+v", in)
	}
}

func TestReplaceChunksReplacesFully(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.UpsertArticle(core.Article{Title: "Go", URL: "https://en.wikipedia.org/wiki/Go"}, nil)

	first := []core.Chunk{{ArticleID: id, Ord: 0, Kind: core.ChunkParagraph, Content: "one", NeedsEmbedding: true}}
	if err := s.ReplaceChunks(id, first); err != nil {
		t.Fatalf("ReplaceChunks failed: %v", err)
	}

	second := []core.Chunk{
		{ArticleID: id, Ord: 0, Kind: core.ChunkParagraph, Content: "two", NeedsEmbedding: true},
		{ArticleID: id, Ord: 1, Kind: core.ChunkParagraph, Content: "three", NeedsEmbedding: true},
	}
	if err := s.ReplaceChunks(id, second); err != nil {
		t.Fatalf("ReplaceChunks failed: %v", err)
	}

	pending, err := s.PendingEmbeddingChunks("test-model", 10)
	if err != nil {
		t.Fatalf("PendingEmbeddingChunks failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 chunks after replace, got %d", len(pending))
	}
	for _, c := range pending {
		if c.Content == "one" {
			t.Errorf("expected original chunk content to be gone after replace")
		}
	}
}

func TestWriteEmbeddingsClearsNeedsEmbedding(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.UpsertArticle(core.Article{Title: "Go", URL: "https://en.wikipedia.org/wiki/Go"}, nil)
	_ = s.ReplaceChunks(id, []core.Chunk{{ArticleID: id, Ord: 0, Kind: core.ChunkParagraph, Content: "text", NeedsEmbedding: true}})

	pending, _ := s.PendingEmbeddingChunks("model-a", 10)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending chunk, got %d", len(pending))
	}
	chunkID := pending[0].ChunkID

	err := s.WriteEmbeddings([]core.Embedding{{ChunkID: chunkID, Vector: []float32{0.1, 0.2, 0.3}}}, "model-a")
	if err != nil {
		t.Fatalf("WriteEmbeddings failed: %v", err)
	}

	stillPending, _ := s.PendingEmbeddingChunks("model-a", 10)
	if len(stillPending) != 0 {
		t.Errorf("expected no pending chunks after writing embeddings, got %d", len(stillPending))
	}

	rows, err := s.ScanEmbeddings("model-a")
	if err != nil {
		t.Fatalf("ScanEmbeddings failed: %v", err)
	}
	if len(rows) != 1 || len(rows[0].Vector) != 3 {
		t.Fatalf("expected 1 embedding row with 3-dim vector, got %+v", rows)
	}
}

func TestRetentionSweepCascadesDeletes(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.UpsertArticle(core.Article{
		Title:     "Old Article",
		URL:       "https://en.wikipedia.org/wiki/Old_Article",
		FetchedAt: time.Now().AddDate(0, 0, -30).Unix(),
	}, nil)
	_ = s.ReplaceChunks(id, []core.Chunk{{ArticleID: id, Ord: 0, Kind: core.ChunkParagraph, Content: "stale", NeedsEmbedding: true}})

	deleted, err := s.RetentionSweep(7)
	if err != nil {
		t.Fatalf("RetentionSweep failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 article deleted, got %d", deleted)
	}

	got, err := s.GetArticleByID(id)
	if err != nil {
		t.Fatalf("GetArticleByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected article to be deleted, got %+v", got)
	}

	pending, err := s.PendingEmbeddingChunks("any-model", 10)
	if err != nil {
		t.Fatalf("PendingEmbeddingChunks failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected chunks to cascade-delete with their article, got %d", len(pending))
	}
}

func TestMutationTimestampAdvancesOnWrite(t *testing.T) {
	s := newTestStore(t)
	before := s.MutationTimestamp()

	time.Sleep(time.Millisecond)
	_, err := s.UpsertArticle(core.Article{Title: "Go", URL: "https://en.wikipedia.org/wiki/Go"}, nil)
	if err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	if s.MutationTimestamp() <= before {
		t.Errorf("expected mutation timestamp to advance")
	}
}

func TestOnInvalidateFiresOnWrite(t *testing.T) {
	s := newTestStore(t)
	fired := false
	s.OnInvalidate(func() { fired = true })

	_, err := s.UpsertArticle(core.Article{Title: "Go", URL: "https://en.wikipedia.org/wiki/Go"}, nil)
	if err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}
	if !fired {
		t.Errorf("expected OnInvalidate callback to fire after a write")
	}
}

func TestSearchArticlesRanksTitleMatchFirst(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.UpsertArticle(core.Article{Title: "Mentioned in passing", URL: "https://en.wikipedia.org/wiki/A", Summary: "about something else", Content: "rust rust rust"}, nil)
	_, _ = s.UpsertArticle(core.Article{Title: "Rust (programming language)", URL: "https://en.wikipedia.org/wiki/B", Summary: "a language", Content: "content"}, nil)

	results, err := s.SearchArticles("Rust", 10)
	if err != nil {
		t.Fatalf("SearchArticles failed: %v", err)
	}
	if len(results) < 2 {
		t.Fatalf("expected at least 2 results, got %d", len(results))
	}
	if results[0].Title != "Rust (programming language)" {
		t.Errorf("expected title match to rank above content-only match, got %+v", results[0])
	}
}
