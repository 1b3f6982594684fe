// Package store persists articles, links, chunks, and embeddings in
// SQLite, and exposes the query patterns the crawl engine, graph
// builder, and retrieval interface need.
package store

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tessera/internal/core"
	"tessera/internal/errs"
)

// InvalidationFunc is called (outside the writing transaction) after a
// write that should schedule a graph/retrieval cache invalidation.
type InvalidationFunc func()

// Store is the SQLite-backed knowledge store.
type Store struct {
	db   *sql.DB
	path string

	mu           sync.Mutex
	onInvalidate InvalidationFunc

	mutationTS atomic.Int64
}

// New opens (creating if necessary) the SQLite database at
// <dataDir>/tessera.db and ensures its schema exists.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errs.Storage("creating data directory", err)
	}

	dbPath := filepath.Join(dataDir, "tessera.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, errs.Storage("opening database", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, errs.Storage("initializing schema", err)
	}
	s.mutationTS.Store(time.Now().UnixNano())

	return s, nil
}

// OnInvalidate registers the callback the store invokes after a write
// that should schedule a graph/retrieval cache invalidation. Typically
// wired to the graph builder's debounced Invalidate.
func (s *Store) OnInvalidate(fn InvalidationFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInvalidate = fn
}

// MutationTimestamp returns the monotonic write marker used by the
// graph builder's cache key.
func (s *Store) MutationTimestamp() int64 {
	return s.mutationTS.Load()
}

func (s *Store) bumpMutation() {
	for {
		prev := s.mutationTS.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if s.mutationTS.CompareAndSwap(prev, next) {
			break
		}
	}
	s.mu.Lock()
	fn := s.onInvalidate
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			article_id   INTEGER PRIMARY KEY AUTOINCREMENT,
			title        TEXT NOT NULL UNIQUE,
			url          TEXT NOT NULL,
			content      TEXT,
			summary      TEXT,
			categories   TEXT,
			sections     TEXT,
			infobox      TEXT,
			images       TEXT,
			coordinates  TEXT,
			fetched_at   INTEGER,
			created_at   DATETIME NOT NULL,
			updated_at   DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_updated_at ON articles(updated_at);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_fetched_at ON articles(fetched_at);`,

		`CREATE TABLE IF NOT EXISTS links (
			from_article_id  INTEGER NOT NULL REFERENCES articles(article_id) ON DELETE CASCADE,
			to_article_id    INTEGER NOT NULL REFERENCES articles(article_id) ON DELETE CASCADE,
			anchor           TEXT,
			relevance_score  REAL NOT NULL,
			created_at       DATETIME NOT NULL,
			PRIMARY KEY (from_article_id, to_article_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_links_from_score ON links(from_article_id, relevance_score DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_links_to_score ON links(to_article_id, relevance_score DESC);`,

		`CREATE TABLE IF NOT EXISTS article_chunks (
			chunk_id        INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id      INTEGER NOT NULL REFERENCES articles(article_id) ON DELETE CASCADE,
			ord             INTEGER NOT NULL,
			kind            TEXT NOT NULL,
			section_name    TEXT,
			content         TEXT NOT NULL,
			char_count      INTEGER NOT NULL,
			token_count     INTEGER NOT NULL,
			content_hash    TEXT NOT NULL,
			needs_embedding BOOLEAN NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_article_ord ON article_chunks(article_id, ord);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_needs_embedding ON article_chunks(needs_embedding);`,

		`CREATE TABLE IF NOT EXISTS chunk_embeddings (
			chunk_id    INTEGER NOT NULL REFERENCES article_chunks(chunk_id) ON DELETE CASCADE,
			model_name  TEXT NOT NULL,
			vector      BLOB NOT NULL,
			dim         INTEGER NOT NULL,
			created_at  DATETIME NOT NULL,
			PRIMARY KEY (chunk_id, model_name)
		);`,

		`CREATE TABLE IF NOT EXISTS crawl_sessions (
			session_id        TEXT PRIMARY KEY,
			seed_url          TEXT NOT NULL,
			max_depth         INTEGER NOT NULL,
			max_articles      INTEGER NOT NULL,
			articles_crawled  INTEGER NOT NULL DEFAULT 0,
			status            TEXT NOT NULL,
			started_at        DATETIME NOT NULL,
			completed_at      DATETIME
		);`,

		`CREATE TABLE IF NOT EXISTS interest_profiles (
			name              TEXT PRIMARY KEY,
			interests         TEXT,
			boosts            TEXT,
			follow_threshold  REAL NOT NULL DEFAULT 0.3
		);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// UpsertArticle inserts a new article or, if the title already
// exists, replaces its scalar fields and bumps updated_at. Returns the
// article_id. If chunks is non-nil, they replace the article's chunk
// set in the same transaction. Schedules a cache invalidation.
func (s *Store) UpsertArticle(a core.Article, chunks []core.Chunk) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, errs.Storage("beginning upsert_article transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	categories, _ := json.Marshal(a.Categories)
	sections, _ := json.Marshal(a.Sections)
	infobox, _ := json.Marshal(a.Infobox)
	images, _ := json.Marshal(a.Images)
	var coordinates []byte
	if a.Coordinates != nil {
		coordinates, _ = json.Marshal(a.Coordinates)
	}

	now := time.Now().UTC()

	var articleID int64
	err = tx.QueryRow(`SELECT article_id FROM articles WHERE title = ?`, a.Title).Scan(&articleID)
	switch {
	case err == sql.ErrNoRows:
		res, insertErr := tx.Exec(
			`INSERT INTO articles (title, url, content, summary, categories, sections, infobox, images, coordinates, fetched_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.Title, a.URL, a.Content, a.Summary, string(categories), string(sections), string(infobox), string(images), string(coordinates), a.FetchedAt, now, now,
		)
		if insertErr != nil {
			return 0, errs.Storage("inserting article", insertErr)
		}
		articleID, err = res.LastInsertId()
		if err != nil {
			return 0, errs.Storage("reading inserted article id", err)
		}
	case err != nil:
		return 0, errs.Storage("looking up article by title", err)
	default:
		_, updateErr := tx.Exec(
			`UPDATE articles SET url=?, content=?, summary=?, categories=?, sections=?, infobox=?, images=?, coordinates=?, fetched_at=?, updated_at=?
			 WHERE article_id=?`,
			a.URL, a.Content, a.Summary, string(categories), string(sections), string(infobox), string(images), string(coordinates), a.FetchedAt, now, articleID,
		)
		if updateErr != nil {
			return 0, errs.Storage("updating article", updateErr)
		}
	}

	if chunks != nil {
		if err := replaceChunksTx(tx, articleID, chunks); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.Storage("committing upsert_article", err)
	}

	s.bumpMutation()
	return articleID, nil
}

// UpsertLink inserts or replaces the directed edge (fromID, toID).
// Schedules a cache invalidation.
func (s *Store) UpsertLink(fromID, toID int64, anchor string, score float64) error {
	if fromID == toID {
		return errs.Validation("link endpoints must differ", nil)
	}

	_, err := s.db.Exec(
		`INSERT INTO links (from_article_id, to_article_id, anchor, relevance_score, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(from_article_id, to_article_id) DO UPDATE SET
			anchor=excluded.anchor, relevance_score=excluded.relevance_score, created_at=excluded.created_at`,
		fromID, toID, anchor, score, time.Now().UTC(),
	)
	if err != nil {
		return errs.Storage("upserting link", err)
	}

	s.bumpMutation()
	return nil
}

// GetArticleByID returns the article with the given id, or nil if none exists.
func (s *Store) GetArticleByID(id int64) (*core.Article, error) {
	return s.scanArticleRow(s.db.QueryRow(articleSelectColumns+` WHERE article_id = ?`, id))
}

// GetArticleByTitle returns the article with the given title, or nil if none exists.
func (s *Store) GetArticleByTitle(title string) (*core.Article, error) {
	return s.scanArticleRow(s.db.QueryRow(articleSelectColumns+` WHERE title = ?`, title))
}

const articleSelectColumns = `SELECT article_id, title, url, content, summary, categories, sections, infobox, images, coordinates, fetched_at, created_at, updated_at FROM articles`

func (s *Store) scanArticleRow(row *sql.Row) (*core.Article, error) {
	var a core.Article
	var categories, sections, infobox, images, coordinates sql.NullString

	err := row.Scan(&a.ArticleID, &a.Title, &a.URL, &a.Content, &a.Summary, &categories, &sections, &infobox, &images, &coordinates, &a.FetchedAt, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Storage("scanning article", err)
	}

	unmarshalArticleJSON(&a, categories, sections, infobox, images, coordinates)
	return &a, nil
}

func unmarshalArticleJSON(a *core.Article, categories, sections, infobox, images, coordinates sql.NullString) {
	if categories.Valid {
		_ = json.Unmarshal([]byte(categories.String), &a.Categories)
	}
	if sections.Valid {
		_ = json.Unmarshal([]byte(sections.String), &a.Sections)
	}
	if infobox.Valid {
		_ = json.Unmarshal([]byte(infobox.String), &a.Infobox)
	}
	if images.Valid {
		_ = json.Unmarshal([]byte(images.String), &a.Images)
	}
	if coordinates.Valid && coordinates.String != "" {
		var c core.Coordinates
		if json.Unmarshal([]byte(coordinates.String), &c) == nil {
			a.Coordinates = &c
		}
	}
}

// OutboundLinks returns links from articleID with score >= minScore,
// ordered by score descending.
func (s *Store) OutboundLinks(articleID int64, minScore float64) ([]core.Link, error) {
	return s.queryLinks(
		`SELECT from_article_id, to_article_id, anchor, relevance_score, created_at FROM links
		 WHERE from_article_id = ? AND relevance_score >= ? ORDER BY relevance_score DESC`,
		articleID, minScore,
	)
}

// InboundLinks returns links into articleID with score >= minScore,
// ordered by score descending.
func (s *Store) InboundLinks(articleID int64, minScore float64) ([]core.Link, error) {
	return s.queryLinks(
		`SELECT from_article_id, to_article_id, anchor, relevance_score, created_at FROM links
		 WHERE to_article_id = ? AND relevance_score >= ? ORDER BY relevance_score DESC`,
		articleID, minScore,
	)
}

func (s *Store) queryLinks(query string, args ...any) ([]core.Link, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errs.Storage("querying links", err)
	}
	defer func() { _ = rows.Close() }()

	var links []core.Link
	for rows.Next() {
		var l core.Link
		if err := rows.Scan(&l.FromArticleID, &l.ToArticleID, &l.Anchor, &l.RelevanceScore, &l.CreatedAt); err != nil {
			return nil, errs.Storage("scanning link", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ArticleSummary is one row of a search_articles result.
type ArticleSummary struct {
	ArticleID int64
	Title     string
	URL       string
	Summary   string
}

// SearchArticles ranks articles by title match, then summary match,
// then content match, secondary sort by title ascending.
func (s *Store) SearchArticles(query string, limit int) ([]ArticleSummary, error) {
	like := "%" + query + "%"
	rows, err := s.db.Query(
		`SELECT article_id, title, url, summary,
			CASE
				WHEN title LIKE ? THEN 0
				WHEN summary LIKE ? THEN 1
				WHEN content LIKE ? THEN 2
				ELSE 3
			END AS rank
		 FROM articles
		 WHERE title LIKE ? OR summary LIKE ? OR content LIKE ?
		 ORDER BY rank ASC, title ASC
		 LIMIT ?`,
		like, like, like, like, like, like, limit,
	)
	if err != nil {
		return nil, errs.Storage("searching articles", err)
	}
	defer func() { _ = rows.Close() }()

	var results []ArticleSummary
	for rows.Next() {
		var r ArticleSummary
		var rank int
		if err := rows.Scan(&r.ArticleID, &r.Title, &r.URL, &r.Summary, &rank); err != nil {
			return nil, errs.Storage("scanning search result", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ReplaceChunks deletes existing chunks for articleID and bulk-inserts
// the given chunks, all within one transaction.
func (s *Store) ReplaceChunks(articleID int64, chunks []core.Chunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Storage("beginning replace_chunks transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceChunksTx(tx, articleID, chunks); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errs.Storage("committing replace_chunks", err)
	}
	return nil
}

func replaceChunksTx(tx *sql.Tx, articleID int64, chunks []core.Chunk) error {
	if _, err := tx.Exec(`DELETE FROM article_chunks WHERE article_id = ?`, articleID); err != nil {
		return errs.Storage("deleting existing chunks", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO article_chunks (article_id, ord, kind, section_name, content, char_count, token_count, content_hash, needs_embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return errs.Storage("preparing chunk insert", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		if _, err := stmt.Exec(articleID, c.Ord, string(c.Kind), c.SectionName, c.Content, c.CharCount, c.TokenCount, c.ContentHash, c.NeedsEmbedding); err != nil {
			return errs.Storage("inserting chunk", err)
		}
	}
	return nil
}

// PendingEmbeddingChunks returns chunks that need an embedding for the
// given model, oldest (lowest chunk_id) first.
func (s *Store) PendingEmbeddingChunks(model string, limit int) ([]core.Chunk, error) {
	rows, err := s.db.Query(
		`SELECT c.chunk_id, c.article_id, c.ord, c.kind, c.section_name, c.content, c.char_count, c.token_count, c.content_hash, c.needs_embedding
		 FROM article_chunks c
		 WHERE c.needs_embedding = 1
		   AND NOT EXISTS (SELECT 1 FROM chunk_embeddings e WHERE e.chunk_id = c.chunk_id AND e.model_name = ?)
		 ORDER BY c.chunk_id ASC
		 LIMIT ?`,
		model, limit,
	)
	if err != nil {
		return nil, errs.Storage("querying pending embedding chunks", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []core.Chunk
	for rows.Next() {
		var c core.Chunk
		var kind string
		if err := rows.Scan(&c.ChunkID, &c.ArticleID, &c.Ord, &kind, &c.SectionName, &c.Content, &c.CharCount, &c.TokenCount, &c.ContentHash, &c.NeedsEmbedding); err != nil {
			return nil, errs.Storage("scanning pending chunk", err)
		}
		c.Kind = core.ChunkKind(kind)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// WriteEmbeddings upserts vectors for model and clears needs_embedding
// on each chunk, transactionally.
func (s *Store) WriteEmbeddings(batch []core.Embedding, model string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Storage("beginning write_embeddings transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.Prepare(
		`INSERT INTO chunk_embeddings (chunk_id, model_name, vector, dim, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(chunk_id, model_name) DO UPDATE SET vector=excluded.vector, dim=excluded.dim, created_at=excluded.created_at`,
	)
	if err != nil {
		return errs.Storage("preparing embedding upsert", err)
	}
	defer func() { _ = upsert.Close() }()

	clear, err := tx.Prepare(`UPDATE article_chunks SET needs_embedding = 0 WHERE chunk_id = ?`)
	if err != nil {
		return errs.Storage("preparing needs_embedding clear", err)
	}
	defer func() { _ = clear.Close() }()

	for _, e := range batch {
		vecBytes, err := serializeEmbedding(e.Vector)
		if err != nil {
			return errs.Storage("serializing embedding vector", err)
		}
		if _, err := upsert.Exec(e.ChunkID, model, vecBytes, len(e.Vector), time.Now().UTC()); err != nil {
			return errs.Storage("upserting embedding", err)
		}
		if _, err := clear.Exec(e.ChunkID); err != nil {
			return errs.Storage("clearing needs_embedding", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Storage("committing write_embeddings", err)
	}
	return nil
}

// EmbeddingRow is one tuple streamed by ScanEmbeddings.
type EmbeddingRow struct {
	ChunkID     int64
	ArticleID   int64
	Title       string
	SectionName string
	Kind        core.ChunkKind
	Content     string
	Vector      []float32
}

// ScanEmbeddings streams all embeddings for model, joined with their
// chunk and article context, for the retrieval interface to score.
func (s *Store) ScanEmbeddings(model string) ([]EmbeddingRow, error) {
	rows, err := s.db.Query(
		`SELECT e.chunk_id, c.article_id, a.title, c.section_name, c.kind, c.content, e.vector
		 FROM chunk_embeddings e
		 JOIN article_chunks c ON c.chunk_id = e.chunk_id
		 JOIN articles a ON a.article_id = c.article_id
		 WHERE e.model_name = ?`,
		model,
	)
	if err != nil {
		return nil, errs.Storage("scanning embeddings", err)
	}
	defer func() { _ = rows.Close() }()

	var out []EmbeddingRow
	for rows.Next() {
		var r EmbeddingRow
		var kind string
		var vecBytes []byte
		if err := rows.Scan(&r.ChunkID, &r.ArticleID, &r.Title, &r.SectionName, &kind, &r.Content, &vecBytes); err != nil {
			return nil, errs.Storage("scanning embedding row", err)
		}
		r.Kind = core.ChunkKind(kind)
		vec, err := deserializeEmbedding(vecBytes)
		if err != nil {
			return nil, errs.Storage("deserializing embedding vector", err)
		}
		r.Vector = vec
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentDiscoveries returns the most recently created articles.
func (s *Store) RecentDiscoveries(limit int) ([]ArticleSummary, error) {
	rows, err := s.db.Query(
		`SELECT article_id, title, url, summary FROM articles ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, errs.Storage("querying recent discoveries", err)
	}
	defer func() { _ = rows.Close() }()
	return scanArticleSummaries(rows)
}

// KnowledgeHubs returns the articles with the highest combined
// inbound+outbound link count.
func (s *Store) KnowledgeHubs(limit int) ([]ArticleSummary, error) {
	rows, err := s.db.Query(`
		SELECT a.article_id, a.title, a.url, a.summary
		FROM articles a
		LEFT JOIN links lo ON lo.from_article_id = a.article_id
		LEFT JOIN links li ON li.to_article_id = a.article_id
		GROUP BY a.article_id
		ORDER BY (COUNT(DISTINCT lo.to_article_id) + COUNT(DISTINCT li.from_article_id)) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errs.Storage("querying knowledge hubs", err)
	}
	defer func() { _ = rows.Close() }()
	return scanArticleSummaries(rows)
}

func scanArticleSummaries(rows *sql.Rows) ([]ArticleSummary, error) {
	var out []ArticleSummary
	for rows.Next() {
		var r ArticleSummary
		if err := rows.Scan(&r.ArticleID, &r.Title, &r.URL, &r.Summary); err != nil {
			return nil, errs.Storage("scanning article summary", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RetentionSweep deletes articles whose fetched_at is older than
// keepDays, cascading through chunks and embeddings. Returns the
// number of articles deleted.
func (s *Store) RetentionSweep(keepDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays).Unix()

	res, err := s.db.Exec(`DELETE FROM articles WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, errs.Storage("running retention sweep", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Storage("reading retention sweep row count", err)
	}

	if n > 0 {
		s.bumpMutation()
	}
	return int(n), nil
}

// AllArticleIDs returns every article_id in the store, for the Graph
// Builder's "complete graph" variant.
func (s *Store) AllArticleIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT article_id FROM articles`)
	if err != nil {
		return nil, errs.Storage("querying all article ids", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Storage("scanning article id", err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, rows.Err()
}

// AllLinks returns every link with score >= minScore, for the Graph
// Builder's "complete graph" variant.
func (s *Store) AllLinks(minScore float64) ([]core.Link, error) {
	return s.queryLinks(
		`SELECT from_article_id, to_article_id, anchor, relevance_score, created_at FROM links WHERE relevance_score >= ?`,
		minScore,
	)
}

// SaveSession inserts or updates a crawl session row.
func (s *Store) SaveSession(session core.CrawlSession) error {
	_, err := s.db.Exec(
		`INSERT INTO crawl_sessions (session_id, seed_url, max_depth, max_articles, articles_crawled, status, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			articles_crawled=excluded.articles_crawled, status=excluded.status, completed_at=excluded.completed_at`,
		session.SessionID, session.SeedURL, session.MaxDepth, session.MaxArticles, session.ArticlesCrawled, string(session.Status), session.StartedAt, session.CompletedAt,
	)
	if err != nil {
		return errs.Storage("saving crawl session", err)
	}
	return nil
}

func serializeEmbedding(vector []float32) ([]byte, error) {
	if vector == nil {
		return nil, nil
	}
	buf := new(bytes.Buffer)
	for _, v := range vector {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("serializing embedding: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func deserializeEmbedding(data []byte) ([]float32, error) {
	if data == nil {
		return nil, nil
	}
	buf := bytes.NewReader(data)
	var vector []float32
	for buf.Len() > 0 {
		var v float32
		if err := binary.Read(buf, binary.LittleEndian, &v); err != nil {
			return nil, fmt.Errorf("deserializing embedding: %w", err)
		}
		vector = append(vector, v)
	}
	return vector, nil
}
