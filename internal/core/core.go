// Package core defines the domain types shared across Tessera's
// subsystems: the crawl engine, parser, chunker, link analyzer,
// knowledge store, and graph builder.
package core

import "time"

// Section is one heading-delimited block of an Article's body.
type Section struct {
	Level int    `json:"level"` // heading level, 1-6
	Title string `json:"title"`
}

// Coordinates is an optional geographic location extracted from the
// first .geo element of an Article's page.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Article is one Wikipedia-style page stored locally.
type Article struct {
	ArticleID   int64             `json:"article_id"`
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Content     string            `json:"content"`
	Summary     string            `json:"summary"`
	Categories  []string          `json:"categories"`
	Sections    []Section         `json:"sections"`
	Infobox     map[string]string `json:"infobox"`
	Images      []string          `json:"images"`
	Coordinates *Coordinates      `json:"coordinates,omitempty"`
	FetchedAt   int64             `json:"fetched_at"` // epoch seconds
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Link is a directed edge from one article to another, discovered
// during a crawl. Self-loops (FromArticleID == ToArticleID) are never
// produced by the parser or the store.
type Link struct {
	FromArticleID  int64     `json:"from_article_id"`
	ToArticleID    int64     `json:"to_article_id"`
	Anchor         string    `json:"anchor"`
	RelevanceScore float64   `json:"relevance_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChunkKind enumerates the possible kinds of a retrieval Chunk.
type ChunkKind string

const (
	ChunkSummary     ChunkKind = "summary"
	ChunkSection     ChunkKind = "section"
	ChunkSectionPart ChunkKind = "section_part"
	ChunkParagraph   ChunkKind = "paragraph"
)

// Chunk is a retrieval unit derived from an Article.
type Chunk struct {
	ChunkID        int64     `json:"chunk_id"`
	ArticleID      int64     `json:"article_id"`
	Ord            int       `json:"ord"` // stable order within the article
	Kind           ChunkKind `json:"kind"`
	SectionName    string    `json:"section_name,omitempty"`
	Content        string    `json:"content"`
	CharCount      int       `json:"char_count"`
	TokenCount     int       `json:"token_count"`
	ContentHash    string    `json:"content_hash"`
	NeedsEmbedding bool      `json:"needs_embedding"`
}

// Embedding is the dense vector associated with a Chunk for a given
// embedding model.
type Embedding struct {
	ChunkID   int64     `json:"chunk_id"`
	ModelName string    `json:"model_name"`
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

// InterestProfile configures the Link Analyzer's scoring.
type InterestProfile struct {
	Interests       []string `json:"interests"`
	Boosts          []string `json:"boosts"`
	FollowThreshold float64  `json:"follow_threshold"`
}

// DefaultInterestProfile returns a profile with the default follow
// threshold and no configured terms.
func DefaultInterestProfile() InterestProfile {
	return InterestProfile{FollowThreshold: 0.3}
}

// SessionStatus enumerates the lifecycle states of a CrawlSession.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionStopped   SessionStatus = "stopped"
	SessionError     SessionStatus = "error"
)

// CrawlSession records one crawl invocation end to end.
type CrawlSession struct {
	SessionID       string        `json:"session_id"`
	SeedURL         string        `json:"seed_url"`
	MaxDepth        int           `json:"max_depth"`
	MaxArticles     int           `json:"max_articles"`
	ArticlesCrawled int           `json:"articles_crawled"`
	Status          SessionStatus `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

// FrontierEntry is transient crawl-frontier state; ParentArticleID is
// nil only for the seed URL.
type FrontierEntry struct {
	URL             string
	Depth           int
	ParentArticleID *int64
	ParentRelevance float64
	Anchor          string
}

// NodeType classifies a graph node by its inferred subject matter.
type NodeType string

const (
	NodePerson       NodeType = "person"
	NodePlace        NodeType = "place"
	NodeConcept      NodeType = "concept"
	NodeOrganization NodeType = "organization"
	NodeEvent        NodeType = "event"
	NodeTechnology   NodeType = "technology"
	NodeGeneral      NodeType = "general"
)

// GraphNode is one materialized node in a GraphView.
type GraphNode struct {
	ArticleID   int64        `json:"article_id"`
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Depth       int          `json:"depth"` // BFS distance from center; 0 for a whole-store graph
	Categories  []string     `json:"categories"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	NodeType    NodeType     `json:"node_type"`
	Importance  float64      `json:"importance"`
}

// GraphEdge is one materialized edge in a GraphView.
type GraphEdge struct {
	From   int64   `json:"from"`
	To     int64   `json:"to"`
	Weight float64 `json:"weight"`
	Anchor string  `json:"anchor"`
}

// GraphMetrics summarizes a GraphView's shape.
type GraphMetrics struct {
	NodeCount         int              `json:"node_count"`
	EdgeCount         int              `json:"edge_count"`
	Density           float64          `json:"density"`
	NodeTypeHistogram map[NodeType]int `json:"node_type_histogram"`
	ComponentCount    int              `json:"component_count"`
	AvgEdgeWeight     float64          `json:"avg_edge_weight"`
	AvgInDegree       float64          `json:"avg_in_degree"`
	AvgOutDegree      float64          `json:"avg_out_degree"`
	MaxInDegree       int              `json:"max_in_degree"`
	MaxOutDegree      int              `json:"max_out_degree"`
}

// GraphParams identifies the parameters a GraphView was built with; it
// doubles as the payload hashed into the graph cache key.
type GraphParams struct {
	MinRelevance   float64 `json:"min_relevance"`
	MaxDepth       int     `json:"max_depth"`
	CenterArticle  string  `json:"center_article_id"` // decimal article ID, or "" for the whole store
	Enhanced       bool    `json:"enhanced"`
	StoreMutatedAt int64   `json:"store_mutation_ts"`
}

// GraphMetadata records when and how a GraphView was produced.
type GraphMetadata struct {
	CreatedAt time.Time   `json:"created_at"`
	Params    GraphParams `json:"params"`
}

// GraphView is a materialized, cacheable graph of articles and links.
type GraphView struct {
	Nodes    map[int64]GraphNode `json:"nodes"`
	Edges    []GraphEdge         `json:"edges"`
	Metrics  GraphMetrics        `json:"metrics"`
	Metadata GraphMetadata       `json:"metadata"`
}
