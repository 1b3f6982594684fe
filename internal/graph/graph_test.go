package graph

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"tessera/internal/core"
	"tessera/internal/store"
)

func newTestBuilder(t *testing.T) (*Builder, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return NewBuilder(st, t.TempDir()), st
}

func TestClassifyNodePrecedence(t *testing.T) {
	cases := []struct {
		name    string
		article core.Article
		want    core.NodeType
	}{
		{"person by category", core.Article{Categories: []string{"1912 births", "American physicists"}}, core.NodePerson},
		{"person by infobox", core.Article{Infobox: map[string]string{"born": "1990"}}, core.NodePerson},
		{"place by coordinates", core.Article{Coordinates: &core.Coordinates{Lat: 1, Lon: 2}}, core.NodePlace},
		{"place by category", core.Article{Categories: []string{"Cities in France"}}, core.NodePlace},
		{"concept", core.Article{Categories: []string{"Philosophical concepts"}}, core.NodeConcept},
		{"organization", core.Article{Categories: []string{"Technology companies"}}, core.NodeOrganization},
		{"event", core.Article{Categories: []string{"Wars involving France"}}, core.NodeEvent},
		{"technology", core.Article{Categories: []string{"Programming languages"}}, core.NodeTechnology},
		{"general fallback", core.Article{Categories: []string{"Miscellanea"}}, core.NodeGeneral},
		{"person wins over place when both present", core.Article{Categories: []string{"1950 births", "Cities in France"}}, core.NodePerson},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classifyNode(c.article); got != c.want {
				t.Errorf("classifyNode(%+v) = %s, want %s", c.article, got, c.want)
			}
		})
	}
}

func seedGraph(t *testing.T, st *store.Store) (a, b, c int64) {
	t.Helper()
	a, err := st.UpsertArticle(core.Article{Title: "Go", URL: "https://en.wikipedia.org/wiki/Go", Categories: []string{"Programming languages"}}, nil)
	if err != nil {
		t.Fatalf("upsert a failed: %v", err)
	}
	b, err = st.UpsertArticle(core.Article{Title: "Rust", URL: "https://en.wikipedia.org/wiki/Rust", Categories: []string{"Programming languages"}}, nil)
	if err != nil {
		t.Fatalf("upsert b failed: %v", err)
	}
	c, err = st.UpsertArticle(core.Article{Title: "Google", URL: "https://en.wikipedia.org/wiki/Google", Categories: []string{"Technology companies"}}, nil)
	if err != nil {
		t.Fatalf("upsert c failed: %v", err)
	}
	if err := st.UpsertLink(a, b, "Rust", 0.8); err != nil {
		t.Fatalf("link a->b failed: %v", err)
	}
	if err := st.UpsertLink(a, c, "Google", 0.5); err != nil {
		t.Fatalf("link a->c failed: %v", err)
	}
	return a, b, c
}

func TestBuildCompleteGraphIncludesAllArticles(t *testing.T) {
	b, st := newTestBuilder(t)
	a, rustID, googleID := seedGraph(t, st)

	view, err := b.Build(core.GraphParams{MinRelevance: 0})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(view.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(view.Nodes))
	}
	if len(view.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(view.Edges))
	}
	if view.Nodes[rustID].NodeType != core.NodeTechnology {
		t.Errorf("expected Rust classified as technology, got %s", view.Nodes[rustID].NodeType)
	}
	if view.Nodes[googleID].NodeType != core.NodeOrganization {
		t.Errorf("expected Google classified as organization, got %s", view.Nodes[googleID].NodeType)
	}
	if view.Metrics.NodeCount != 3 || view.Metrics.EdgeCount != 2 {
		t.Errorf("unexpected metrics: %+v", view.Metrics)
	}
	wantDensity := 2.0 / (3.0 * 2.0)
	if view.Metrics.Density != wantDensity {
		t.Errorf("expected density %f, got %f", wantDensity, view.Metrics.Density)
	}
	if view.Metrics.ComponentCount != 1 {
		t.Errorf("expected 1 connected component, got %d", view.Metrics.ComponentCount)
	}
	_ = a
}

func TestBuildCompleteGraphFiltersByMinRelevance(t *testing.T) {
	b, st := newTestBuilder(t)
	seedGraph(t, st)

	view, err := b.Build(core.GraphParams{MinRelevance: 0.6})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(view.Edges) != 1 {
		t.Fatalf("expected 1 edge to survive a 0.6 relevance filter, got %d", len(view.Edges))
	}
}

func TestBuildCentersOnArticleWithBFSDepth(t *testing.T) {
	b, st := newTestBuilder(t)
	a, rustID, _ := seedGraph(t, st)

	params := core.GraphParams{CenterArticle: itoa(a), MaxDepth: 1}
	view, err := b.Build(params)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(view.Nodes) != 3 {
		t.Fatalf("expected center plus its two direct links, got %d nodes", len(view.Nodes))
	}
	if view.Nodes[a].Depth != 0 {
		t.Errorf("expected center depth 0, got %d", view.Nodes[a].Depth)
	}
	if view.Nodes[rustID].Depth != 1 {
		t.Errorf("expected direct link depth 1, got %d", view.Nodes[rustID].Depth)
	}
}

func TestBuildRejectsNonNumericCenterArticle(t *testing.T) {
	b, st := newTestBuilder(t)
	seedGraph(t, st)

	if _, err := b.Build(core.GraphParams{CenterArticle: "not-a-number"}); err == nil {
		t.Fatalf("expected error for non-numeric center_article_id")
	}
}

func TestImportanceFormula(t *testing.T) {
	b, st := newTestBuilder(t)
	a, rustID, googleID := seedGraph(t, st)

	view, err := b.Build(core.GraphParams{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// a has outbound=2, inbound=0: (2*0+2)/30
	if got, want := view.Nodes[a].Importance, 2.0/30.0; got != want {
		t.Errorf("expected a importance %f, got %f", want, got)
	}
	// rust has inbound=1, outbound=0: (2*1+0)/30
	if got, want := view.Nodes[rustID].Importance, 2.0/30.0; got != want {
		t.Errorf("expected rust importance %f, got %f", want, got)
	}
	_ = googleID
}

func TestBuildRecomputesAfterStoreWrite(t *testing.T) {
	b, st := newTestBuilder(t)
	seedGraph(t, st)

	first, err := b.Build(core.GraphParams{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// A direct write to the store bumps its mutation marker, which
	// changes the cache key, so the second build must recompute rather
	// than return a stale view missing the new article.
	_, err = st.UpsertArticle(core.Article{Title: "Zig", URL: "https://en.wikipedia.org/wiki/Zig"}, nil)
	if err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	second, err := b.Build(core.GraphParams{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(second.Nodes) != len(first.Nodes)+1 {
		t.Fatalf("expected the new article to show up after a store write, first=%d second=%d", len(first.Nodes), len(second.Nodes))
	}
}

func TestInvalidateDebouncesBurstsOfWrites(t *testing.T) {
	b, st := newTestBuilder(t)
	seedGraph(t, st)

	if _, err := b.Build(core.GraphParams{}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	b.mu.Lock()
	sizeBefore := len(b.lru)
	b.mu.Unlock()
	if sizeBefore == 0 {
		t.Fatalf("expected the cache to hold an entry after Build")
	}

	b.Invalidate()
	b.Invalidate()

	b.mu.Lock()
	pending := b.pendingFlush
	b.mu.Unlock()
	if !pending {
		t.Errorf("expected a rapid second invalidation to be deferred as a pending flush")
	}

	b.FlushPending()
	b.mu.Lock()
	sizeAfter := len(b.lru)
	b.mu.Unlock()
	if sizeAfter != 0 {
		t.Errorf("expected FlushPending to clear the cache, still has %d entries", sizeAfter)
	}
}

func TestShortestPathFindsDirectAndTransitiveRoutes(t *testing.T) {
	view := &core.GraphView{
		Nodes: map[int64]core.GraphNode{1: {}, 2: {}, 3: {}},
		Edges: []core.GraphEdge{{From: 1, To: 2}, {From: 2, To: 3}},
	}

	path, ok := ShortestPath(view, 1, 3)
	if !ok {
		t.Fatalf("expected a path from 1 to 3")
	}
	want := []int64{1, 2, 3}
	if !equalPath(path, want) {
		t.Errorf("expected path %v, got %v", want, path)
	}
}

func TestShortestPathReportsUnreachable(t *testing.T) {
	view := &core.GraphView{
		Nodes: map[int64]core.GraphNode{1: {}, 2: {}},
		Edges: nil,
	}
	if _, ok := ShortestPath(view, 1, 2); ok {
		t.Errorf("expected no path between disconnected nodes")
	}
}

func TestNeighborhoodRespectsHopLimit(t *testing.T) {
	view := &core.GraphView{
		Nodes: map[int64]core.GraphNode{1: {ArticleID: 1}, 2: {ArticleID: 2}, 3: {ArticleID: 3}},
		Edges: []core.GraphEdge{{From: 1, To: 2}, {From: 2, To: 3}},
	}

	sub := Neighborhood(view, 1, 1)
	if len(sub.Nodes) != 2 {
		t.Fatalf("expected center plus one hop, got %d nodes", len(sub.Nodes))
	}
	if _, ok := sub.Nodes[3]; ok {
		t.Errorf("expected node 3 to be excluded beyond the hop limit")
	}
}

func TestExportJSONRoundTripsNodeCount(t *testing.T) {
	view := &core.GraphView{
		Nodes: map[int64]core.GraphNode{1: {ArticleID: 1, Title: "Go"}},
		Metadata: core.GraphMetadata{CreatedAt: time.Now().UTC()},
	}
	data, err := ExportJSON(view)
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}
	if !strings.Contains(string(data), `"Go"`) {
		t.Errorf("expected exported JSON to contain the node title, got %s", data)
	}
}

func TestExportGraphMLEscapesTitles(t *testing.T) {
	view := &core.GraphView{
		Nodes: map[int64]core.GraphNode{1: {ArticleID: 1, Title: `Tom & Jerry <show>`}},
	}
	data, err := ExportGraphML(view)
	if err != nil {
		t.Fatalf("ExportGraphML failed: %v", err)
	}
	if strings.Contains(string(data), "<show>") {
		t.Errorf("expected angle brackets in a title to be escaped, got %s", data)
	}
	if !strings.Contains(string(data), "&amp;") {
		t.Errorf("expected ampersand to be escaped, got %s", data)
	}
}

func TestExportDOTQuotesLabels(t *testing.T) {
	view := &core.GraphView{
		Nodes: map[int64]core.GraphNode{1: {ArticleID: 1, Title: `Say "hello"`}},
	}
	data, err := ExportDOT(view)
	if err != nil {
		t.Fatalf("ExportDOT failed: %v", err)
	}
	if !strings.Contains(string(data), `\"hello\"`) {
		t.Errorf("expected embedded quotes to be escaped, got %s", data)
	}
}

func equalPath(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
