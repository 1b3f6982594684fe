// Package graph builds, caches, and exports the knowledge graph that
// sits over the store's articles and links: a complete view of every
// article, or a centered view radiating outward from one article by
// BFS depth.
package graph

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"tessera/internal/core"
	"tessera/internal/errs"
	"tessera/internal/fingerprint"
	"tessera/internal/store"
)

// debounceWindow bounds how often a burst of store writes collapses
// into a single cache invalidation.
const debounceWindow = 2 * time.Second

// lruSizeCap is the in-memory cache's entry limit; crossing it evicts
// the oldest third by last access time.
const lruSizeCap = 50

// defaultTTL bounds how long a cached view is served before a rebuild.
const defaultTTL = time.Hour

type cacheEntry struct {
	view       *core.GraphView
	cachedAt   time.Time
	accessedAt time.Time
}

// Builder constructs GraphViews from a Store and caches them in memory
// and on disk, keyed by the parameters that produced them.
type Builder struct {
	store    *store.Store
	cacheDir string

	mu   sync.Mutex
	lru  map[string]*cacheEntry

	lastInvalidate time.Time
	pendingFlush   bool
}

// NewBuilder constructs a Builder and registers it with the store so
// that writes schedule a debounced cache invalidation.
func NewBuilder(st *store.Store, cacheDir string) *Builder {
	b := &Builder{store: st, cacheDir: cacheDir, lru: make(map[string]*cacheEntry)}
	st.OnInvalidate(b.Invalidate)
	return b
}

// Build returns a GraphView for params, serving from cache when
// possible. params.StoreMutatedAt is overwritten with the store's
// current mutation marker before the cache key is computed.
func (b *Builder) Build(params core.GraphParams) (*core.GraphView, error) {
	params.StoreMutatedAt = b.store.MutationTimestamp()

	key, err := cacheKey(params)
	if err != nil {
		return nil, errs.Storage("computing graph cache key", err)
	}

	if view := b.lookupMemory(key); view != nil {
		return view, nil
	}
	if view := b.lookupDisk(key); view != nil {
		b.storeMemory(key, view)
		return view, nil
	}

	view, err := b.compute(params)
	if err != nil {
		return nil, err
	}
	b.storeMemory(key, view)
	b.storeDisk(key, view)
	return view, nil
}

func cacheKey(params core.GraphParams) (string, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return fingerprint.HashCacheKey(payload), nil
}

func (b *Builder) lookupMemory(key string) *core.GraphView {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.lru[key]
	if !ok {
		return nil
	}
	if time.Since(entry.cachedAt) > defaultTTL {
		delete(b.lru, key)
		return nil
	}
	entry.accessedAt = time.Now()
	return entry.view
}

func (b *Builder) storeMemory(key string, view *core.GraphView) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.lru[key] = &cacheEntry{view: view, cachedAt: now, accessedAt: now}
	if len(b.lru) > lruSizeCap {
		b.evictOldestThirdLocked()
	}
}

func (b *Builder) evictOldestThirdLocked() {
	type keyedAccess struct {
		key        string
		accessedAt time.Time
	}
	entries := make([]keyedAccess, 0, len(b.lru))
	for k, e := range b.lru {
		entries = append(entries, keyedAccess{k, e.accessedAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].accessedAt.Before(entries[j].accessedAt) })

	evict := len(entries) / 3
	for i := 0; i < evict; i++ {
		delete(b.lru, entries[i].key)
	}
}

func (b *Builder) diskPath(key string) string {
	return filepath.Join(b.cacheDir, key+".gob")
}

func (b *Builder) lookupDisk(key string) *core.GraphView {
	if b.cacheDir == "" {
		return nil
	}
	data, err := os.ReadFile(b.diskPath(key))
	if err != nil {
		return nil
	}
	var view core.GraphView
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&view); err != nil {
		return nil
	}
	return &view
}

func (b *Builder) storeDisk(key string, view *core.GraphView) {
	if b.cacheDir == "" {
		return
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(view); err != nil {
		return
	}
	if err := os.MkdirAll(b.cacheDir, 0755); err != nil {
		return
	}
	_ = os.WriteFile(b.diskPath(key), buf.Bytes(), 0644)
}

// Invalidate schedules a cache clear. Invalidations arriving within
// debounceWindow of the last one collapse into a single pending flush
// rather than clearing the cache on every write in a burst.
func (b *Builder) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if !b.lastInvalidate.IsZero() && now.Sub(b.lastInvalidate) < debounceWindow {
		b.pendingFlush = true
		return
	}
	b.lastInvalidate = now
	b.clearCacheLocked()
}

// FlushPending forces any debounced invalidation to apply immediately.
// Called at crawl session end so a session's writes are never left
// only partially reflected in the cache.
func (b *Builder) FlushPending() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.pendingFlush {
		return
	}
	b.clearCacheLocked()
	b.pendingFlush = false
	b.lastInvalidate = time.Now()
}

func (b *Builder) clearCacheLocked() {
	b.lru = make(map[string]*cacheEntry)
	if b.cacheDir == "" {
		return
	}
	entries, err := os.ReadDir(b.cacheDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		_ = os.Remove(filepath.Join(b.cacheDir, e.Name()))
	}
}

func (b *Builder) compute(params core.GraphParams) (*core.GraphView, error) {
	if params.CenterArticle != "" {
		centerID, err := strconv.ParseInt(params.CenterArticle, 10, 64)
		if err != nil {
			return nil, errs.Validation("center_article_id must be a decimal article id", err)
		}
		return b.computeCentered(params, centerID)
	}
	return b.computeComplete(params)
}

func (b *Builder) computeComplete(params core.GraphParams) (*core.GraphView, error) {
	ids, err := b.store.AllArticleIDs()
	if err != nil {
		return nil, err
	}
	links, err := b.store.AllLinks(params.MinRelevance)
	if err != nil {
		return nil, err
	}

	nodes := make(map[int64]core.GraphNode, len(ids))
	for _, id := range ids {
		article, err := b.store.GetArticleByID(id)
		if err != nil {
			return nil, err
		}
		if article == nil {
			continue
		}
		nodes[id] = newNode(*article, 0)
	}

	edges := make([]core.GraphEdge, 0, len(links))
	for _, l := range links {
		if _, ok := nodes[l.FromArticleID]; !ok {
			continue
		}
		if _, ok := nodes[l.ToArticleID]; !ok {
			continue
		}
		edges = append(edges, core.GraphEdge{From: l.FromArticleID, To: l.ToArticleID, Weight: l.RelevanceScore, Anchor: l.Anchor})
	}

	applyImportance(nodes, edges)
	return &core.GraphView{
		Nodes:    nodes,
		Edges:    edges,
		Metrics:  computeMetrics(nodes, edges),
		Metadata: core.GraphMetadata{CreatedAt: time.Now().UTC(), Params: params},
	}, nil
}

// computeCentered BFS-expands outbound from centerID up to
// params.MaxDepth, tagging each node with its BFS distance. Inbound
// edges into the frontier are never followed, so a centered view never
// reflects who links in to its members.
func (b *Builder) computeCentered(params core.GraphParams, centerID int64) (*core.GraphView, error) {
	type queued struct {
		id    int64
		depth int
	}

	nodes := make(map[int64]core.GraphNode)
	var edges []core.GraphEdge
	visited := map[int64]bool{centerID: true}
	queue := []queued{{centerID, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		article, err := b.store.GetArticleByID(cur.id)
		if err != nil {
			return nil, err
		}
		if article == nil {
			continue
		}
		nodes[cur.id] = newNode(*article, cur.depth)

		if cur.depth >= params.MaxDepth {
			continue
		}

		out, err := b.store.OutboundLinks(cur.id, params.MinRelevance)
		if err != nil {
			return nil, err
		}
		for _, l := range out {
			edges = append(edges, core.GraphEdge{From: l.FromArticleID, To: l.ToArticleID, Weight: l.RelevanceScore, Anchor: l.Anchor})
			if !visited[l.ToArticleID] {
				visited[l.ToArticleID] = true
				queue = append(queue, queued{l.ToArticleID, cur.depth + 1})
			}
		}
	}

	applyImportance(nodes, edges)
	return &core.GraphView{
		Nodes:    nodes,
		Edges:    edges,
		Metrics:  computeMetrics(nodes, edges),
		Metadata: core.GraphMetadata{CreatedAt: time.Now().UTC(), Params: params},
	}, nil
}

func newNode(article core.Article, depth int) core.GraphNode {
	return core.GraphNode{
		ArticleID:   article.ArticleID,
		Title:       article.Title,
		URL:         article.URL,
		Depth:       depth,
		Categories:  article.Categories,
		Coordinates: article.Coordinates,
		NodeType:    classifyNode(article),
	}
}

// classifyNode infers a node's subject matter from its categories and
// infobox, in fixed precedence order: a person-shaped article is never
// reclassified as a place just because it also mentions one. Ties go
// to the first matching rule.
func classifyNode(article core.Article) core.NodeType {
	cats := strings.ToLower(strings.Join(article.Categories, " "))

	switch {
	case containsAny(cats, "births", "deaths", "surnames", "given names", "living people") ||
		hasInfoboxKey(article.Infobox, "born", "occupation", "spouse"):
		return core.NodePerson
	case article.Coordinates != nil ||
		containsAny(cats, "cities", "towns", "villages", "countries", "capitals", "geography", "populated places", "rivers", "mountains", "regions"):
		return core.NodePlace
	case containsAny(cats, "concepts", "theories", "philosophy", "ideas", "principles", "mathematics"):
		return core.NodeConcept
	case containsAny(cats, "companies", "corporations", "organizations", "institutions", "universities", "agencies", "nonprofit"):
		return core.NodeOrganization
	case containsAny(cats, "wars", "battles", "events", "disasters", "revolutions", "attacks", "elections"):
		return core.NodeEvent
	case containsAny(cats, "software", "programming languages", "technology", "computing", "algorithms", "hardware", "protocols", "internet"):
		return core.NodeTechnology
	default:
		return core.NodeGeneral
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func hasInfoboxKey(infobox map[string]string, keys ...string) bool {
	for _, k := range keys {
		if _, ok := infobox[k]; ok {
			return true
		}
	}
	return false
}

func applyImportance(nodes map[int64]core.GraphNode, edges []core.GraphEdge) {
	inbound := map[int64]int{}
	outbound := map[int64]int{}
	for _, e := range edges {
		outbound[e.From]++
		inbound[e.To]++
	}
	for id, node := range nodes {
		importance := (2*float64(inbound[id]) + float64(outbound[id])) / 30.0
		if importance > 1.0 {
			importance = 1.0
		}
		node.Importance = importance
		nodes[id] = node
	}
}

func computeMetrics(nodes map[int64]core.GraphNode, edges []core.GraphEdge) core.GraphMetrics {
	n := len(nodes)
	m := len(edges)

	density := 0.0
	if n > 1 {
		density = float64(m) / float64(n*(n-1))
	}

	inDegree := map[int64]int{}
	outDegree := map[int64]int{}
	var totalWeight float64
	for _, e := range edges {
		outDegree[e.From]++
		inDegree[e.To]++
		totalWeight += e.Weight
	}

	var avgIn, avgOut float64
	var maxIn, maxOut int
	for id := range nodes {
		if inDegree[id] > maxIn {
			maxIn = inDegree[id]
		}
		if outDegree[id] > maxOut {
			maxOut = outDegree[id]
		}
		avgIn += float64(inDegree[id])
		avgOut += float64(outDegree[id])
	}
	if n > 0 {
		avgIn /= float64(n)
		avgOut /= float64(n)
	}

	avgWeight := 0.0
	if m > 0 {
		avgWeight = totalWeight / float64(m)
	}

	histogram := make(map[core.NodeType]int)
	for _, node := range nodes {
		histogram[node.NodeType]++
	}

	return core.GraphMetrics{
		NodeCount:         n,
		EdgeCount:         m,
		Density:           density,
		NodeTypeHistogram: histogram,
		ComponentCount:    countComponents(nodes, edges),
		AvgEdgeWeight:     avgWeight,
		AvgInDegree:       avgIn,
		AvgOutDegree:      avgOut,
		MaxInDegree:       maxIn,
		MaxOutDegree:      maxOut,
	}
}

func countComponents(nodes map[int64]core.GraphNode, edges []core.GraphEdge) int {
	if len(nodes) == 0 {
		return 0
	}

	g := simple.NewUndirectedGraph()
	for id := range nodes {
		g.AddNode(simple.Node(id))
	}
	for _, e := range edges {
		if e.From == e.To {
			continue
		}
		if g.HasEdgeBetween(e.From, e.To) {
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(e.From), T: simple.Node(e.To)})
	}

	return len(topo.ConnectedComponents(g))
}

// ShortestPath returns the unweighted directed BFS path from `from` to
// `to` over view's edges, or ok=false if no such path exists.
func ShortestPath(view *core.GraphView, from, to int64) ([]int64, bool) {
	if from == to {
		if _, ok := view.Nodes[from]; ok {
			return []int64{from}, true
		}
		return nil, false
	}

	adjacency := make(map[int64][]int64)
	for _, e := range view.Edges {
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}

	visited := map[int64]bool{from: true}
	prev := make(map[int64]int64)
	queue := []int64{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = cur
			if next == to {
				return reconstructPath(prev, from, to), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func reconstructPath(prev map[int64]int64, from, to int64) []int64 {
	path := []int64{to}
	cur := to
	for cur != from {
		cur = prev[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Neighborhood returns the subgraph of view within hops undirected
// steps of center, with each retained node's Depth set to its BFS
// distance from center.
func Neighborhood(view *core.GraphView, center int64, hops int) *core.GraphView {
	adjacency := make(map[int64][]int64)
	for _, e := range view.Edges {
		adjacency[e.From] = append(adjacency[e.From], e.To)
		adjacency[e.To] = append(adjacency[e.To], e.From)
	}

	depth := map[int64]int{center: 0}
	queue := []int64{center}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if depth[cur] >= hops {
			continue
		}
		for _, next := range adjacency[cur] {
			if _, seen := depth[next]; seen {
				continue
			}
			depth[next] = depth[cur] + 1
			queue = append(queue, next)
		}
	}

	nodes := make(map[int64]core.GraphNode)
	for id, d := range depth {
		if node, ok := view.Nodes[id]; ok {
			node.Depth = d
			nodes[id] = node
		}
	}

	var edges []core.GraphEdge
	for _, e := range view.Edges {
		if _, ok := nodes[e.From]; !ok {
			continue
		}
		if _, ok := nodes[e.To]; !ok {
			continue
		}
		edges = append(edges, e)
	}

	return &core.GraphView{
		Nodes:    nodes,
		Edges:    edges,
		Metrics:  computeMetrics(nodes, edges),
		Metadata: core.GraphMetadata{CreatedAt: time.Now().UTC(), Params: view.Metadata.Params},
	}
}

// ExportJSON renders view as indented JSON.
func ExportJSON(view *core.GraphView) ([]byte, error) {
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return nil, errs.Service("marshaling graph view to json", err)
	}
	return data, nil
}

// ExportGraphML renders view as a GraphML document with title and
// node_type node attributes and a weight edge attribute.
func ExportGraphML(view *core.GraphView) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<graphml xmlns="http://graphml.graphdrawing.org/xmlns">` + "\n")
	buf.WriteString(`<key id="title" for="node" attr.name="title" attr.type="string"/>` + "\n")
	buf.WriteString(`<key id="node_type" for="node" attr.name="node_type" attr.type="string"/>` + "\n")
	buf.WriteString(`<key id="weight" for="edge" attr.name="weight" attr.type="double"/>` + "\n")
	buf.WriteString(`<graph id="tessera" edgedefault="directed">` + "\n")

	for _, id := range sortedNodeIDs(view.Nodes) {
		node := view.Nodes[id]
		fmt.Fprintf(&buf, `<node id="n%d">`+"\n", id)
		fmt.Fprintf(&buf, `<data key="title">%s</data>`+"\n", escapeXML(node.Title))
		fmt.Fprintf(&buf, `<data key="node_type">%s</data>`+"\n", escapeXML(string(node.NodeType)))
		buf.WriteString("</node>\n")
	}

	for i, e := range view.Edges {
		fmt.Fprintf(&buf, `<edge id="e%d" source="n%d" target="n%d">`+"\n", i, e.From, e.To)
		fmt.Fprintf(&buf, `<data key="weight">%f</data>`+"\n", e.Weight)
		buf.WriteString("</edge>\n")
	}

	buf.WriteString("</graph>\n</graphml>\n")
	return buf.Bytes(), nil
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// ExportDOT renders view as a Graphviz DOT digraph.
func ExportDOT(view *core.GraphView) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("digraph tessera {\n")

	for _, id := range sortedNodeIDs(view.Nodes) {
		fmt.Fprintf(&buf, "  n%d [label=%q];\n", id, view.Nodes[id].Title)
	}
	for _, e := range view.Edges {
		fmt.Fprintf(&buf, "  n%d -> n%d [weight=%f];\n", e.From, e.To, e.Weight)
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func sortedNodeIDs(nodes map[int64]core.GraphNode) []int64 {
	ids := make([]int64, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
