// Package crawl drives the bounded BFS frontier that turns a seed
// Wikipedia article into a growing knowledge graph: pop, fetch, parse,
// store, score outbound links, push the ones worth following.
package crawl

import (
	"container/heap"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tessera/internal/chunker"
	"tessera/internal/core"
	"tessera/internal/errs"
	"tessera/internal/fetch"
	"tessera/internal/fingerprint"
	"tessera/internal/logger"
	"tessera/internal/parser"
	"tessera/internal/relevance"
	"tessera/internal/store"
)

var articlePath = regexp.MustCompile(`^/wiki/([^:]+)$`)

// isArticleURL reports whether raw is a Wikipedia article URL: host
// ending in wikipedia.org, path /wiki/<title> with no colon in <title>
// (colons mark non-article namespaces like Category: or Talk:).
func isArticleURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if !strings.HasSuffix(u.Host, "wikipedia.org") {
		return false
	}
	return articlePath.MatchString(u.Path)
}

// frontierItem is one entry in the priority queue, carrying an
// insertion sequence to break ties in FIFO order.
type frontierItem struct {
	entry    core.FrontierEntry
	sequence int64
}

// frontier orders entries by (depth ascending, parent relevance
// descending, insertion order ascending).
type frontier []*frontierItem

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	a, b := f[i], f[j]
	if a.entry.Depth != b.entry.Depth {
		return a.entry.Depth < b.entry.Depth
	}
	if a.entry.ParentRelevance != b.entry.ParentRelevance {
		return a.entry.ParentRelevance > b.entry.ParentRelevance
	}
	return a.sequence < b.sequence
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(*frontierItem)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// fetcher is the subset of *fetch.Fetcher the engine depends on,
// narrow enough to fake in tests without a live HTTP server.
type fetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Response, error)
}

// Engine runs one crawl session: a single primary worker drives the
// frontier loop, fanning fetches out to a bounded worker pool that
// shares the Fetcher's pacing state.
type Engine struct {
	fetcher   fetcher
	analyzer  *relevance.Analyzer
	store     *store.Store
	workers   int
	fanOutCap int

	mu        sync.Mutex
	stopped   bool
	flushHook func()
}

// OnSessionEnd registers a hook invoked once a session finishes
// (completed or stopped), right after the final session record is
// written. A session rejected for an invalid seed URL returns without
// invoking it. Wired to the Graph Builder's FlushPending so any
// debounced invalidation is applied synchronously at session end.
func (e *Engine) OnSessionEnd(fn func()) {
	e.mu.Lock()
	e.flushHook = fn
	e.mu.Unlock()
}

// New constructs an Engine. workers bounds concurrent in-flight
// fetches per frontier batch (at least 1). fanOutCap bounds how many
// outbound links from one article may be pushed to the frontier; 0
// means unlimited.
func New(f *fetch.Fetcher, analyzer *relevance.Analyzer, st *store.Store, workers, fanOutCap int) *Engine {
	return newEngine(f, analyzer, st, workers, fanOutCap)
}

func newEngine(f fetcher, analyzer *relevance.Analyzer, st *store.Store, workers, fanOutCap int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{fetcher: f, analyzer: analyzer, store: st, workers: workers, fanOutCap: fanOutCap}
}

// Stop requests cooperative cancellation. The entry currently being
// processed completes; no further frontier entries are popped.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Result summarizes a finished or stopped crawl session.
type Result struct {
	SessionID       string
	ArticlesCrawled int
	Status          core.SessionStatus
	StartedAt       time.Time
	CompletedAt     time.Time
}

type fetchOutcome struct {
	item *frontierItem
	resp fetch.Response
	err  error
}

type scoredLink struct {
	link  parser.OutboundLink
	score float64
}

// Crawl runs one bounded BFS session from seedURL.
func (e *Engine) Crawl(ctx context.Context, seedURL string, maxDepth, maxArticles int, profile core.InterestProfile) (Result, error) {
	session := core.CrawlSession{
		SessionID:   uuid.NewString(),
		SeedURL:     seedURL,
		MaxDepth:    maxDepth,
		MaxArticles: maxArticles,
		Status:      core.SessionRunning,
		StartedAt:   time.Now().UTC(),
	}

	if !isArticleURL(seedURL) {
		session.Status = core.SessionError
		completed := time.Now().UTC()
		session.CompletedAt = &completed
		_ = e.store.SaveSession(session)
		return Result{SessionID: session.SessionID, Status: core.SessionError, StartedAt: session.StartedAt, CompletedAt: completed},
			errs.Config("seed url is not a wikipedia article url", nil)
	}

	if err := e.store.SaveSession(session); err != nil {
		return Result{}, errs.Storage("saving initial crawl session", err)
	}

	q := &frontier{}
	heap.Init(q)
	var sequence int64
	heap.Push(q, &frontierItem{entry: core.FrontierEntry{URL: seedURL, Depth: 0}, sequence: sequence})
	sequence++

	seen := map[string]bool{fingerprint.HashURL(seedURL): true}

	articlesCrawled := 0
	status := core.SessionCompleted

loop:
	for q.Len() > 0 && articlesCrawled < maxArticles {
		select {
		case <-ctx.Done():
			status = core.SessionStopped
			break loop
		default:
		}
		if e.isStopped() {
			status = core.SessionStopped
			break loop
		}

		batch := e.popBatch(q)
		if len(batch) == 0 {
			continue
		}

		outcomes := make([]fetchOutcome, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, item := range batch {
			i, item := i, item
			g.Go(func() error {
				resp, err := e.fetcher.Fetch(gctx, item.entry.URL)
				outcomes[i] = fetchOutcome{item: item, resp: resp, err: err}
				return nil
			})
		}
		_ = g.Wait()

		for _, outcome := range outcomes {
			if articlesCrawled >= maxArticles {
				break
			}
			articleID, relevant, err := e.processOne(outcome, &session, profile, maxDepth, q, seen, &sequence)
			if err != nil {
				logger.Warn("crawl: article failed", "url", outcome.item.entry.URL, "error", err.Error())
				continue
			}
			if !relevant {
				continue
			}
			articlesCrawled++
			session.ArticlesCrawled = articlesCrawled
			_ = e.store.SaveSession(session)
			_ = articleID
		}
	}

	completed := time.Now().UTC()
	session.Status = status
	session.CompletedAt = &completed
	session.ArticlesCrawled = articlesCrawled
	if err := e.store.SaveSession(session); err != nil {
		return Result{}, errs.Storage("saving final crawl session", err)
	}

	e.mu.Lock()
	hook := e.flushHook
	e.mu.Unlock()
	if hook != nil {
		hook()
	}

	return Result{
		SessionID:       session.SessionID,
		ArticlesCrawled: articlesCrawled,
		Status:          status,
		StartedAt:       session.StartedAt,
		CompletedAt:     completed,
	}, nil
}

// processOne handles one fetched frontier entry: parse, store, score
// and push outbound links. The bool return reports whether an article
// was actually written (false for dropped/failed entries).
func (e *Engine) processOne(outcome fetchOutcome, session *core.CrawlSession, profile core.InterestProfile, maxDepth int, q *frontier, seen map[string]bool, sequence *int64) (int64, bool, error) {
	if outcome.err != nil {
		return 0, false, errs.Transport("fetching frontier entry", outcome.err)
	}
	if outcome.resp.Status < 200 || outcome.resp.Status >= 300 {
		return 0, false, errs.Transport(fmt.Sprintf("non-2xx response (%d)", outcome.resp.Status), nil)
	}

	parsed, err := parser.Parse(string(outcome.resp.Body), outcome.item.entry.URL)
	if err != nil {
		return 0, false, errs.Parse("parsing article html", err)
	}
	if parsed.Article.Title == "" {
		return 0, false, errs.Parse("empty article title", nil)
	}
	parsed.Article.FetchedAt = time.Now().Unix()

	chunks := chunker.Chunk(parsed.Article)
	articleID, err := e.store.UpsertArticle(parsed.Article, chunks)
	if err != nil {
		return 0, false, errs.Storage("upserting crawled article", err)
	}

	if outcome.item.entry.ParentArticleID != nil {
		if err := e.store.UpsertLink(*outcome.item.entry.ParentArticleID, articleID, outcome.item.entry.Anchor, outcome.item.entry.ParentRelevance); err != nil {
			logger.Warn("crawl: failed to persist link", "url", outcome.item.entry.URL, "error", err.Error())
		}
	}

	if outcome.item.entry.Depth >= maxDepth {
		return articleID, true, nil
	}

	e.pushOutboundLinks(parsed, articleID, outcome.item.entry.Depth, profile, q, seen, sequence)
	return articleID, true, nil
}

func (e *Engine) pushOutboundLinks(parsed parser.Result, articleID int64, depth int, profile core.InterestProfile, q *frontier, seen map[string]bool, sequence *int64) {
	var kept []scoredLink
	for _, l := range parsed.Links {
		hash := fingerprint.HashURL(l.URL)
		if seen[hash] {
			continue
		}
		score := e.analyzer.Score(relevance.Candidate{Title: l.Title, Anchor: l.Anchor}, profile, &parsed.Article)
		if !e.analyzer.Follows(score, profile) {
			continue
		}
		seen[hash] = true
		kept = append(kept, scoredLink{link: l, score: score})
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].score > kept[j].score })

	if e.fanOutCap > 0 && len(kept) > e.fanOutCap {
		kept = kept[:e.fanOutCap]
	}

	for _, k := range kept {
		parentID := articleID
		heap.Push(q, &frontierItem{
			entry: core.FrontierEntry{
				URL:             k.link.URL,
				Depth:           depth + 1,
				ParentArticleID: &parentID,
				ParentRelevance: k.score,
				Anchor:          k.link.Anchor,
			},
			sequence: *sequence,
		})
		*sequence++
	}
}

// popBatch pops up to e.workers valid entries, dropping non-article
// URLs (each with a logged warning) so they never count against the
// batch size.
func (e *Engine) popBatch(q *frontier) []*frontierItem {
	var batch []*frontierItem
	for q.Len() > 0 && len(batch) < e.workers {
		item := heap.Pop(q).(*frontierItem)
		if !isArticleURL(item.entry.URL) {
			logger.Warn("crawl: dropping non-article url", "url", item.entry.URL)
			continue
		}
		batch = append(batch, item)
	}
	return batch
}
