// Package cmd implements Tessera's command-line surface: crawl, search,
// graph, and cleanup.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tessera/internal/config"
	"tessera/internal/crawl"
	"tessera/internal/core"
	"tessera/internal/errs"
	"tessera/internal/fetch"
	"tessera/internal/graph"
	"tessera/internal/logger"
	"tessera/internal/relevance"
	"tessera/internal/retrieval"
	"tessera/internal/services"
	"tessera/internal/store"
)

var cfgFile string

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tessera",
	Short: "Tessera builds a personal knowledge graph from Wikipedia",
	Long: `Tessera crawls Wikipedia starting from a seed article, scores
outbound links against an interest profile, persists articles and link
edges, and exposes the result as both a queryable graph and a
semantic-search index.`,
}

// Execute adds all child commands to the root command and runs it.
// Called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .tessera.yaml in the current or home directory)")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error loading configuration:", err)
		os.Exit(1)
	}
	logger.Init()
	logger.SetLevel(cfg.Logging.Level)
}

// exitCodeFor maps Tessera's error taxonomy to a process exit code.
// Cancellation is not a failure; everything else that reaches Execute
// unhandled is an unrecoverable error.
func exitCodeFor(err error) int {
	if errs.IsCancelled(err) {
		return 0
	}
	return 1
}

// openStore opens the knowledge store at the directory holding the
// configured database file. store.New takes a directory and appends
// tessera.db itself, while cfg.Database.Path names the file directly,
// so the directory is derived here rather than duplicated in config.
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.New(filepath.Dir(cfg.Database.Path))
}

func buildFetcher(cfg *config.Config) *fetch.Fetcher {
	return fetch.New(cfg.Crawl.Timeout, cfg.Crawl.MaxRedirects, cfg.Crawl.UserAgent, cfg.Crawl.MinDelay, cfg.Crawl.MaxPerMinute)
}

func buildGraphBuilder(cfg *config.Config, st *store.Store) *graph.Builder {
	return graph.NewBuilder(st, cfg.Graph.CacheDir)
}

func parseInterests(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	interests := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			interests = append(interests, p)
		}
	}
	return interests
}

var (
	crawlSeed         string
	crawlDepth        int
	crawlMaxArticles  int
	crawlInterests    string
	crawlMinRelevance float64
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl Wikipedia from a seed article, following interest-scored links",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		builder := buildGraphBuilder(cfg, st)
		analyzer := relevance.NewAnalyzer()
		engine := crawl.New(buildFetcher(cfg), analyzer, st, cfg.Crawl.FetchWorkers, cfg.Crawl.FanOutCap)
		engine.OnSessionEnd(builder.FlushPending)

		profile := core.DefaultInterestProfile()
		profile.Interests = parseInterests(crawlInterests)
		if cmd.Flags().Changed("min-relevance") {
			profile.FollowThreshold = crawlMinRelevance
		} else {
			profile.FollowThreshold = cfg.Interests.FollowThreshold
		}

		depth := crawlDepth
		if !cmd.Flags().Changed("depth") {
			depth = cfg.Crawl.MaxDepth
		}
		maxArticles := crawlMaxArticles
		if !cmd.Flags().Changed("max-articles") {
			maxArticles = cfg.Crawl.MaxArticles
		}

		result, err := engine.Crawl(context.Background(), crawlSeed, depth, maxArticles, profile)
		if err != nil {
			return err
		}

		fmt.Printf("session %s: %s, %d articles crawled, %s elapsed\n",
			result.SessionID, result.Status, result.ArticlesCrawled, result.CompletedAt.Sub(result.StartedAt))
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringVar(&crawlSeed, "seed", "", "seed Wikipedia article URL (required)")
	crawlCmd.Flags().IntVar(&crawlDepth, "depth", 2, "maximum BFS depth from the seed")
	crawlCmd.Flags().IntVar(&crawlMaxArticles, "max-articles", 100, "maximum number of articles to crawl")
	crawlCmd.Flags().StringVar(&crawlInterests, "interests", "", "comma-separated interest terms")
	crawlCmd.Flags().Float64Var(&crawlMinRelevance, "min-relevance", 0.3, "minimum relevance score required to follow a link")
	_ = crawlCmd.MarkFlagRequired("seed")
}

var (
	searchLimit         int
	searchMinSimilarity float64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge store by semantic similarity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		embed := services.NewEmbedService(buildFetcher(cfg), cfg.Services.EmbedURL, cfg.Services.EmbedModel, cfg.Services.Timeout)
		retriever := retrieval.New(embed, st)

		results, err := retriever.Search(context.Background(), args[0], searchLimit, searchMinSimilarity)
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("no results")
			return nil
		}
		for _, r := range results {
			fmt.Printf("[%.3f] %s (%s) — %s\n", r.Similarity, r.ArticleTitle, r.ChunkKind, truncate(r.Content, 120))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchMinSimilarity, "min-similarity", 0.0, "minimum cosine similarity")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var (
	graphCenter       string
	graphDepth        int
	graphMinRelevance float64
	graphExport       string
	graphOut          string
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build and inspect the knowledge graph, optionally exporting it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		builder := buildGraphBuilder(cfg, st)
		view, err := builder.Build(core.GraphParams{
			MinRelevance:  graphMinRelevance,
			MaxDepth:      graphDepth,
			CenterArticle: graphCenter,
		})
		if err != nil {
			return err
		}

		if graphExport == "" {
			fmt.Printf("%d nodes, %d edges, density %.4f, %d connected components\n",
				view.Metrics.NodeCount, view.Metrics.EdgeCount, view.Metrics.Density, view.Metrics.ComponentCount)
			return nil
		}

		var data []byte
		switch graphExport {
		case "json":
			data, err = graph.ExportJSON(view)
		case "graphml":
			data, err = graph.ExportGraphML(view)
		case "dot":
			data, err = graph.ExportDOT(view)
		default:
			return errs.Validation(fmt.Sprintf("unknown export format %q (want json, graphml, or dot)", graphExport), nil)
		}
		if err != nil {
			return err
		}

		if graphOut == "" {
			fmt.Println(string(data))
			return nil
		}
		return os.WriteFile(graphOut, data, 0644)
	},
}

func init() {
	graphCmd.Flags().StringVar(&graphCenter, "center", "", "article id to center the graph on (decimal); empty means the complete graph")
	graphCmd.Flags().IntVar(&graphDepth, "depth", 2, "maximum BFS depth from the center article")
	graphCmd.Flags().Float64Var(&graphMinRelevance, "min-relevance", 0.0, "minimum edge relevance to include")
	graphCmd.Flags().StringVar(&graphExport, "export", "", "export format: json, graphml, or dot")
	graphCmd.Flags().StringVar(&graphOut, "out", "", "write the export to this file instead of stdout")
}

var cleanupKeepDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete articles older than a retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cleanupKeepDays <= 0 {
			return errs.Validation("--keep-days must be positive", nil)
		}

		cfg := config.Get()
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		deleted, err := st.RetentionSweep(cleanupKeepDays)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d articles older than %d days\n", deleted, cleanupKeepDays)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupKeepDays, "keep-days", 0, "delete articles fetched more than this many days ago (required)")
	_ = cleanupCmd.MarkFlagRequired("keep-days")
}
