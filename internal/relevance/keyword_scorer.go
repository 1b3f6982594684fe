// Package relevance scores candidate outbound links against an
// interest profile to decide which ones the crawl engine should
// follow.
package relevance

import (
	"math"
	"regexp"
	"strings"

	"tessera/internal/core"
)

const (
	weightTitle   = 0.4
	weightAnchor  = 0.2
	weightBoost   = 0.3
	weightContext = 0.1
	explorationBonus = 0.15

	exactMatchScore          = 1.0
	wholeWordMatchScore      = 0.9
	substringMatchScore      = 0.8
	reverseWholeWordScore    = 0.6
	minReverseMatchTextLen   = 3
	minSharedTokenLen        = 2
	sharedTokenOverlapBonus  = 0.2
	sharedTokenOverlapRatio  = 0.25
	categoryContextWeight    = 0.3
	maxMentionsCounted       = 5
	adaptiveInterestMaxTerms = 5
	adaptiveInterestMinLen   = 3
)

var nonWordSplitter = regexp.MustCompile(`[^\w]+`)

// Candidate is a proposed outbound link awaiting a relevance score.
type Candidate struct {
	Title  string
	Anchor string
}

// Analyzer scores Candidates against an InterestProfile.
type Analyzer struct {
	stopWords map[string]bool
}

// NewAnalyzer builds an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{stopWords: commonStopWords()}
}

// Score computes the composite relevance score in [0, 1] for a
// candidate link. source, if non-nil, enables the context sub-score.
func (a *Analyzer) Score(candidate Candidate, profile core.InterestProfile, source *core.Article) float64 {
	titleInterest := a.interestMatch(candidate.Title, profile.Interests)
	anchorInterest := a.interestMatch(candidate.Anchor, profile.Interests)
	boost := math.Max(a.boostMatch(candidate.Title, profile.Boosts), a.boostMatch(candidate.Anchor, profile.Boosts))

	score := weightTitle*titleInterest + weightAnchor*anchorInterest + weightBoost*boost + explorationBonus

	if source != nil {
		score += weightContext * a.contextScore(candidate, *source, profile)
	}

	return clamp01(score)
}

// Follows reports whether score meets the profile's follow threshold.
func (a *Analyzer) Follows(score float64, profile core.InterestProfile) bool {
	return score >= profile.FollowThreshold
}

// interestMatch returns the maximum match strength of text against
// any interest term, per the match-kind priority order.
func (a *Analyzer) interestMatch(text string, interests []string) float64 {
	if text == "" || len(interests) == 0 {
		return 0
	}
	normalizedText := strings.ToLower(strings.TrimSpace(text))

	best := 0.0
	for _, term := range interests {
		normalizedTerm := strings.ToLower(strings.TrimSpace(term))
		if normalizedTerm == "" {
			continue
		}

		var match float64
		switch {
		case normalizedText == normalizedTerm:
			match = exactMatchScore
		case wholeWordMatch(normalizedText, normalizedTerm):
			match = wholeWordMatchScore
		case strings.Contains(normalizedText, normalizedTerm):
			match = substringMatchScore
		case len(normalizedText) > minReverseMatchTextLen && wholeWordMatch(normalizedTerm, normalizedText):
			match = reverseWholeWordScore
		}

		if match > best {
			best = match
		}
	}
	return best
}

// boostMatch awards 1.0 per whole-word hit or 0.5 per substring hit,
// averaged over the boost-term count and capped at 1.0.
func (a *Analyzer) boostMatch(text string, boosts []string) float64 {
	if text == "" || len(boosts) == 0 {
		return 0
	}
	normalizedText := strings.ToLower(strings.TrimSpace(text))

	var total float64
	for _, term := range boosts {
		normalizedTerm := strings.ToLower(strings.TrimSpace(term))
		if normalizedTerm == "" {
			continue
		}
		switch {
		case wholeWordMatch(normalizedText, normalizedTerm):
			total += 1.0
		case strings.Contains(normalizedText, normalizedTerm):
			total += 0.5
		}
	}

	return math.Min(1.0, total/float64(len(boosts)))
}

// contextScore scores a candidate against the source article's
// content and categories, only used when a source article is given.
func (a *Analyzer) contextScore(candidate Candidate, source core.Article, profile core.InterestProfile) float64 {
	var score float64

	if candidate.Title != "" {
		mentions := strings.Count(strings.ToLower(source.Content), strings.ToLower(candidate.Title))
		if mentions > maxMentionsCounted {
			mentions = maxMentionsCounted
		}
		score += float64(mentions) / 10.0
	}

	categoryText := strings.Join(source.Categories, " ")
	score += categoryContextWeight * a.interestMatch(categoryText, profile.Interests)

	if a.sharedTokenRatio(candidate.Title, source.Title) >= sharedTokenOverlapRatio {
		score += sharedTokenOverlapBonus
	}

	return math.Min(1.0, score)
}

// AdaptiveInterests extracts up to five new interest terms from an
// article's title and categories for the optional adaptive-interests
// feature. It never mutates existing scores; callers append the
// result to the profile's interest list themselves.
func (a *Analyzer) AdaptiveInterests(article core.Article, existing []string) []string {
	have := make(map[string]bool, len(existing))
	for _, term := range existing {
		have[strings.ToLower(term)] = true
	}

	var candidates []string
	candidates = append(candidates, tokenize(article.Title)...)
	for _, category := range article.Categories {
		candidates = append(candidates, tokenize(category)...)
	}

	var fresh []string
	seen := map[string]bool{}
	for _, token := range candidates {
		if len(token) <= adaptiveInterestMinLen || a.stopWords[token] || have[token] || seen[token] {
			continue
		}
		seen[token] = true
		fresh = append(fresh, token)
		if len(fresh) == adaptiveInterestMaxTerms {
			break
		}
	}

	return fresh
}

func wholeWordMatch(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	pattern := `\b` + regexp.QuoteMeta(needle) + `\b`
	matched, err := regexp.MatchString(pattern, haystack)
	return err == nil && matched
}

// sharedTokenRatio measures non-stopword token overlap between two
// strings, normalized by the smaller token set's size.
func (a *Analyzer) sharedTokenRatio(x, y string) float64 {
	tokensX := a.tokenizeSet(x)
	tokensY := a.tokenizeSet(y)
	if len(tokensX) == 0 || len(tokensY) == 0 {
		return 0
	}

	shared := 0
	for token := range tokensX {
		if tokensY[token] {
			shared++
		}
	}

	smaller := len(tokensX)
	if len(tokensY) < smaller {
		smaller = len(tokensY)
	}
	return float64(shared) / float64(smaller)
}

// tokenizeSet tokenizes text and drops stopwords, for overlap
// comparisons where common words would otherwise inflate the ratio.
func (a *Analyzer) tokenizeSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, token := range tokenize(text) {
		if a.stopWords[token] {
			continue
		}
		set[token] = true
	}
	return set
}

func tokenize(text string) []string {
	lower := strings.ToLower(text)
	parts := nonWordSplitter.Split(lower, -1)

	var tokens []string
	for _, p := range parts {
		if len(p) > minSharedTokenLen {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func commonStopWords() map[string]bool {
	stopWords := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
		"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
		"to", "was", "were", "will", "with", "this", "but", "they",
		"have", "had", "what", "said", "each", "which", "she", "do", "how",
		"their", "if", "up", "out", "many", "then", "them", "these", "so",
		"some", "her", "would", "make", "like", "into", "him", "time", "two",
	}

	stopWordsMap := make(map[string]bool, len(stopWords))
	for _, word := range stopWords {
		stopWordsMap[word] = true
	}
	return stopWordsMap
}
