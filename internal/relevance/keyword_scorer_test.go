package relevance

import (
	"math"
	"testing"

	"tessera/internal/core"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreBaselineWithNoProfile(t *testing.T) {
	a := NewAnalyzer()
	profile := core.DefaultInterestProfile()

	score := a.Score(Candidate{Title: "Rust (programming language)", Anchor: "Rust"}, profile, nil)
	if !approxEqual(score, explorationBonus) {
		t.Errorf("expected baseline score %v with no interests, got %v", explorationBonus, score)
	}
}

func TestScoreExactTitleMatch(t *testing.T) {
	a := NewAnalyzer()
	profile := core.InterestProfile{Interests: []string{"golang"}, FollowThreshold: 0.3}

	score := a.Score(Candidate{Title: "golang", Anchor: "something else"}, profile, nil)
	want := weightTitle*exactMatchScore + explorationBonus
	if !approxEqual(score, want) {
		t.Errorf("expected %v, got %v", want, score)
	}
}

func TestScoreWholeWordVsSubstring(t *testing.T) {
	a := NewAnalyzer()
	interests := []string{"go"}

	whole := a.interestMatch("the go programming language", interests)
	if !approxEqual(whole, wholeWordMatchScore) {
		t.Errorf("expected whole-word match score %v, got %v", wholeWordMatchScore, whole)
	}

	substring := a.interestMatch("mongodb", interests)
	if !approxEqual(substring, substringMatchScore) {
		t.Errorf("expected substring match score %v, got %v", substringMatchScore, substring)
	}
}

func TestScoreReverseWholeWordMatch(t *testing.T) {
	a := NewAnalyzer()
	interests := []string{"the go programming language"}

	score := a.interestMatch("programming", interests)
	if !approxEqual(score, reverseWholeWordScore) {
		t.Errorf("expected reverse whole-word score %v, got %v", reverseWholeWordScore, score)
	}
}

func TestScoreClampedToOne(t *testing.T) {
	a := NewAnalyzer()
	profile := core.InterestProfile{
		Interests: []string{"go"},
		Boosts:    []string{"go"},
	}
	source := &core.Article{
		Title:      "go",
		Content:    "go go go go go go go go",
		Categories: []string{"go"},
	}

	score := a.Score(Candidate{Title: "go", Anchor: "go"}, profile, source)
	if score > 1.0 {
		t.Errorf("expected score clamped to 1.0, got %v", score)
	}
}

func TestBoostMatchAverage(t *testing.T) {
	a := NewAnalyzer()
	boosts := []string{"go", "rust", "zig"}

	// whole-word hit on "go" (1.0) but not the others, averaged over 3 terms.
	score := a.boostMatch("the go language", boosts)
	want := 1.0 / 3.0
	if !approxEqual(score, want) {
		t.Errorf("expected %v, got %v", want, score)
	}
}

func TestContextScoreMentionsAndCategories(t *testing.T) {
	a := NewAnalyzer()
	profile := core.InterestProfile{Interests: []string{"systems"}}
	source := core.Article{
		Title:      "Go (programming language)",
		Content:    "Rust is a systems programming language. Rust focuses on safety. Rust is fast.",
		Categories: []string{"Systems programming languages"},
	}

	score := a.contextScore(Candidate{Title: "Rust", Anchor: "Rust"}, source, profile)
	if score <= 0 {
		t.Errorf("expected positive context score, got %v", score)
	}
}

func TestContextScoreTitleOverlapIgnoresStopwords(t *testing.T) {
	a := NewAnalyzer()
	profile := core.InterestProfile{}
	source := core.Article{Title: "The History of the World"}

	score := a.contextScore(Candidate{Title: "The Culture of the West"}, source, profile)
	if score != 0 {
		t.Errorf("expected stopword-only title overlap ('the', 'of') to score 0, got %v", score)
	}
}

func TestContextScoreTitleOverlapCountsRealSharedTokens(t *testing.T) {
	a := NewAnalyzer()
	profile := core.InterestProfile{}
	source := core.Article{Title: "Systems Programming Languages"}

	score := a.contextScore(Candidate{Title: "Systems Programming History"}, source, profile)
	if score < sharedTokenOverlapBonus {
		t.Errorf("expected a genuine non-stopword overlap ('systems', 'programming') to award the bonus, got %v", score)
	}
}

func TestFollowsThreshold(t *testing.T) {
	a := NewAnalyzer()
	profile := core.InterestProfile{FollowThreshold: 0.5}

	if a.Follows(0.4, profile) {
		t.Errorf("expected score below threshold to not be followed")
	}
	if !a.Follows(0.5, profile) {
		t.Errorf("expected score at threshold to be followed")
	}
}

func TestAdaptiveInterestsExtractsNewTerms(t *testing.T) {
	a := NewAnalyzer()
	article := core.Article{
		Title:      "Concurrency Patterns",
		Categories: []string{"Software engineering", "Parallel computing"},
	}

	terms := a.AdaptiveInterests(article, nil)
	if len(terms) == 0 {
		t.Fatalf("expected at least one extracted term")
	}
	if len(terms) > adaptiveInterestMaxTerms {
		t.Errorf("expected at most %d terms, got %d", adaptiveInterestMaxTerms, len(terms))
	}
}

func TestAdaptiveInterestsSkipsExisting(t *testing.T) {
	a := NewAnalyzer()
	article := core.Article{Title: "concurrency patterns"}

	terms := a.AdaptiveInterests(article, []string{"concurrency"})
	for _, term := range terms {
		if term == "concurrency" {
			t.Errorf("expected existing term 'concurrency' to be excluded, got %v", terms)
		}
	}
}
