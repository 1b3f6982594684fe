package fingerprint

import "testing"

func TestHashURLStable(t *testing.T) {
	a := HashURL("https://en.wikipedia.org/wiki/Go")
	b := HashURL("https://en.wikipedia.org/wiki/Go")
	if a != b {
		t.Errorf("expected stable hash, got %s vs %s", a, b)
	}
}

func TestHashURLTrailingSlashEquivalence(t *testing.T) {
	a := HashURL("https://en.wikipedia.org/wiki/Go")
	b := HashURL("https://en.wikipedia.org/wiki/Go/")
	if a != b {
		t.Errorf("expected trailing slash to normalize, got %s vs %s", a, b)
	}
}

func TestHashURLDiffers(t *testing.T) {
	a := HashURL("https://en.wikipedia.org/wiki/Go")
	b := HashURL("https://en.wikipedia.org/wiki/Rust")
	if a == b {
		t.Errorf("expected distinct hashes for distinct URLs")
	}
}

func TestHashContent(t *testing.T) {
	a := HashContent("some article text")
	b := HashContent("some article text")
	c := HashContent("different text")
	if a != b {
		t.Errorf("expected identical content to hash identically")
	}
	if a == c {
		t.Errorf("expected distinct content to hash differently")
	}
}

func TestHashCacheKey(t *testing.T) {
	a := HashCacheKey([]byte(`{"min_relevance":0.3,"max_depth":2}`))
	b := HashCacheKey([]byte(`{"min_relevance":0.3,"max_depth":2}`))
	c := HashCacheKey([]byte(`{"min_relevance":0.5,"max_depth":2}`))
	if a != b {
		t.Errorf("expected identical payloads to hash identically")
	}
	if a == c {
		t.Errorf("expected distinct payloads to hash differently")
	}
}
