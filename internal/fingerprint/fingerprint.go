// Package fingerprint computes stable, non-cryptographic hashes used
// to dedupe URLs, fingerprint chunk content, and key the graph cache.
package fingerprint

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// HashURL returns a stable hex fingerprint for a URL, used by the crawl
// engine to dedupe URLs already queued within a session.
func HashURL(url string) string {
	return hashString(normalizeURL(url))
}

// HashContent returns a stable hex fingerprint for content; the chunker
// records it as each chunk's content hash.
func HashContent(content string) string {
	return hashString(content)
}

// HashCacheKey returns a stable hex fingerprint for an arbitrary
// cache-key payload (typically a JSON-encoded GraphParams).
func HashCacheKey(payload []byte) string {
	return strconv.FormatUint(xxhash.Sum64(payload), 16)
}

func hashString(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}

// normalizeURL strips a trailing slash so that equivalent URLs hash
// identically regardless of trailing-slash convention.
func normalizeURL(url string) string {
	if len(url) > 0 && url[len(url)-1] == '/' {
		return url[:len(url)-1]
	}
	return url
}
