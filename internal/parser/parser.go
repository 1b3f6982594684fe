// Package parser extracts a structured Article, its outbound links,
// categories, and other metadata from a Wikipedia article page's HTML.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tessera/internal/core"
)

// excludedPrefixes lists the Wikipedia namespace prefixes that are
// never treated as article links.
var excludedPrefixes = []string{
	"File:", "Category:", "Template:", "Help:", "Special:",
	"Talk:", "User:", "Wikipedia:", "MediaWiki:",
}

var (
	categoryHrefRegex = regexp.MustCompile(`/wiki/Category:(.+)$`)
	articleHrefRegex  = regexp.MustCompile(`^/wiki/([^:]+)$`)
	editMarkerRegex   = regexp.MustCompile(`\s*\[edit\]\s*$`)
	geoCoordRegex     = regexp.MustCompile(`(-?\d+(?:\.\d+)?)[;,\s]+(-?\d+(?:\.\d+)?)`)
	wikiTitleSuffix   = " - Wikipedia"
	nonWordRunRegex   = regexp.MustCompile(`[^\w\s]`)
	whitespaceRunRegex = regexp.MustCompile(`\s+`)
)

// OutboundLink is a candidate link discovered in an article's main
// content, prior to relevance scoring.
type OutboundLink struct {
	Title  string
	Anchor string
	URL    string
}

// Result is everything the parser extracts from one article page.
type Result struct {
	Article core.Article
	Links   []OutboundLink
}

// Parse extracts a Result from raw HTML fetched from sourceURL. It
// fails only if the HTML tree itself cannot be constructed; any field
// whose extraction rule finds nothing is left at its zero value.
func Parse(html string, sourceURL string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parsing html from %s: %w", sourceURL, err)
	}

	article := core.Article{
		URL:     sourceURL,
		Title:   extractTitle(doc),
		Infobox: map[string]string{},
	}

	categories := extractCategories(doc)
	article.Categories = categories

	content := doc.Find("#mw-content-text").First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	pruned := content.Clone()
	pruneNonContent(pruned)

	article.Summary = extractSummary(pruned)
	article.Content = strings.TrimSpace(pruned.Text())
	article.Infobox = extractInfobox(content)
	article.Sections = extractSections(pruned)
	article.Images = extractImages(pruned)
	article.Coordinates = extractCoordinates(doc)

	links := extractLinks(pruned, sourceURL)

	return Result{Article: article, Links: links}, nil
}

func extractTitle(doc *goquery.Document) string {
	if h1 := strings.TrimSpace(doc.Find("h1.firstHeading").First().Text()); h1 != "" {
		return h1
	}
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return strings.TrimSuffix(title, wikiTitleSuffix)
	}
	return ""
}

// pruneNonContent removes subtrees that should never contribute to
// the main content text, summary, sections, or link extraction.
func pruneNonContent(sel *goquery.Selection) {
	sel.Find(
		".navbox, .vertical-navbox, .infobox, .thumb, .thumbinner, " +
			"ol.references, .reflist, .mw-editsection, .hatnote, .navigation-not-searchable",
	).Remove()
}

func extractSummary(pruned *goquery.Selection) string {
	var summary string
	pruned.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.TrimSpace(p.Text())
		if len(text) >= 50 {
			summary = text
			return false
		}
		return true
	})
	return summary
}

func extractInfobox(content *goquery.Selection) map[string]string {
	infobox := map[string]string{}
	table := content.Find("table.infobox").First()
	if table.Length() == 0 {
		return infobox
	}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		header := row.Find("th").First()
		value := row.Find("td").First()
		if header.Length() == 0 || value.Length() == 0 {
			return
		}
		key := normalizeInfoboxKey(header.Text())
		if key == "" {
			return
		}
		infobox[key] = strings.TrimSpace(value.Text())
	})

	return infobox
}

func normalizeInfoboxKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = nonWordRunRegex.ReplaceAllString(key, "")
	key = whitespaceRunRegex.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}

func extractCategories(doc *goquery.Document) []string {
	var categories []string
	seen := map[string]bool{}

	doc.Find("a[href^='/wiki/Category:']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := categoryHrefRegex.FindStringSubmatch(href)
		if m == nil {
			return
		}
		name := decodeTitle(m[1])
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		categories = append(categories, name)
	})

	return categories
}

func extractSections(pruned *goquery.Selection) []core.Section {
	var sections []core.Section

	pruned.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, h *goquery.Selection) {
		tag := goquery.NodeName(h)
		level, err := strconv.Atoi(strings.TrimPrefix(tag, "h"))
		if err != nil {
			return
		}
		title := editMarkerRegex.ReplaceAllString(strings.TrimSpace(h.Text()), "")
		if title == "" {
			return
		}
		sections = append(sections, core.Section{Level: level, Title: title})
	})

	return sections
}

func extractImages(pruned *goquery.Selection) []string {
	var images []string
	seen := map[string]bool{}

	pruned.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			return
		}
		if w, ok := img.Attr("width"); ok {
			if n, err := strconv.Atoi(w); err == nil && n < 50 {
				return
			}
		}
		if h, ok := img.Attr("height"); ok {
			if n, err := strconv.Atoi(h); err == nil && n < 50 {
				return
			}
		}
		if seen[src] {
			return
		}
		seen[src] = true
		images = append(images, src)
	})

	return images
}

func extractCoordinates(doc *goquery.Document) *core.Coordinates {
	geo := doc.Find(".geo").First()
	if geo.Length() == 0 {
		return nil
	}
	m := geoCoordRegex.FindStringSubmatch(strings.TrimSpace(geo.Text()))
	if m == nil {
		return nil
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lon, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &core.Coordinates{Lat: lat, Lon: lon}
}

func extractLinks(pruned *goquery.Selection, sourceURL string) []OutboundLink {
	base, baseErr := url.Parse(sourceURL)

	var links []OutboundLink
	seen := map[string]bool{}

	pruned.Find("a[href^='/wiki/']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := articleHrefRegex.FindStringSubmatch(href)
		if m == nil {
			return
		}
		title := decodeTitle(m[1])
		if title == "" || isExcludedNamespace(title) {
			return
		}
		if seen[title] {
			return
		}
		seen[title] = true

		resolved := href
		if baseErr == nil {
			if u, err := url.Parse(href); err == nil {
				resolved = base.ResolveReference(u).String()
			}
		}

		links = append(links, OutboundLink{
			Title:  title,
			Anchor: strings.TrimSpace(a.Text()),
			URL:    resolved,
		})
	})

	return links
}

func isExcludedNamespace(title string) bool {
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(title, prefix) {
			return true
		}
	}
	return false
}

func decodeTitle(encoded string) string {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		decoded = encoded
	}
	return strings.ReplaceAll(decoded, "_", " ")
}
