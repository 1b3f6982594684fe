// Package chunker splits an Article into ordered, bounded Chunks for
// retrieval.
package chunker

import (
	"fmt"
	"strings"

	"tessera/internal/core"
	"tessera/internal/fingerprint"
)

const (
	minSummaryChars     = 100
	minSectionChars     = 50
	splitSectionChars   = 800
	maxChunkChars       = 600
	minParagraphChars   = 30
)

// Chunk splits an article's summary and content into ordered Chunks
// per the packing rules: a summary chunk if long enough, one chunk per
// section (or several section_part chunks if a section is long),
// falling back to paragraph chunking if no sections produced output.
func Chunk(article core.Article) []core.Chunk {
	var chunks []core.Chunk
	ord := 0

	if len(article.Summary) >= minSummaryChars {
		chunks = append(chunks, makeChunk(article.ArticleID, ord, core.ChunkSummary, "", article.Summary))
		ord++
	}

	sectionTexts := splitIntoSectionTexts(article)
	for _, st := range sectionTexts {
		if len(st.text) < minSectionChars {
			continue
		}
		if len(st.text) >= splitSectionChars {
			parts := packParagraphs(splitParagraphs(st.text), maxChunkChars, 0)
			for partNum, part := range parts {
				name := fmt.Sprintf("%s (Part %d)", st.title, partNum+1)
				chunks = append(chunks, makeChunk(article.ArticleID, ord, core.ChunkSectionPart, name, part))
				ord++
			}
		} else {
			chunks = append(chunks, makeChunk(article.ArticleID, ord, core.ChunkSection, st.title, st.text))
			ord++
		}
	}

	sectionChunksProduced := false
	for _, c := range chunks {
		if c.Kind == core.ChunkSection || c.Kind == core.ChunkSectionPart {
			sectionChunksProduced = true
			break
		}
	}

	if !sectionChunksProduced {
		for _, part := range packParagraphs(splitParagraphs(article.Content), maxChunkChars, minParagraphChars) {
			chunks = append(chunks, makeChunk(article.ArticleID, ord, core.ChunkParagraph, "", part))
			ord++
		}
	}

	return chunks
}

type sectionText struct {
	title string
	text  string
}

// splitIntoSectionTexts approximates "everything under a heading up to
// the next heading of equal or higher rank" by dividing the article's
// content at each recorded section boundary. Since Article.Content is
// plain text (headings are not marked inline), sections are split at
// the first occurrence of each heading title, whose text the parser
// keeps in the flattened content.
func splitIntoSectionTexts(article core.Article) []sectionText {
	if len(article.Sections) == 0 {
		return nil
	}

	var out []sectionText
	remaining := article.Content

	firstIdx := -1
	for i, sec := range article.Sections {
		idx := strings.Index(remaining, sec.Title)
		if idx < 0 {
			continue
		}
		if firstIdx < 0 {
			firstIdx = idx
		}
		start := idx + len(sec.Title)

		end := len(remaining)
		for _, next := range article.Sections[i+1:] {
			if next.Level > sec.Level {
				continue
			}
			if j := strings.Index(remaining[start:], next.Title); j >= 0 {
				end = start + j
				break
			}
		}

		text := strings.TrimSpace(remaining[start:end])
		out = append(out, sectionText{title: sec.Title, text: text})
	}

	if firstIdx > 0 {
		lead := strings.TrimSpace(remaining[:firstIdx])
		if lead != "" {
			out = append([]sectionText{{title: "", text: lead}}, out...)
		}
	}

	return out
}

// splitParagraphs splits text on blank lines, trimming whitespace from
// each resulting paragraph and dropping empty ones.
func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	var paragraphs []string
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// packParagraphs greedily packs paragraphs into chunks of at most
// maxChars, starting a new chunk when the next paragraph would
// overflow the current one (unless the current chunk is still empty).
// Paragraphs shorter than minChars are skipped.
func packParagraphs(paragraphs []string, maxChars int, minChars int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		if len(p) < minChars {
			continue
		}
		if current.Len() > 0 && current.Len()+2+len(p) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()

	return chunks
}

func makeChunk(articleID int64, ord int, kind core.ChunkKind, sectionName, text string) core.Chunk {
	return core.Chunk{
		ArticleID:      articleID,
		Ord:            ord,
		Kind:           kind,
		SectionName:    sectionName,
		Content:        text,
		CharCount:      len(text),
		TokenCount:     len(text) / 4,
		ContentHash:    fingerprint.HashContent(text),
		NeedsEmbedding: true,
	}
}
