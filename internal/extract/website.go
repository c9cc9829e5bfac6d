package extract

import (
	"context"
	"sort"
	"strings"

	"github.com/sells-group/profile-enrich/internal/model"
)

// WebsiteExtractor handles generic websites: structural metadata, bounded
// main text, keyword frequencies, and technology signatures.
type WebsiteExtractor struct {
	fetcher *Fetcher
}

func (w *WebsiteExtractor) Platform() model.Platform { return model.PlatformWebsite }

func (w *WebsiteExtractor) Extract(ctx context.Context, src model.Source) (*model.ExtractedContent, error) {
	page, err := w.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	doc, err := parseHTML(src.URL, page.Body)
	if err != nil {
		return nil, err
	}

	text := mainText(doc)
	lowerText := " " + strings.ToLower(text) + " "
	lowerHTML := strings.ToLower(string(page.Body))

	content := &model.ExtractedContent{
		Source:          src,
		PageTitle:       docTitle(doc),
		MetaDescription: metaContent(doc, "description"),
		Headings:        headings(doc, 10),
		Excerpt:         model.BoundExcerpt(text),
		KeywordCounts:   countKeywords(lowerText),
		TechSignals:     detectTech(lowerHTML),
		Industries:      matchVocabulary(lowerText, industryKeywords),
		Services:        matchVocabulary(lowerText, serviceKeywords),
	}
	return content, nil
}

// countKeywords counts occurrences of the fixed business vocabulary.
func countKeywords(lowerText string) map[string]int {
	counts := make(map[string]int)
	for _, kw := range businessKeywords {
		if n := strings.Count(lowerText, kw); n > 0 {
			counts[kw] = n
		}
	}
	if len(counts) == 0 {
		return nil
	}
	return counts
}

// detectTech matches the fixed technology signature table against raw HTML.
// Output is sorted so repeated extractions of the same page are identical.
func detectTech(lowerHTML string) []string {
	var out []string
	for tech, patterns := range techSignatures {
		for _, p := range patterns {
			if strings.Contains(lowerHTML, p) {
				out = append(out, tech)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// matchVocabulary returns the sorted labels whose trigger terms appear in
// the text.
func matchVocabulary(lowerText string, vocab map[string][]string) []string {
	var out []string
	for label, terms := range vocab {
		for _, term := range terms {
			if strings.Contains(lowerText, term) {
				out = append(out, label)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
