package model

// MaxExcerptChars bounds the free-text excerpt carried per source.
const MaxExcerptChars = 2000

// NoteRestrictedAccess marks content stubs for platforms whose terms of
// service prohibit scraping.
const NoteRestrictedAccess = "restricted_access"

// ExtractedContent holds the structured fields and bounded excerpt parsed
// from one source. It is owned by the content extractor and discarded after
// claim extraction; it is never persisted.
type ExtractedContent struct {
	Source Source `json:"source"`

	Name     string `json:"name,omitempty"`
	Headline string `json:"headline,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Company  string `json:"company,omitempty"`
	Title    string `json:"title,omitempty"`
	Location string `json:"location,omitempty"`

	PageTitle       string         `json:"page_title,omitempty"`
	MetaDescription string         `json:"meta_description,omitempty"`
	Headings        []string       `json:"headings,omitempty"`
	Skills          []string       `json:"skills,omitempty"`
	Industries      []string       `json:"industries,omitempty"`
	Services        []string       `json:"services,omitempty"`
	TechSignals     []string       `json:"tech_signals,omitempty"`
	KeywordCounts   map[string]int `json:"keyword_counts,omitempty"`

	Excerpt string `json:"excerpt,omitempty"`

	// Note carries a diagnostic annotation, e.g. "restricted_access" for
	// platforms that must not be scraped, or a parse-failure description.
	Note string `json:"note,omitempty"`
}

// IsStub reports whether the content carries no extracted signal beyond a
// diagnostic note.
func (c *ExtractedContent) IsStub() bool {
	return c.Name == "" && c.Headline == "" && c.Bio == "" &&
		c.Company == "" && c.Location == "" && c.Excerpt == "" &&
		len(c.Headings) == 0 && len(c.Skills) == 0
}

// BoundExcerpt truncates s to the excerpt budget on a rune boundary.
func BoundExcerpt(s string) string {
	if len(s) <= MaxExcerptChars {
		return s
	}
	runes := []rune(s)
	if len(runes) <= MaxExcerptChars {
		return s
	}
	return string(runes[:MaxExcerptChars])
}
