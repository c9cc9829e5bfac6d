package extract

import (
	"context"
	"strings"

	"github.com/sells-group/profile-enrich/internal/model"
)

// SocialExtractor handles short-form social profile pages. These render
// mostly client-side, so extraction is best-effort over og:/twitter: meta
// tags; an empty result is normal, not an error.
type SocialExtractor struct {
	fetcher *Fetcher
}

func (s *SocialExtractor) Platform() model.Platform { return model.PlatformSocial }

func (s *SocialExtractor) Extract(ctx context.Context, src model.Source) (*model.ExtractedContent, error) {
	page, err := s.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	doc, err := parseHTML(src.URL, page.Body)
	if err != nil {
		return nil, err
	}

	content := &model.ExtractedContent{
		Source:    src,
		PageTitle: docTitle(doc),
	}

	title := metaContent(doc, "og:title")
	if title == "" {
		title = metaContent(doc, "twitter:title")
	}
	// "Display Name (@handle)" → keep the display name.
	if idx := strings.Index(title, "(@"); idx > 0 {
		title = title[:idx]
	}
	content.Name = strings.TrimSpace(title)

	desc := metaContent(doc, "og:description")
	if desc == "" {
		desc = metaContent(doc, "twitter:description")
	}
	content.Bio = strings.TrimSpace(desc)

	content.Excerpt = model.BoundExcerpt(content.Bio)
	return content, nil
}
