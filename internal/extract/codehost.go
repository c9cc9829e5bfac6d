package extract

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/sells-group/profile-enrich/internal/model"
)

// CodeHostExtractor parses code-hosting profile pages (GitHub-style). It
// relies on the vcard-ish structural markup those pages carry plus og: meta
// tags as fallback.
type CodeHostExtractor struct {
	fetcher *Fetcher
}

func (c *CodeHostExtractor) Platform() model.Platform { return model.PlatformCodeHost }

func (c *CodeHostExtractor) Extract(ctx context.Context, src model.Source) (*model.ExtractedContent, error) {
	page, err := c.fetcher.Fetch(ctx, src.URL)
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

	// GitHub profile markup: itemprop/vcard class selectors.
	walk(doc, func(n *html.Node) {
		switch {
		case attr(n, "itemprop") == "name" || hasClass(n, "p-name"):
			if content.Name == "" {
				content.Name = nodeText(n)
			}
		case hasClass(n, "p-nickname"):
			// login handle; ignored unless no display name appears
		case attr(n, "data-bio-text") != "" || hasClass(n, "user-profile-bio") || hasClass(n, "p-note"):
			if content.Bio == "" {
				content.Bio = nodeText(n)
			}
		case attr(n, "itemprop") == "worksFor" || hasClass(n, "p-org"):
			if content.Company == "" {
				content.Company = nodeText(n)
			}
		case attr(n, "itemprop") == "homeLocation" || hasClass(n, "p-label"):
			if content.Location == "" {
				content.Location = nodeText(n)
			}
		case hasClass(n, "pinned-item-list-item-content") || hasClass(n, "repo"):
			if t := nodeText(n); t != "" && len(content.Skills) < 10 {
				content.Skills = append(content.Skills, firstWord(t))
			}
		}
	})

	// og: fallbacks for hosts without vcard markup.
	if content.Name == "" {
		content.Name = strings.TrimSpace(strings.SplitN(metaContent(doc, "og:title"), "·", 2)[0])
	}
	if content.Bio == "" {
		content.Bio = metaContent(doc, "og:description")
	}

	content.Excerpt = model.BoundExcerpt(mainText(doc))
	return content, nil
}

// hasClass reports whether the node's class attribute contains name.
func hasClass(n *html.Node, name string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == name {
			return true
		}
	}
	return false
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
