package pipeline

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/profile-enrich/internal/model"
	"github.com/sells-group/profile-enrich/pkg/jina"
)

// Discoverer expands an identity seed into candidate source URLs using web
// search. Seed URLs always lead the candidate list; a failed search query
// degrades the run instead of failing it.
type Discoverer struct {
	search     jina.Client
	perQuery   int
	maxSources int
}

// NewDiscoverer creates a Discoverer. perQuery caps results per search
// query; maxSources caps the total candidate list.
func NewDiscoverer(search jina.Client, perQuery, maxSources int) *Discoverer {
	if perQuery <= 0 {
		perQuery = 5
	}
	if maxSources <= 0 {
		maxSources = 16
	}
	return &Discoverer{search: search, perQuery: perQuery, maxSources: maxSources}
}

// Discover returns up to maxSources candidate URLs: the seed's own URLs
// first, then search hits for each query in order. Duplicates are removed
// after URL normalization.
func (d *Discoverer) Discover(ctx context.Context, seed model.IdentitySeed, queries []string) []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(raw string) bool {
		canon := canonicalURL(raw)
		if canon == "" || seen[canon] {
			return len(urls) < d.maxSources
		}
		seen[canon] = true
		urls = append(urls, canon)
		return len(urls) < d.maxSources
	}

	for _, u := range seed.AllURLs() {
		if !add(u) {
			return urls
		}
	}

	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		resp, err := d.search.Search(ctx, q, jina.WithMaxResults(d.perQuery))
		if err != nil {
			zap.L().Warn("discover: search query failed",
				zap.String("query", q),
				zap.Error(err),
			)
			continue
		}
		for _, result := range resp.Data {
			if !add(result.URL) {
				return urls
			}
		}
	}
	return urls
}

// canonicalURL normalizes a URL for deduplication: lowercased scheme/host,
// fragment dropped, trailing slash trimmed. Non-http(s) URLs yield "".
func canonicalURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed.String()
}
