package pipeline

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/profile-enrich/internal/model"
)

// Query length bounds. Queries outside the bounds are dropped before search.
const (
	minQueryChars = 8
	maxQueryChars = 160
	maxQueries    = 8
)

var titleCaser = cases.Title(language.English)

// BuildQueries derives search queries from an identity seed. The output is
// deterministic for a given seed: same candidates, same order, duplicates
// removed case-insensitively.
func BuildQueries(seed model.IdentitySeed) []string {
	name := guessName(seed)
	domain := seed.EmailDomain()
	site := primarySite(seed)

	var candidates []string
	if name != "" {
		quoted := `"` + name + `"`
		candidates = append(candidates, quoted)
		if domain != "" {
			candidates = append(candidates, quoted+" "+domain)
		}
		if site != "" && site != domain {
			candidates = append(candidates, quoted+" "+site)
		}
		candidates = append(candidates,
			quoted+" founder OR ceo OR engineer",
			quoted+" interview OR announcement",
		)
		if seed.Context != "" {
			candidates = append(candidates, quoted+" "+seed.Context)
		}
	}
	if seed.Email != "" {
		candidates = append(candidates, `"`+seed.Email+`"`)
	}
	for _, raw := range seed.SocialURLs {
		if handle := socialHandle(raw); handle != "" {
			candidates = append(candidates, `"`+handle+`"`+" profile")
		}
	}
	if site != "" {
		candidates = append(candidates, site+" about OR team OR founder")
	}

	seen := make(map[string]bool)
	var queries []string
	for _, q := range candidates {
		q = strings.TrimSpace(q)
		if len(q) < minQueryChars || len(q) > maxQueryChars {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, q)
		if len(queries) == maxQueries {
			break
		}
	}
	return queries
}

// guessName derives a display-name guess from the email local part:
// "jane.doe" → "Jane Doe". Single tokens and opaque local parts (digits,
// role accounts) yield "".
func guessName(seed model.IdentitySeed) string {
	local := seed.EmailLocalPart()
	if local == "" {
		return ""
	}
	// Strip plus-addressing.
	if idx := strings.Index(local, "+"); idx > 0 {
		local = local[:idx]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(parts) < 2 {
		return ""
	}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, "0123456789") {
			return ""
		}
	}
	switch strings.ToLower(parts[0]) {
	case "info", "hello", "contact", "admin", "support", "team", "sales":
		return ""
	}
	return titleCaser.String(strings.Join(parts, " "))
}

// primarySite returns the registrable host of the seed's primary URL, or "".
func primarySite(seed model.IdentitySeed) string {
	if seed.PrimaryURL == "" {
		return ""
	}
	parsed, err := url.Parse(seed.PrimaryURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// socialHandle extracts the profile handle from a social URL's first path
// segment, e.g. https://github.com/jdoe → jdoe.
func socialHandle(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return ""
	}
	handle := segs[0]
	// LinkedIn-style /in/<handle> paths.
	if (handle == "in" || handle == "company") && len(segs) > 1 {
		handle = segs[1]
	}
	if len(handle) < 3 {
		return ""
	}
	return handle
}
