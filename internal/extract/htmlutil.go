package extract

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/sells-group/profile-enrich/internal/model"
)

// parseHTML parses a page body, returning a ParseError on malformed input.
// html.Parse is forgiving, so the error path mostly covers truncated or
// non-HTML bodies.
func parseHTML(srcURL string, body []byte) (*html.Node, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &model.ParseError{URL: srcURL, Err: errEmptyBody}
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &model.ParseError{URL: srcURL, Err: err}
	}
	return doc, nil
}

var errEmptyBody = &parseFailure{"empty body"}

type parseFailure struct{ msg string }

func (e *parseFailure) Error() string { return e.msg }

// walk applies fn to every element node in the tree.
func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// nodeText collects the trimmed text content beneath n, skipping script and
// style subtrees.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return normalizeSpace(b.String())
}

var spaceRe = regexp.MustCompile(`\s+`)

// normalizeSpace collapses all whitespace runs to single spaces.
func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// metaContent returns the content of <meta name=...> or <meta property=...>.
func metaContent(doc *html.Node, key string) string {
	var out string
	walk(doc, func(n *html.Node) {
		if out != "" || n.Data != "meta" {
			return
		}
		if attr(n, "name") == key || attr(n, "property") == key {
			out = strings.TrimSpace(attr(n, "content"))
		}
	})
	return out
}

// docTitle returns the <title> text.
func docTitle(doc *html.Node) string {
	var out string
	walk(doc, func(n *html.Node) {
		if out == "" && n.Data == "title" {
			out = nodeText(n)
		}
	})
	return out
}

// headings returns the text of h1-h3 elements, up to limit.
func headings(doc *html.Node, limit int) []string {
	var out []string
	walk(doc, func(n *html.Node) {
		if len(out) >= limit {
			return
		}
		switch n.Data {
		case "h1", "h2", "h3":
			if t := nodeText(n); t != "" {
				out = append(out, t)
			}
		}
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// mainText returns whitespace-normalized body text, preferring <main> or
// <article> when present.
func mainText(doc *html.Node) string {
	var preferred *html.Node
	walk(doc, func(n *html.Node) {
		if preferred == nil && (n.Data == "main" || n.Data == "article") {
			preferred = n
		}
	})
	if preferred != nil {
		return nodeText(preferred)
	}

	var body *html.Node
	walk(doc, func(n *html.Node) {
		if body == nil && n.Data == "body" {
			body = n
		}
	})
	if body != nil {
		return nodeText(body)
	}
	return nodeText(doc)
}
