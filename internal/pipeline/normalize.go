package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/profile-enrich/internal/model"
)

// DateFlagNormalizeFailed marks a claim whose date kept its source form
// because no known layout matched.
const DateFlagNormalizeFailed = "date_normalize_failed"

// dateLayouts are tried in order. Day-level layouts normalize to 2006-01-02,
// month-level to 2006-01, year-level to 2006.
var dateLayouts = []struct {
	layout string
	out    string
}{
	{"2006-01-02", "2006-01-02"},
	{"January 2, 2006", "2006-01-02"},
	{"Jan 2, 2006", "2006-01-02"},
	{"2 January 2006", "2006-01-02"},
	{"2006/01/02", "2006-01-02"},
	{"01/02/2006", "2006-01-02"},
	{"January 2006", "2006-01"},
	{"Jan 2006", "2006-01"},
	{"2006-01", "2006-01"},
	{"2006", "2006"},
}

// NormalizeClaims canonicalizes dates and amounts and collapses near
// duplicates. Input order is preserved for the surviving claims.
func NormalizeClaims(claims []model.CandidateClaim) []model.CandidateClaim {
	normalized := make([]model.CandidateClaim, 0, len(claims))
	for _, c := range claims {
		if c.Date != "" {
			if iso, ok := normalizeDate(c.Date); ok {
				c.Date = iso
			} else {
				c.DateFlag = DateFlagNormalizeFailed
				zap.L().Debug("normalize: date kept as written", zap.String("date", c.Date))
			}
		}
		if c.Amount == nil && c.AmountRaw != "" {
			if money, ok := parseMoney(c.AmountRaw); ok {
				c.Amount = money
			}
		}
		normalized = append(normalized, c)
	}
	return collapseDuplicates(normalized)
}

// normalizeDate converts a source date string to ISO-8601 at the precision
// the source actually stated.
func normalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, dl := range dateLayouts {
		if t, err := time.Parse(dl.layout, s); err == nil {
			return t.Format(dl.out), true
		}
	}
	return s, false
}

var moneyRe = regexp.MustCompile(`(?i)^([$€£]|usd|eur|gbp)?\s*([\d][\d,]*\.?\d*)\s*([kmb])?\s*([$€£]|usd|eur|gbp)?$`)

var currencyCodes = map[string]string{
	"$": "USD", "usd": "USD",
	"€": "EUR", "eur": "EUR",
	"£": "GBP", "gbp": "GBP",
}

// parseMoney parses amounts like "$1.2M", "€500k", or "1,200,000 USD".
// Amounts with no recognizable currency default to USD.
func parseMoney(raw string) (*model.Money, bool) {
	m := moneyRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil, false
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
	if err != nil {
		return nil, false
	}
	switch strings.ToLower(m[3]) {
	case "k":
		amount *= 1e3
	case "m":
		amount *= 1e6
	case "b":
		amount *= 1e9
	}

	code := currencyCodes[strings.ToLower(m[1])]
	if code == "" {
		code = currencyCodes[strings.ToLower(m[4])]
	}
	if code == "" {
		code = "USD"
	}
	return &model.Money{Amount: amount, CurrencyCode: code}, true
}

// collapseDuplicates merges claims that assert the same thing: same type,
// field key, and canonical value. The survivor keeps the union of source
// URLs (in first-seen order) and the longest evidence quote.
func collapseDuplicates(claims []model.CandidateClaim) []model.CandidateClaim {
	type slot struct{ idx int }
	index := make(map[string]slot)
	var out []model.CandidateClaim

	for _, c := range claims {
		key := string(c.Type) + "|" + c.FieldKey + "|" + canonicalValue(c)
		existing, ok := index[key]
		if !ok {
			index[key] = slot{idx: len(out)}
			out = append(out, c)
			continue
		}

		kept := &out[existing.idx]
		kept.SourceURLs = unionURLs(kept.SourceURLs, c.SourceURLs)
		if len(c.EvidenceQuote) > len(kept.EvidenceQuote) {
			kept.EvidenceQuote = c.EvidenceQuote
		}
		// Prefer the copy that carries normalized structure.
		if kept.Amount == nil && c.Amount != nil {
			kept.Amount = c.Amount
		}
		if (kept.Date == "" || kept.DateFlag != "") && c.Date != "" && c.DateFlag == "" {
			kept.Date = c.Date
			kept.DateFlag = ""
		}
	}
	return out
}

// canonicalValue is the comparison form of a claim's asserted value:
// lowercased, punctuation-trimmed, whitespace-collapsed.
func canonicalValue(c model.CandidateClaim) string {
	v := c.Value
	if v == "" {
		v = c.Text
	}
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.Trim(v, ".,;:!?\"'")
	return strings.Join(strings.Fields(v), " ")
}

// unionURLs appends the URLs of b not already present in a, preserving order.
func unionURLs(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, u := range a {
		seen[u] = true
	}
	for _, u := range b {
		if !seen[u] {
			seen[u] = true
			a = append(a, u)
		}
	}
	return a
}
