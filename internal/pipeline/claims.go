package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/profile-enrich/internal/config"
	"github.com/sells-group/profile-enrich/internal/model"
	"github.com/sells-group/profile-enrich/internal/resilience"
	"github.com/sells-group/profile-enrich/pkg/anthropic"
)

// modelRetryConfig is the retry policy for model calls: transient API
// failures (timeouts, 429/5xx, overload) get backed-off retries; contract
// violations in the response body never do.
func modelRetryConfig(operation string) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("anthropic", operation)
	cfg.ShouldRetry = func(err error) bool {
		if resilience.IsTransient(err) {
			return true
		}
		msg := strings.ToLower(err.Error())
		return strings.Contains(msg, "overloaded") ||
			strings.Contains(msg, "429") ||
			strings.Contains(msg, "rate limit")
	}
	return cfg
}

// claimSystemText is the system prompt for the claim extraction pass. The
// schema is enforced again in code: claims that fail validation are dropped,
// never repaired into something the source did not say.
const claimSystemText = `You are a fact extraction engine. You receive content scraped from public web pages about one person, and you emit atomic, verifiable claims about that person.

Rules:
- Emit only claims directly stated in the provided content. Never infer, combine, or embellish.
- Every claim must carry a verbatim evidence_quote copied from the content (max 500 characters) and the source_urls it came from.
- claim_type must be one of: role, project, investment, round, metric, award, press, publication, patent, talk, grant, acquisition.
- field_key, when the claim maps to a profile attribute, must be one of: name, headline, bio, current_role, company, location, skills, industries. Omit it otherwise.
- Dates stay as written in the source; do not reformat them.
- If the content contains nothing verifiable, return an empty array.

Return a JSON array only, no prose:
[{"claim_type": "...", "claim_text": "...", "field_key": "...", "value": "...", "org": "...", "role_title": "...", "location": "...", "date": "...", "amount_raw": "...", "evidence_quote": "...", "source_urls": ["..."]}]`

// ClaimExtractor runs the first model pass: extracted content in, candidate
// claims out.
type ClaimExtractor struct {
	ai  anthropic.Client
	cfg config.AnthropicConfig
}

// NewClaimExtractor creates a ClaimExtractor.
func NewClaimExtractor(ai anthropic.Client, cfg config.AnthropicConfig) *ClaimExtractor {
	return &ClaimExtractor{ai: ai, cfg: cfg}
}

// Extract produces candidate claims for the subject from all non-stub
// extracted content in one model call. A model or contract failure returns a
// ModelContractError and zero claims; it never returns partial guesses.
func (e *ClaimExtractor) Extract(ctx context.Context, seed model.IdentitySeed, contents []*model.ExtractedContent) ([]model.CandidateClaim, error) {
	prompt, knownURLs := buildClaimPrompt(seed, contents)
	if prompt == "" {
		return nil, nil
	}

	req := anthropic.MessageRequest{
		Model:     e.cfg.ExtractModel,
		MaxTokens: int64(e.cfg.MaxOutputTokens),
		System:    anthropic.BuildCachedSystemBlocks(claimSystemText),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	}
	resp, err := resilience.Do(ctx, modelRetryConfig("claim_extraction"),
		func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return e.ai.CreateMessage(ctx, req)
		})
	if err != nil {
		return nil, &model.ModelContractError{Pass: "claim_extraction", Err: err}
	}
	resp.Usage.LogCost(e.cfg.ExtractModel, "claim_extraction")

	var raw []model.CandidateClaim
	if err := json.Unmarshal([]byte(cleanJSONArray(resp.Text())), &raw); err != nil {
		return nil, &model.ModelContractError{
			Pass: "claim_extraction",
			Err:  eris.Wrap(err, "parse claims"),
		}
	}

	var claims []model.CandidateClaim
	for _, c := range raw {
		claim, err := validateClaim(c, knownURLs)
		if err != nil {
			zap.L().Warn("claims: dropping invalid claim",
				zap.String("claim", c.Text),
				zap.Error(err),
			)
			continue
		}
		claims = append(claims, claim)
	}

	zap.L().Info("claims: extraction complete",
		zap.Int("raw", len(raw)),
		zap.Int("valid", len(claims)),
	)
	return claims, nil
}

// buildClaimPrompt renders the per-source content sections. Stub content
// (restricted platforms, empty parses) is excluded. Returns "" when nothing
// remains to extract from.
func buildClaimPrompt(seed model.IdentitySeed, contents []*model.ExtractedContent) (string, map[string]bool) {
	knownURLs := make(map[string]bool)
	var sections []string
	for _, c := range contents {
		if c == nil || c.IsStub() {
			continue
		}
		knownURLs[c.Source.URL] = true
		sections = append(sections, formatContentSection(c))
	}
	if len(sections) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Subject:\n")
	if seed.Email != "" {
		fmt.Fprintf(&b, "- email: %s\n", seed.Email)
	}
	if seed.PrimaryURL != "" {
		fmt.Fprintf(&b, "- primary url: %s\n", seed.PrimaryURL)
	}
	if seed.Context != "" {
		fmt.Fprintf(&b, "- context: %s\n", seed.Context)
	}
	b.WriteString("\nSources:\n\n")
	b.WriteString(strings.Join(sections, "\n\n"))
	b.WriteString("\n\nExtract all verifiable claims about the subject as a JSON array.")
	return b.String(), knownURLs
}

func formatContentSection(c *model.ExtractedContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s (tier: %s) ---\n", c.Source.URL, c.Source.Tier)
	writeField := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	writeField("Name", c.Name)
	writeField("Headline", c.Headline)
	writeField("Bio", c.Bio)
	writeField("Company", c.Company)
	writeField("Title", c.Title)
	writeField("Location", c.Location)
	writeField("Page title", c.PageTitle)
	writeField("Meta description", c.MetaDescription)
	if len(c.Headings) > 0 {
		writeField("Headings", strings.Join(c.Headings, " | "))
	}
	if len(c.Skills) > 0 {
		writeField("Skills", strings.Join(c.Skills, ", "))
	}
	if len(c.Industries) > 0 {
		writeField("Industries", strings.Join(c.Industries, ", "))
	}
	writeField("Excerpt", c.Excerpt)
	return b.String()
}

// validateClaim enforces the claim schema: known type, non-empty text and
// evidence, and source URLs restricted to pages the model was actually shown.
func validateClaim(c model.CandidateClaim, knownURLs map[string]bool) (model.CandidateClaim, error) {
	if !model.KnownClaimTypes[c.Type] {
		return c, eris.Errorf("unknown claim type %q", c.Type)
	}
	if strings.TrimSpace(c.Text) == "" {
		return c, eris.New("empty claim text")
	}
	if strings.TrimSpace(c.EvidenceQuote) == "" {
		return c, eris.New("missing evidence quote")
	}
	if len(c.EvidenceQuote) > model.MaxEvidenceChars {
		c.EvidenceQuote = c.EvidenceQuote[:model.MaxEvidenceChars]
	}

	var urls []string
	for _, u := range c.SourceURLs {
		if knownURLs[u] {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return c, eris.New("no source url from the provided pages")
	}
	c.SourceURLs = urls
	return c, nil
}

// cleanJSONArray extracts a JSON array from text that may contain markdown
// code fences or surrounding prose.
func cleanJSONArray(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
