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

// maxFactConfidence caps computed confidence; nothing scraped off the web is
// certain.
const maxFactConfidence = 0.95

// corroborationBonus is the per-extra-domain multiplier applied to the tier
// weight. Confidence is monotonic in the number of corroborating domains.
const corroborationBonus = 0.15

// conflictPenalty scales the winner's confidence when the conflicting
// claims carry equal trust, so the disagreement was settled by tie-breakers
// rather than on the merits.
const conflictPenalty = 0.6

// verifySystemText is the system prompt for the verification pass. The model
// judges support only; confidence is computed in code from source tiers.
const verifySystemText = `You are a fact verification engine. You receive numbered candidate claims about one person, each with its evidence quote and source credibility tier.

For each claim, judge whether the evidence quote actually supports the claim text. Reject claims whose evidence is unrelated, contradictory, or too vague to support the assertion.

Return a JSON array only, no prose, one entry per claim:
[{"claim_index": 0, "supported": true, "reason": "..."}]

Never invent claims. Every claim_index must refer to a claim you were given.`

// verdict is one model judgment from the verification pass.
type verdict struct {
	ClaimIndex int    `json:"claim_index"`
	Supported  bool   `json:"supported"`
	Reason     string `json:"reason,omitempty"`
}

// Verifier runs the second model pass and the deterministic scoring that
// follows it.
type Verifier struct {
	ai  anthropic.Client
	cfg config.AnthropicConfig
}

// NewVerifier creates a Verifier.
func NewVerifier(ai anthropic.Client, cfg config.AnthropicConfig) *Verifier {
	return &Verifier{ai: ai, cfg: cfg}
}

// Verify promotes supported claims to verified facts. Confidence and
// conflict resolution are computed in code from the source tier table; the
// model only judges whether evidence supports each claim. A model failure
// returns a ModelContractError and zero facts.
func (v *Verifier) Verify(ctx context.Context, claims []model.CandidateClaim, sources map[string]model.Source) ([]model.VerifiedFact, error) {
	if len(claims) == 0 {
		return nil, nil
	}

	req := anthropic.MessageRequest{
		Model:     v.cfg.VerifyModel,
		MaxTokens: int64(v.cfg.MaxOutputTokens),
		System:    anthropic.BuildCachedSystemBlocks(verifySystemText),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildVerifyPrompt(claims, sources)},
		},
	}
	resp, err := resilience.Do(ctx, modelRetryConfig("verification"),
		func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return v.ai.CreateMessage(ctx, req)
		})
	if err != nil {
		return nil, &model.ModelContractError{Pass: "verification", Err: err}
	}
	resp.Usage.LogCost(v.cfg.VerifyModel, "verification")

	var verdicts []verdict
	if err := json.Unmarshal([]byte(cleanJSONArray(resp.Text())), &verdicts); err != nil {
		return nil, &model.ModelContractError{
			Pass: "verification",
			Err:  eris.Wrap(err, "parse verdicts"),
		}
	}

	supported := make(map[int]bool)
	for _, vd := range verdicts {
		if vd.ClaimIndex < 0 || vd.ClaimIndex >= len(claims) {
			zap.L().Warn("verify: verdict for unknown claim index",
				zap.Int("claim_index", vd.ClaimIndex),
			)
			continue
		}
		if vd.Supported {
			supported[vd.ClaimIndex] = true
		}
	}

	facts := ScoreClaims(claims, supported, sources)
	zap.L().Info("verify: verification complete",
		zap.Int("claims", len(claims)),
		zap.Int("supported", len(supported)),
		zap.Int("facts", len(facts)),
	)
	return facts, nil
}

// ScoreClaims turns supported claims into verified facts: per-claim
// confidence from tier weight and corroboration, then conflict resolution
// within each field key by trust, recency, and input order.
func ScoreClaims(claims []model.CandidateClaim, supported map[int]bool, sources map[string]model.Source) []model.VerifiedFact {
	var facts []model.VerifiedFact
	for i, c := range claims {
		if !supported[i] {
			continue
		}
		tier, weight := bestTier(c.SourceURLs, sources)
		if weight <= 0 || len(c.SourceURLs) == 0 {
			continue
		}
		domains := countDomains(c.SourceURLs)
		// Unvetted sources cannot stand alone: a claim whose best tier is
		// "other" needs a second independent domain behind it.
		if tier == model.TierOther && domains < 2 {
			zap.L().Debug("verify: uncorroborated other-tier claim dropped",
				zap.String("claim", c.Text),
			)
			continue
		}
		facts = append(facts, model.VerifiedFact{
			Claim:      c,
			Confidence: claimConfidence(weight, domains),
			SourceTier: tier,
		})
	}
	return resolveConflicts(facts)
}

// claimConfidence computes confidence from the best source tier weight and
// the number of distinct corroborating domains.
func claimConfidence(tierWeight float64, domains int) float64 {
	if domains < 1 {
		domains = 1
	}
	conf := tierWeight * (1 + corroborationBonus*float64(domains-1))
	if conf > maxFactConfidence {
		conf = maxFactConfidence
	}
	return conf
}

// bestTier returns the most trusted tier among the claim's source URLs.
func bestTier(urls []string, sources map[string]model.Source) (model.SourceTier, float64) {
	tier := model.SourceTier("")
	weight := 0.0
	for _, u := range urls {
		src, ok := sources[u]
		if !ok {
			continue
		}
		if src.TrustWeight > weight {
			weight = src.TrustWeight
			tier = src.Tier
		}
	}
	return tier, weight
}

// countDomains counts distinct hosts among the source URLs.
func countDomains(urls []string) int {
	seen := make(map[string]bool)
	for _, u := range urls {
		host := hostOf(u)
		if host != "" {
			seen[host] = true
		}
	}
	return len(seen)
}

func hostOf(raw string) string {
	rest, ok := strings.CutPrefix(raw, "https://")
	if !ok {
		rest, ok = strings.CutPrefix(raw, "http://")
		if !ok {
			return ""
		}
	}
	if idx := strings.IndexAny(rest, "/?#"); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.TrimPrefix(strings.ToLower(rest), "www.")
}

// resolveConflicts settles disagreements within a field key: when two facts
// assert different values for the same field, the higher-trust fact wins at
// full confidence; recency breaks trust ties, input order breaks the rest,
// and a tie-broken winner keeps a confidence penalty since the disagreement
// stands unresolved. Either way the winner carries an audit pointer to the
// losing claim, and the loser's sources never leak into its evidence.
func resolveConflicts(facts []model.VerifiedFact) []model.VerifiedFact {
	byField := make(map[string][]int)
	for i, f := range facts {
		key := f.Claim.FieldKey
		if key == "" || listField(key) {
			continue
		}
		byField[key] = append(byField[key], i)
	}

	dropped := make(map[int]bool)
	for _, idxs := range byField {
		if len(idxs) < 2 {
			continue
		}
		winner := idxs[0]
		for _, i := range idxs[1:] {
			if dropped[i] {
				continue
			}
			if canonicalValue(facts[i].Claim) == canonicalValue(facts[winner].Claim) {
				// Same value from another claim; fold its sources in.
				facts[winner].Claim.SourceURLs = unionURLs(facts[winner].Claim.SourceURLs, facts[i].Claim.SourceURLs)
				facts[winner].Confidence = claimConfidence(
					model.TrustWeights[facts[winner].SourceTier],
					countDomains(facts[winner].Claim.SourceURLs),
				)
				dropped[i] = true
				continue
			}
			loser := i
			if outranks(facts[i], facts[winner]) {
				winner, loser = i, winner
			}
			// A win on strictly higher trust resolves the conflict; only an
			// equal-trust disagreement leaves doubt worth a penalty.
			if model.TrustWeights[facts[winner].SourceTier] == model.TrustWeights[facts[loser].SourceTier] {
				facts[winner].Confidence *= conflictPenalty
			}
			facts[winner].ConflictWith = facts[loser].Claim.Text
			dropped[loser] = true
			zap.L().Info("verify: conflict resolved",
				zap.String("field", facts[winner].Claim.FieldKey),
				zap.String("winner", fmt.Sprintf("%v", facts[winner].Claim.Value)),
				zap.String("loser", fmt.Sprintf("%v", facts[loser].Claim.Value)),
			)
		}
	}

	out := make([]model.VerifiedFact, 0, len(facts))
	for i, f := range facts {
		if dropped[i] {
			continue
		}
		if f.Confidence <= 0 || len(f.Claim.SourceURLs) == 0 {
			continue
		}
		out = append(out, f)
	}
	return out
}

// outranks reports whether a should beat b in a conflict: higher trust
// weight first, then more recent date.
func outranks(a, b model.VerifiedFact) bool {
	wa, wb := model.TrustWeights[a.SourceTier], model.TrustWeights[b.SourceTier]
	if wa != wb {
		return wa > wb
	}
	// ISO dates compare lexically; claims without a usable date sort last.
	da, db := usableDate(a.Claim), usableDate(b.Claim)
	return da > db
}

func usableDate(c model.CandidateClaim) string {
	if c.DateFlag != "" {
		return ""
	}
	return c.Date
}

// listField reports whether a field key accumulates values rather than
// holding a single winner.
func listField(key string) bool {
	return key == model.FieldSkills || key == model.FieldIndustries
}

func buildVerifyPrompt(claims []model.CandidateClaim, sources map[string]model.Source) string {
	var b strings.Builder
	b.WriteString("Candidate claims:\n\n")
	for i, c := range claims {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i, c.Type, c.Text)
		fmt.Fprintf(&b, "    evidence: %q\n", c.EvidenceQuote)
		for _, u := range c.SourceURLs {
			tier := model.TierOther
			if src, ok := sources[u]; ok {
				tier = src.Tier
			}
			fmt.Fprintf(&b, "    source: %s (tier: %s)\n", u, tier)
		}
		b.WriteString("\n")
	}
	b.WriteString("Judge each claim and return the JSON array of verdicts.")
	return b.String()
}
