package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-enrich/internal/model"
)

func TestClaimConfidence(t *testing.T) {
	assert.InDelta(t, 0.85, claimConfidence(0.85, 1), 1e-9)
	assert.InDelta(t, 0.69, claimConfidence(0.60, 2), 1e-9)
	assert.InDelta(t, 0.78, claimConfidence(0.60, 3), 1e-9)

	// Corroboration never pushes confidence past the cap.
	assert.InDelta(t, maxFactConfidence, claimConfidence(0.85, 2), 1e-9)
	assert.InDelta(t, maxFactConfidence, claimConfidence(0.95, 5), 1e-9)
}

func TestCountDomains(t *testing.T) {
	assert.Equal(t, 2, countDomains([]string{
		"https://www.example.com/a",
		"https://example.com/b",
		"https://techcrunch.com/c",
	}))
	assert.Equal(t, 0, countDomains([]string{"not-a-url"}))
}

func TestScoreClaimsSkipsUnsupported(t *testing.T) {
	sources := map[string]model.Source{
		"https://acme.dev/about": sourceFor("https://acme.dev/about", model.TierFirstParty),
	}
	claims := []model.CandidateClaim{
		{Type: model.ClaimRole, Text: "supported", SourceURLs: []string{"https://acme.dev/about"}},
		{Type: model.ClaimRole, Text: "rejected", SourceURLs: []string{"https://acme.dev/about"}},
	}

	facts := ScoreClaims(claims, map[int]bool{0: true}, sources)
	require.Len(t, facts, 1)
	assert.Equal(t, "supported", facts[0].Claim.Text)
	assert.Equal(t, model.TierFirstParty, facts[0].SourceTier)
	assert.InDelta(t, 0.60, facts[0].Confidence, 1e-9)
}

func TestScoreClaimsSkipsUnknownSources(t *testing.T) {
	claims := []model.CandidateClaim{
		{Type: model.ClaimRole, Text: "orphaned", SourceURLs: []string{"https://unknown.example.com"}},
	}
	facts := ScoreClaims(claims, map[int]bool{0: true}, map[string]model.Source{})
	assert.Empty(t, facts)
}

func TestScoreClaimsRejectsLoneOtherTierSource(t *testing.T) {
	sources := map[string]model.Source{
		"https://random-blog.net/post": sourceFor("https://random-blog.net/post", model.TierOther),
	}
	claims := []model.CandidateClaim{{
		Type: model.ClaimRole, Text: "Jane works at Globex",
		SourceURLs: []string{"https://random-blog.net/post"},
	}}

	facts := ScoreClaims(claims, map[int]bool{0: true}, sources)
	assert.Empty(t, facts, "single-domain other-tier claim must not become a fact")
}

func TestScoreClaimsAcceptsCorroboratedOtherTier(t *testing.T) {
	sources := map[string]model.Source{
		"https://random-blog.net/post":   sourceFor("https://random-blog.net/post", model.TierOther),
		"https://some-forum.example/t/1": sourceFor("https://some-forum.example/t/1", model.TierOther),
	}
	claims := []model.CandidateClaim{{
		Type: model.ClaimRole, Text: "Jane works at Globex",
		SourceURLs: []string{"https://random-blog.net/post", "https://some-forum.example/t/1"},
	}}

	facts := ScoreClaims(claims, map[int]bool{0: true}, sources)
	require.Len(t, facts, 1)
	assert.Equal(t, model.TierOther, facts[0].SourceTier)
	assert.InDelta(t, 0.20*1.15, facts[0].Confidence, 1e-9)
}

func TestScoreClaimsUsesBestTier(t *testing.T) {
	sources := map[string]model.Source{
		"https://techcrunch.com/a": sourceFor("https://techcrunch.com/a", model.TierReputableMedia),
		"https://x.com/jdoe":       sourceFor("https://x.com/jdoe", model.TierSocial),
	}
	claims := []model.CandidateClaim{{
		Type: model.ClaimRole, Text: "Jane is CEO",
		SourceURLs: []string{"https://x.com/jdoe", "https://techcrunch.com/a"},
	}}

	facts := ScoreClaims(claims, map[int]bool{0: true}, sources)
	require.Len(t, facts, 1)
	assert.Equal(t, model.TierReputableMedia, facts[0].SourceTier)
	// Two corroborating domains on the media tier hits the cap.
	assert.InDelta(t, maxFactConfidence, facts[0].Confidence, 1e-9)
}

func TestResolveConflictsTrustWins(t *testing.T) {
	facts := []model.VerifiedFact{
		{
			Claim: model.CandidateClaim{
				Type: model.ClaimRole, FieldKey: "company", Value: "Acme",
				Text: "Jane works at Acme", SourceURLs: []string{"https://techcrunch.com/a"},
			},
			Confidence: 0.85, SourceTier: model.TierReputableMedia,
		},
		{
			Claim: model.CandidateClaim{
				Type: model.ClaimRole, FieldKey: "company", Value: "Globex",
				Text: "Jane works at Globex", SourceURLs: []string{"https://x.com/someone"},
			},
			Confidence: 0.35, SourceTier: model.TierSocial,
		},
	}

	out := resolveConflicts(facts)
	require.Len(t, out, 1)
	assert.Equal(t, "Acme", out[0].Claim.Value)
	// A win on strictly higher trust keeps full confidence.
	assert.InDelta(t, 0.85, out[0].Confidence, 1e-9)
	assert.Equal(t, "Jane works at Globex", out[0].ConflictWith)
	// The loser's sources never leak into the winner's evidence.
	assert.Equal(t, []string{"https://techcrunch.com/a"}, out[0].Claim.SourceURLs)
}

func TestConflictWinnerPassesDefaultGate(t *testing.T) {
	facts := []model.VerifiedFact{
		{
			Claim: model.CandidateClaim{
				Type: model.ClaimRole, FieldKey: "company", Value: "Acme",
				Text: "Jane works at Acme", SourceURLs: []string{"https://techcrunch.com/a"},
			},
			Confidence: 0.85, SourceTier: model.TierReputableMedia,
		},
		{
			Claim: model.CandidateClaim{
				Type: model.ClaimRole, FieldKey: "company", Value: "Globex",
				Text: "Jane works at Globex", SourceURLs: []string{"https://random-blog.net/post"},
			},
			Confidence: 0.20, SourceTier: model.TierOther,
		},
	}

	gated := Gate(resolveConflicts(facts), 0.6)
	require.Len(t, gated, 1)
	assert.Equal(t, "Acme", gated[0].Claim.Value)
	assert.InDelta(t, 0.85, gated[0].Confidence, 1e-9)
	assert.Equal(t, "Jane works at Globex", gated[0].ConflictWith)
}

func TestResolveConflictsRecencyBreaksTrustTies(t *testing.T) {
	facts := []model.VerifiedFact{
		{
			Claim: model.CandidateClaim{
				Type: model.ClaimRole, FieldKey: "company", Value: "Old Co",
				Text: "was at Old Co", Date: "2021-04",
				SourceURLs: []string{"https://a.example.com"},
			},
			Confidence: 0.60, SourceTier: model.TierFirstParty,
		},
		{
			Claim: model.CandidateClaim{
				Type: model.ClaimRole, FieldKey: "company", Value: "New Co",
				Text: "joined New Co", Date: "2024-01",
				SourceURLs: []string{"https://b.example.com"},
			},
			Confidence: 0.60, SourceTier: model.TierFirstParty,
		},
	}

	out := resolveConflicts(facts)
	require.Len(t, out, 1)
	assert.Equal(t, "New Co", out[0].Claim.Value)
	assert.Equal(t, "was at Old Co", out[0].ConflictWith)
	// An equal-trust disagreement stays unresolved; the winner pays for it.
	assert.InDelta(t, 0.60*conflictPenalty, out[0].Confidence, 1e-9)
}

func TestResolveConflictsFlaggedDatesSortLast(t *testing.T) {
	facts := []model.VerifiedFact{
		{
			Claim: model.CandidateClaim{
				Type: model.ClaimRole, FieldKey: "company", Value: "Vague Co",
				Text: "at Vague Co", Date: "recently", DateFlag: DateFlagNormalizeFailed,
				SourceURLs: []string{"https://a.example.com"},
			},
			Confidence: 0.60, SourceTier: model.TierFirstParty,
		},
		{
			Claim: model.CandidateClaim{
				Type: model.ClaimRole, FieldKey: "company", Value: "Dated Co",
				Text: "at Dated Co", Date: "2020",
				SourceURLs: []string{"https://b.example.com"},
			},
			Confidence: 0.60, SourceTier: model.TierFirstParty,
		},
	}

	out := resolveConflicts(facts)
	require.Len(t, out, 1)
	assert.Equal(t, "Dated Co", out[0].Claim.Value)
}

func TestResolveConflictsFoldsAgreement(t *testing.T) {
	facts := []model.VerifiedFact{
		{
			Claim: model.CandidateClaim{
				Type: model.ClaimRole, FieldKey: "company", Value: "Acme",
				Text: "Jane works at Acme", SourceURLs: []string{"https://techcrunch.com/a"},
			},
			Confidence: 0.85, SourceTier: model.TierReputableMedia,
		},
		{
			Claim: model.CandidateClaim{
				Type: model.ClaimRole, FieldKey: "company", Value: "acme",
				Text: "Jane is at Acme", SourceURLs: []string{"https://acme.dev/about"},
			},
			Confidence: 0.60, SourceTier: model.TierFirstParty,
		},
	}

	out := resolveConflicts(facts)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].ConflictWith)
	assert.Equal(t, []string{"https://techcrunch.com/a", "https://acme.dev/about"}, out[0].Claim.SourceURLs)
	// Recomputed with two corroborating domains on the media tier.
	assert.InDelta(t, maxFactConfidence, out[0].Confidence, 1e-9)
}

func TestResolveConflictsSkipsListFields(t *testing.T) {
	facts := []model.VerifiedFact{
		{
			Claim: model.CandidateClaim{
				Type: model.ClaimRole, FieldKey: model.FieldSkills, Value: "Go",
				Text: "knows Go", SourceURLs: []string{"https://a.example.com"},
			},
			Confidence: 0.60, SourceTier: model.TierFirstParty,
		},
		{
			Claim: model.CandidateClaim{
				Type: model.ClaimRole, FieldKey: model.FieldSkills, Value: "Rust",
				Text: "knows Rust", SourceURLs: []string{"https://a.example.com"},
			},
			Confidence: 0.60, SourceTier: model.TierFirstParty,
		},
	}

	out := resolveConflicts(facts)
	assert.Len(t, out, 2)
}

func TestVerifierPromotesSupportedClaims(t *testing.T) {
	ai := &mockAnthropic{responses: []string{`[
		{"claim_index": 0, "supported": true, "reason": "evidence states it"},
		{"claim_index": 1, "supported": false, "reason": "unrelated quote"},
		{"claim_index": 7, "supported": true, "reason": "invented"}
	]`}}
	v := NewVerifier(ai, claimTestConfig())

	sources := map[string]model.Source{
		"https://acme.dev/about": sourceFor("https://acme.dev/about", model.TierFirstParty),
	}
	claims := []model.CandidateClaim{
		{Type: model.ClaimRole, Text: "supported", EvidenceQuote: "q", SourceURLs: []string{"https://acme.dev/about"}},
		{Type: model.ClaimRole, Text: "unsupported", EvidenceQuote: "q", SourceURLs: []string{"https://acme.dev/about"}},
	}

	facts, err := v.Verify(context.Background(), claims, sources)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "supported", facts[0].Claim.Text)

	require.Len(t, ai.requests, 1)
	assert.Equal(t, "claude-sonnet-4-5-20250929", ai.requests[0].Model)
}

func TestVerifierModelFailure(t *testing.T) {
	ai := &mockAnthropic{err: errors.New("api unavailable")}
	v := NewVerifier(ai, claimTestConfig())

	facts, err := v.Verify(context.Background(),
		[]model.CandidateClaim{{Type: model.ClaimRole, Text: "x", SourceURLs: []string{"https://a.example.com"}}},
		map[string]model.Source{})
	assert.Nil(t, facts)

	var contractErr *model.ModelContractError
	require.ErrorAs(t, err, &contractErr)
	assert.Equal(t, "verification", contractErr.Pass)
}

func TestVerifierNoClaimsNoCall(t *testing.T) {
	ai := &mockAnthropic{}
	v := NewVerifier(ai, claimTestConfig())

	facts, err := v.Verify(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, facts)
	assert.Empty(t, ai.requests)
}
