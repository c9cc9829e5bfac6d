package model

// ClaimType categorizes an atomic assertion about the subject.
type ClaimType string

const (
	ClaimRole        ClaimType = "role"
	ClaimProject     ClaimType = "project"
	ClaimInvestment  ClaimType = "investment"
	ClaimRound       ClaimType = "round"
	ClaimMetric      ClaimType = "metric"
	ClaimAward       ClaimType = "award"
	ClaimPress       ClaimType = "press"
	ClaimPublication ClaimType = "publication"
	ClaimPatent      ClaimType = "patent"
	ClaimTalk        ClaimType = "talk"
	ClaimGrant       ClaimType = "grant"
	ClaimAcquisition ClaimType = "acquisition"
)

// KnownClaimTypes indexes the valid claim types for schema validation.
var KnownClaimTypes = map[ClaimType]bool{
	ClaimRole: true, ClaimProject: true, ClaimInvestment: true,
	ClaimRound: true, ClaimMetric: true, ClaimAward: true,
	ClaimPress: true, ClaimPublication: true, ClaimPatent: true,
	ClaimTalk: true, ClaimGrant: true, ClaimAcquisition: true,
}

// MaxEvidenceChars bounds the verbatim evidence quote on a claim.
const MaxEvidenceChars = 500

// Money is a normalized monetary amount.
type Money struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currency_code"`
}

// CandidateClaim is an atomic, evidence-backed assertion produced by the
// claim extractor. Immutable once created; the verifier either promotes it
// to a VerifiedFact or discards it.
type CandidateClaim struct {
	Type          ClaimType `json:"claim_type"`
	Text          string    `json:"claim_text"`
	FieldKey      string    `json:"field_key,omitempty"`
	Value         string    `json:"value,omitempty"`
	Org           string    `json:"org,omitempty"`
	RoleTitle     string    `json:"role_title,omitempty"`
	Location      string    `json:"location,omitempty"`
	Date          string    `json:"date,omitempty"`
	DateFlag      string    `json:"date_flag,omitempty"` // "date_normalize_failed" when the date kept its original form
	Amount        *Money    `json:"amount,omitempty"`
	AmountRaw     string    `json:"amount_raw,omitempty"`
	EvidenceQuote string    `json:"evidence_quote"`
	SourceURLs    []string  `json:"source_urls"`
}

// VerifiedFact is a CandidateClaim that survived verification. Invariant:
// at least one source URL and confidence > 0.
type VerifiedFact struct {
	Claim        CandidateClaim `json:"claim"`
	Confidence   float64        `json:"confidence"`
	SourceTier   SourceTier     `json:"source_type"`
	ConflictWith string         `json:"conflict_with,omitempty"` // losing claim text, kept for audit
}
