package model

// Platform describes what kind of surface a source URL points at. It selects
// the content extractor used for the source.
type Platform string

const (
	PlatformWebsite    Platform = "website"
	PlatformSocial     Platform = "social-short-form"
	PlatformLongSocial Platform = "social-long-form"
	PlatformCodeHost   Platform = "code-hosting"
	PlatformGeneric    Platform = "generic"
)

// SourceTier is a fixed credibility classification of a domain.
type SourceTier string

const (
	TierOfficialFiling     SourceTier = "official_filing"
	TierReputableMedia     SourceTier = "reputable_media"
	TierPressRelease       SourceTier = "press_release"
	TierFirstParty         SourceTier = "first_party"
	TierThirdPartyOfficial SourceTier = "third_party_official"
	TierSocial             SourceTier = "social"
	TierOther              SourceTier = "other"
)

// TrustWeights maps each tier to its fixed trust weight. The table is the
// single authority for trust ordering; tests assert it is strictly
// descending in the order tiers are declared above.
var TrustWeights = map[SourceTier]float64{
	TierOfficialFiling:     0.95,
	TierReputableMedia:     0.85,
	TierPressRelease:       0.70,
	TierFirstParty:         0.60,
	TierThirdPartyOfficial: 0.50,
	TierSocial:             0.35,
	TierOther:              0.20,
}

// TierOrder lists tiers from most to least trusted.
var TierOrder = []SourceTier{
	TierOfficialFiling,
	TierReputableMedia,
	TierPressRelease,
	TierFirstParty,
	TierThirdPartyOfficial,
	TierSocial,
	TierOther,
}

// Source is a classified candidate URL. Sources are produced by the
// classifier and never mutated afterward.
type Source struct {
	URL         string     `json:"url"`
	Domain      string     `json:"domain"`
	Platform    Platform   `json:"platform"`
	Tier        SourceTier `json:"source_tier"`
	TrustWeight float64    `json:"trust_weight"`
	Restricted  bool       `json:"restricted,omitempty"`
}
