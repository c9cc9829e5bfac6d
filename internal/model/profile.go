package model

import "time"

// Provenance tags the origin of a profile field's value. User-entered data
// is authoritative and is never overwritten by enrichment.
type Provenance string

const (
	ProvenanceDB         Provenance = "db"
	ProvenanceEnrichment Provenance = "enrichment"
	ProvenanceUser       Provenance = "user"
)

// Well-known profile field keys. Claim extraction may emit additional keys;
// these are the ones the merge engine recognizes for direct profile slots.
const (
	FieldName        = "name"
	FieldHeadline    = "headline"
	FieldBio         = "bio"
	FieldCurrentRole = "current_role"
	FieldCompany     = "company"
	FieldLocation    = "location"
	FieldSkills      = "skills"
	FieldIndustries  = "industries"
)

// ProfileField is the externally visible unit of output: one value per
// logical profile attribute, with confidence and supporting evidence.
// Serialization must preserve confidence precision and source URL order.
type ProfileField struct {
	Value       any        `json:"value"`
	Confidence  float64    `json:"confidence"`
	SourceURLs  []string   `json:"source_urls"`
	LastUpdated time.Time  `json:"lastUpdated"`
	Provenance  Provenance `json:"provenance"`
}
