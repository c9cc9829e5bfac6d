package pipeline

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/profile-enrich/internal/model"
)

// Gate filters verified facts by the confidence threshold. Applying the gate
// to already-gated facts is a no-op.
func Gate(facts []model.VerifiedFact, minConfidence float64) []model.VerifiedFact {
	var out []model.VerifiedFact
	for _, f := range facts {
		if f.Confidence >= minConfidence {
			out = append(out, f)
		}
	}
	return out
}

// BuildFields shapes gated facts into profile fields. Scalar fields keep the
// highest-confidence fact; list fields (skills, industries) accumulate
// distinct values with the minimum contributing confidence. Facts without a
// field key are keyed by claim type so nothing verified is silently lost.
func BuildFields(facts []model.VerifiedFact, now time.Time) map[string]model.ProfileField {
	fields := make(map[string]model.ProfileField)
	lists := make(map[string][]string)
	listConf := make(map[string]float64)
	listURLs := make(map[string][]string)

	for _, f := range facts {
		key := f.Claim.FieldKey
		if key == "" {
			key = string(f.Claim.Type)
		}

		if listField(key) {
			value := f.Claim.Value
			if value == "" {
				value = f.Claim.Text
			}
			lists[key] = appendDistinct(lists[key], value)
			if c, ok := listConf[key]; !ok || f.Confidence < c {
				listConf[key] = f.Confidence
			}
			listURLs[key] = unionURLs(listURLs[key], f.Claim.SourceURLs)
			continue
		}

		existing, ok := fields[key]
		if ok && existing.Confidence >= f.Confidence {
			continue
		}
		var value any = f.Claim.Value
		if f.Claim.Value == "" {
			value = f.Claim.Text
		}
		fields[key] = model.ProfileField{
			Value:       value,
			Confidence:  f.Confidence,
			SourceURLs:  dedupeURLs(f.Claim.SourceURLs),
			LastUpdated: now,
			Provenance:  model.ProvenanceEnrichment,
		}
	}

	for key, values := range lists {
		sort.Strings(values)
		fields[key] = model.ProfileField{
			Value:       values,
			Confidence:  listConf[key],
			SourceURLs:  listURLs[key],
			LastUpdated: now,
			Provenance:  model.ProvenanceEnrichment,
		}
	}
	return fields
}

// Merge folds enrichment updates into an existing profile and returns a new
// map; neither input is mutated, so the caller can swap the result in
// atomically. User-entered fields are never overwritten. An existing field
// is replaced only when the update carries strictly higher confidence, or
// equal confidence with more supporting sources, so repeated merges of the
// same output are idempotent and field quality never regresses.
func Merge(existing, updates map[string]model.ProfileField) map[string]model.ProfileField {
	merged := make(map[string]model.ProfileField, len(existing)+len(updates))
	for k, f := range existing {
		merged[k] = f
	}

	for key, update := range updates {
		current, ok := merged[key]
		if !ok {
			merged[key] = update
			continue
		}
		if current.Provenance == model.ProvenanceUser {
			zap.L().Debug("merge: keeping user-entered field", zap.String("field", key))
			continue
		}
		if update.Confidence < current.Confidence {
			continue
		}
		if update.Confidence == current.Confidence && len(update.SourceURLs) <= len(current.SourceURLs) {
			continue
		}
		merged[key] = update
	}
	return merged
}

func appendDistinct(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

func dedupeURLs(urls []string) []string {
	return unionURLs(nil, urls)
}
