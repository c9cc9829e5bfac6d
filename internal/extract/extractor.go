// Package extract fetches and structurally parses source pages into
// per-source extracted content. One extractor per platform; selection is a
// registry lookup so adding a platform is additive.
package extract

import (
	"context"

	"github.com/sells-group/profile-enrich/internal/model"
)

// Extractor parses one source's page into structured content. All
// implementations share the same contract: a typed failure or a non-nil
// ExtractedContent, never both.
type Extractor interface {
	Extract(ctx context.Context, src model.Source) (*model.ExtractedContent, error)
	Platform() model.Platform
}

// Registry maps platforms to their extractors. Restricted sources are routed
// to the stub extractor regardless of platform; that routing lives here so
// no caller can bypass the policy.
type Registry struct {
	byPlatform map[model.Platform]Extractor
	restricted Extractor
}

// NewRegistry builds the default registry over a shared Fetcher.
func NewRegistry(f *Fetcher) *Registry {
	site := &WebsiteExtractor{fetcher: f}
	return &Registry{
		byPlatform: map[model.Platform]Extractor{
			model.PlatformWebsite:  site,
			model.PlatformGeneric:  site,
			model.PlatformCodeHost: &CodeHostExtractor{fetcher: f},
			model.PlatformSocial:   &SocialExtractor{fetcher: f},
		},
		restricted: &RestrictedExtractor{},
	}
}

// For returns the extractor for the given source. ToS-restricted sources and
// platforms with no registered extractor get the restricted/stub extractor.
func (r *Registry) For(src model.Source) Extractor {
	if src.Restricted {
		return r.restricted
	}
	if ex, ok := r.byPlatform[src.Platform]; ok {
		return ex
	}
	return r.restricted
}
