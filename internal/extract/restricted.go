package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/profile-enrich/internal/model"
)

// RestrictedExtractor covers platforms whose terms of service prohibit
// scraping. It never performs a network request: callers get a minimal stub
// so downstream stages can record that the source exists without any
// scraped content attached.
type RestrictedExtractor struct{}

func (r *RestrictedExtractor) Platform() model.Platform { return model.PlatformLongSocial }

func (r *RestrictedExtractor) Extract(_ context.Context, src model.Source) (*model.ExtractedContent, error) {
	zap.L().Debug("skipping restricted platform", zap.String("url", src.URL))
	return &model.ExtractedContent{
		Source: src,
		Note:   model.NoteRestrictedAccess,
	}, nil
}
