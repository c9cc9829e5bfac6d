// Package pipeline implements the enrichment run: query generation, source
// discovery and classification, per-source extraction, two model passes, and
// the confidence-gated merge into the stored profile.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/profile-enrich/internal/classify"
	"github.com/sells-group/profile-enrich/internal/config"
	"github.com/sells-group/profile-enrich/internal/extract"
	"github.com/sells-group/profile-enrich/internal/model"
	"github.com/sells-group/profile-enrich/internal/store"
	"github.com/sells-group/profile-enrich/pkg/jina"
)

// Pipeline wires the enrichment stages together. All dependencies are
// constructor-injected; Pipeline itself is stateless across runs.
type Pipeline struct {
	store      store.Store
	classifier *classify.Classifier
	registry   *extract.Registry
	discoverer *Discoverer
	claims     *ClaimExtractor
	verifier   *Verifier
	reader     jina.Client

	cfg           config.PipelineConfig
	maxConcurrent int
}

// Options bundles the pipeline's constructor dependencies.
type Options struct {
	Store      store.Store
	Classifier *classify.Classifier
	Registry   *extract.Registry
	Discoverer *Discoverer
	Claims     *ClaimExtractor
	Verifier   *Verifier
	// Reader, when set, is used as a fallback for sources that block direct
	// fetching. Optional.
	Reader jina.Client

	Config        config.PipelineConfig
	MaxConcurrent int
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &Pipeline{
		store:         opts.Store,
		classifier:    opts.Classifier,
		registry:      opts.Registry,
		discoverer:    opts.Discoverer,
		claims:        opts.Claims,
		verifier:      opts.Verifier,
		reader:        opts.Reader,
		cfg:           opts.Config,
		maxConcurrent: maxConcurrent,
	}
}

// Request is one inbound enrichment request. Seed is required; the optional
// fields let the caller tighten the confidence gate or supply the profile it
// already holds.
type Request struct {
	Seed model.IdentitySeed
	// MinConfidence overrides the configured gate threshold when positive.
	MinConfidence float64
	// Existing is the caller's copy of the subject's profile. It is laid
	// over the stored profile as the merge baseline, so fields the caller
	// already holds keep their provenance protection.
	Existing map[string]model.ProfileField
}

// Run executes one enrichment run for a bare seed with the configured
// defaults.
func (p *Pipeline) Run(ctx context.Context, seed model.IdentitySeed) (*model.EnrichmentRun, error) {
	return p.Enrich(ctx, Request{Seed: seed})
}

// Enrich executes one enrichment run end to end. The returned run is always
// terminal; per-source failures are recorded on it rather than failing the
// run, and a run that produces zero verified facts still completes.
func (p *Pipeline) Enrich(ctx context.Context, req Request) (*model.EnrichmentRun, error) {
	if req.Seed.IsEmpty() {
		return nil, eris.New("pipeline: seed carries no identifier")
	}

	run, err := p.store.CreateRun(ctx, req.Seed)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	if err := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		return nil, eris.Wrap(err, "pipeline: mark running")
	}
	run.Status = model.RunStatusRunning
	started := time.Now().UTC()
	run.StartedAt = &started

	budget := p.cfg.RunBudget
	if budget <= 0 {
		budget = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	p.execute(runCtx, run, req)

	// The terminal record is written with the parent context so a budget
	// overrun does not also lose the run record.
	if err := p.store.FinishRun(ctx, run); err != nil {
		return run, eris.Wrap(err, "pipeline: finish run")
	}
	zap.L().Info("pipeline: run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("fields", len(run.ProfileFields)),
		zap.Int("failures", len(run.Failures)),
	)
	return run, nil
}

// execute drives the stages and leaves run in a terminal state. Any budget
// overrun fails the run without committing a partial merge.
func (p *Pipeline) execute(ctx context.Context, run *model.EnrichmentRun, req Request) {
	queries := BuildQueries(run.Seed)
	urls := p.discoverer.Discover(ctx, run.Seed, queries)
	if len(urls) == 0 {
		p.fail(run, "no candidate sources discovered")
		return
	}

	sources := p.classifySources(run, urls)
	contents := p.extractAll(ctx, run, sources)
	if p.timedOut(ctx, run) {
		return
	}
	if len(contents) == 0 && len(sources) > 0 {
		p.fail(run, "all sources failed")
		return
	}

	claims := p.extractClaims(ctx, run, contents)
	if p.timedOut(ctx, run) {
		return
	}
	claims = NormalizeClaims(claims)

	facts := p.verifyClaims(ctx, run, claims, sources)
	if p.timedOut(ctx, run) {
		return
	}

	minConfidence := p.cfg.MinConfidence
	if req.MinConfidence > 0 {
		minConfidence = req.MinConfidence
	}
	gated := Gate(facts, minConfidence)
	updates := BuildFields(gated, time.Now().UTC())

	subject := store.SubjectKey(run.Seed)
	existing, err := p.store.GetProfile(ctx, subject)
	if err != nil {
		p.fail(run, eris.Wrap(err, "load profile").Error())
		return
	}
	if len(req.Existing) > 0 {
		if existing == nil {
			existing = make(map[string]model.ProfileField, len(req.Existing))
		}
		for k, f := range req.Existing {
			existing[k] = f
		}
	}
	merged := Merge(existing, updates)
	if err := p.store.SaveProfile(ctx, subject, merged); err != nil {
		p.fail(run, eris.Wrap(err, "save profile").Error())
		return
	}

	run.ProfileFields = merged
	run.Status = model.RunStatusCompleted
	finished := time.Now().UTC()
	run.FinishedAt = &finished
}

// classifySources classifies candidate URLs, recording invalid ones as
// failures and returning the classified sources keyed by URL.
func (p *Pipeline) classifySources(run *model.EnrichmentRun, urls []string) map[string]model.Source {
	sources := make(map[string]model.Source, len(urls))
	for _, u := range urls {
		src, err := p.classifier.Classify(u)
		if err != nil {
			run.Failures = append(run.Failures, failureFor(u, err))
			continue
		}
		sources[src.URL] = src
	}
	return sources
}

// extractAll fans extraction out across sources with bounded concurrency and
// a per-source timeout. Failures land in the run's failures list; extraction
// results are returned once every source has settled.
func (p *Pipeline) extractAll(ctx context.Context, run *model.EnrichmentRun, sources map[string]model.Source) []*model.ExtractedContent {
	sourceTimeout := p.cfg.SourceTimeout
	if sourceTimeout <= 0 {
		sourceTimeout = 20 * time.Second
	}

	var mu sync.Mutex
	var contents []*model.ExtractedContent

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)

	for _, src := range sources {
		g.Go(func() error {
			srcCtx, cancel := context.WithTimeout(gCtx, sourceTimeout)
			defer cancel()

			content, err := p.extractOne(srcCtx, src)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				run.Failures = append(run.Failures, failureFor(src.URL, err))
				return nil // per-source failures never abort the group
			}
			contents = append(contents, content)
			return nil
		})
	}
	_ = g.Wait()
	return contents
}

// extractOne runs the platform extractor for one source, falling back to the
// reader service when a direct fetch is blocked.
func (p *Pipeline) extractOne(ctx context.Context, src model.Source) (*model.ExtractedContent, error) {
	content, err := p.registry.For(src).Extract(ctx, src)
	if err == nil {
		return content, nil
	}

	var blocked *model.BlockedError
	if p.reader != nil && !src.Restricted && errors.As(err, &blocked) {
		if fallback, ok := p.readerFallback(ctx, src); ok {
			return fallback, nil
		}
	}
	return nil, err
}

// readerFallback fetches a blocked page through the reader API, which
// renders pages server-side and returns markdown.
func (p *Pipeline) readerFallback(ctx context.Context, src model.Source) (*model.ExtractedContent, bool) {
	resp, err := p.reader.Read(ctx, src.URL)
	if err != nil || resp.Data.Content == "" {
		zap.L().Debug("pipeline: reader fallback failed",
			zap.String("url", src.URL),
			zap.Error(err),
		)
		return nil, false
	}
	zap.L().Info("pipeline: blocked source recovered via reader",
		zap.String("url", src.URL),
	)
	return &model.ExtractedContent{
		Source:    src,
		PageTitle: resp.Data.Title,
		Excerpt:   model.BoundExcerpt(resp.Data.Content),
	}, true
}

// extractClaims runs the first model pass. A model failure yields zero
// claims and a recorded failure; it never degrades into unverified output.
func (p *Pipeline) extractClaims(ctx context.Context, run *model.EnrichmentRun, contents []*model.ExtractedContent) []model.CandidateClaim {
	claims, err := p.claims.Extract(ctx, run.Seed, contents)
	if err != nil {
		run.Failures = append(run.Failures, failureFor("model:claim_extraction", err))
		return nil
	}
	return claims
}

// verifyClaims runs the second model pass with the same failure contract as
// extractClaims.
func (p *Pipeline) verifyClaims(ctx context.Context, run *model.EnrichmentRun, claims []model.CandidateClaim, sources map[string]model.Source) []model.VerifiedFact {
	if len(claims) == 0 {
		return nil
	}
	facts, err := p.verifier.Verify(ctx, claims, sources)
	if err != nil {
		run.Failures = append(run.Failures, failureFor("model:verification", err))
		return nil
	}
	return facts
}

// timedOut fails the run when its context has expired. Nothing is merged
// either way; the recorded reason distinguishes a caller cancel from a
// budget overrun.
func (p *Pipeline) timedOut(ctx context.Context, run *model.EnrichmentRun) bool {
	if ctx.Err() == nil {
		return false
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		p.fail(run, "run canceled before completion")
		return true
	}
	budgetErr := &model.RunTimeoutError{Budget: p.cfg.RunBudget.String()}
	p.fail(run, budgetErr.Error())
	return true
}

func (p *Pipeline) fail(run *model.EnrichmentRun, reason string) {
	run.Status = model.RunStatusFailed
	run.Error = reason
	finished := time.Now().UTC()
	run.FinishedAt = &finished
}

func failureFor(sourceURL string, err error) model.SourceFailure {
	return model.SourceFailure{
		SourceURL: sourceURL,
		ErrorKind: model.KindOf(err),
		Detail:    err.Error(),
	}
}
