// Package classify assigns source tiers and trust weights to candidate URLs.
package classify

import (
	_ "embed"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/profile-enrich/internal/model"
)

//go:embed domains.yaml
var domainsYAML []byte

// domainTables is the decoded shape of domains.yaml.
type domainTables struct {
	OfficialFiling  []string `yaml:"official_filing"`
	ReputableMedia  []string `yaml:"reputable_media"`
	PressRelease    []string `yaml:"press_release"`
	CodeHosting     []string `yaml:"code_hosting"`
	ShortFormSocial []string `yaml:"short_form_social"`
	Restricted      []string `yaml:"restricted"`
}

// Classifier classifies raw URLs into immutable Source records. It is
// table-driven: the allow-lists come from the embedded domains.yaml and the
// tier→weight mapping is model.TrustWeights.
type Classifier struct {
	officialFiling map[string]bool
	reputableMedia map[string]bool
	pressRelease   map[string]bool
	codeHosting    map[string]bool
	shortSocial    map[string]bool
	restricted     map[string]bool
	firstParty     map[string]bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithFirstPartyDomains declares the subject's own domains (e.g. the domain
// of the seed email), classified as first_party.
func WithFirstPartyDomains(domains []string) Option {
	return func(c *Classifier) {
		for _, d := range domains {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				c.firstParty[d] = true
			}
		}
	}
}

// WithRestrictedDomains adds domains to the never-scrape policy list.
func WithRestrictedDomains(domains []string) Option {
	return func(c *Classifier) {
		for _, d := range domains {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				c.restricted[d] = true
			}
		}
	}
}

// New creates a Classifier from the embedded domain tables.
func New(opts ...Option) (*Classifier, error) {
	var tables domainTables
	if err := yaml.Unmarshal(domainsYAML, &tables); err != nil {
		return nil, eris.Wrap(err, "classify: decode domain tables")
	}

	c := &Classifier{
		officialFiling: toSet(tables.OfficialFiling),
		reputableMedia: toSet(tables.ReputableMedia),
		pressRelease:   toSet(tables.PressRelease),
		codeHosting:    toSet(tables.CodeHosting),
		shortSocial:    toSet(tables.ShortFormSocial),
		restricted:     toSet(tables.Restricted),
		firstParty:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func toSet(domains []string) map[string]bool {
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		set[strings.ToLower(d)] = true
	}
	return set
}

// Classify parses a raw URL and returns its immutable Source record.
// Malformed URLs and non-http(s) schemes yield an InvalidSourceError; the
// caller excludes the source and continues the run.
func (c *Classifier) Classify(rawURL string) (model.Source, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return model.Source{}, &model.InvalidSourceError{URL: rawURL, Reason: err.Error()}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return model.Source{}, &model.InvalidSourceError{URL: rawURL, Reason: "unsupported scheme " + parsed.Scheme}
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return model.Source{}, &model.InvalidSourceError{URL: rawURL, Reason: "missing host"}
	}

	src := model.Source{
		URL:    rawURL,
		Domain: host,
	}

	// Restricted platforms short-circuit: they keep their social tier but
	// are flagged so the extractor registry routes them to the stub.
	if matchSet(host, c.restricted) {
		src.Platform = model.PlatformLongSocial
		src.Tier = model.TierSocial
		src.Restricted = true
		src.TrustWeight = model.TrustWeights[src.Tier]
		return src, nil
	}

	// Allow-lists in priority order, then heuristics.
	switch {
	case matchSet(host, c.officialFiling):
		src.Platform = model.PlatformWebsite
		src.Tier = model.TierOfficialFiling
	case matchSet(host, c.reputableMedia):
		src.Platform = model.PlatformWebsite
		src.Tier = model.TierReputableMedia
	case matchSet(host, c.pressRelease):
		src.Platform = model.PlatformWebsite
		src.Tier = model.TierPressRelease
	case matchSet(host, c.codeHosting):
		src.Platform = model.PlatformCodeHost
		src.Tier = model.TierSocial
	case matchSet(host, c.shortSocial):
		src.Platform = model.PlatformSocial
		src.Tier = model.TierSocial
	case matchSet(host, c.firstParty):
		src.Platform = model.PlatformWebsite
		src.Tier = model.TierFirstParty
	case strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".org") ||
		strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".ac.uk"):
		src.Platform = model.PlatformWebsite
		src.Tier = model.TierThirdPartyOfficial
	default:
		src.Platform = model.PlatformGeneric
		src.Tier = model.TierOther
	}

	src.TrustWeight = model.TrustWeights[src.Tier]
	return src, nil
}

// matchSet reports whether host equals or is a subdomain of any domain in set.
func matchSet(host string, set map[string]bool) bool {
	if set[host] {
		return true
	}
	for domain := range set {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
