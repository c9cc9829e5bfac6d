package model

import "strings"

// IdentitySeed is the immutable caller-supplied input that bootstraps an
// enrichment run. It is created once per request and never mutated.
type IdentitySeed struct {
	Email      string   `json:"email,omitempty"`
	PrimaryURL string   `json:"primary_url,omitempty"`
	SocialURLs []string `json:"social_urls,omitempty"`
	Context    string   `json:"context,omitempty"`
}

// AllURLs returns the seed's declared URLs with the primary URL first.
func (s IdentitySeed) AllURLs() []string {
	var urls []string
	if s.PrimaryURL != "" {
		urls = append(urls, s.PrimaryURL)
	}
	for _, u := range s.SocialURLs {
		if u != "" && u != s.PrimaryURL {
			urls = append(urls, u)
		}
	}
	return urls
}

// EmailLocalPart returns the part of the seed email before the @, or "".
func (s IdentitySeed) EmailLocalPart() string {
	at := strings.Index(s.Email, "@")
	if at <= 0 {
		return ""
	}
	return s.Email[:at]
}

// EmailDomain returns the domain of the seed email, lowercased, or "".
func (s IdentitySeed) EmailDomain() string {
	at := strings.Index(s.Email, "@")
	if at < 0 || at == len(s.Email)-1 {
		return ""
	}
	return strings.ToLower(s.Email[at+1:])
}

// IsEmpty reports whether the seed carries no usable identifier.
func (s IdentitySeed) IsEmpty() bool {
	return s.Email == "" && s.PrimaryURL == "" && len(s.SocialURLs) == 0
}
