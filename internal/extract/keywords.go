package extract

// businessKeywords is the fixed vocabulary counted over page text. Counts
// feed the claim extractor as weak topical signals.
var businessKeywords = []string{
	"founder", "co-founder", "ceo", "cto", "coo", "cfo", "vp", "director",
	"engineer", "investor", "partner", "advisor", "board",
	"startup", "acquisition", "acquired", "funding", "raised", "seed",
	"series a", "series b", "venture", "ipo", "revenue", "patent",
	"award", "keynote", "published", "grant", "research",
}

// industryKeywords maps industry labels to trigger terms for the lightweight
// business-info heuristic.
var industryKeywords = map[string][]string{
	"fintech":       {"payments", "banking", "lending", "fintech", "trading"},
	"healthcare":    {"health", "medical", "clinical", "biotech", "pharma"},
	"software":      {"saas", "software", "platform", "api", "developer tools"},
	"ai":            {"machine learning", "artificial intelligence", " ai ", "llm", "deep learning"},
	"ecommerce":     {"ecommerce", "e-commerce", "retail", "marketplace"},
	"security":      {"security", "cybersecurity", "encryption", "zero trust"},
	"energy":        {"energy", "solar", "renewable", "battery", "grid"},
	"manufacturing": {"manufacturing", "industrial", "supply chain", "logistics"},
}

// serviceKeywords maps service labels to trigger terms.
var serviceKeywords = map[string][]string{
	"consulting":  {"consulting", "advisory", "professional services"},
	"development": {"custom development", "software development", "engineering services"},
	"design":      {"design", "branding", "ux", "user experience"},
	"marketing":   {"marketing", "seo", "growth", "demand generation"},
}

// techSignatures maps technology names to fixed substring patterns matched
// against raw page HTML. Table-driven so additions stay additive.
var techSignatures = map[string][]string{
	"react":      {"react.development.js", "react.production.min.js", "data-reactroot", "__next_data__"},
	"vue":        {"vue.js", "vue.min.js", "data-v-app"},
	"angular":    {"ng-version", "angular.min.js"},
	"wordpress":  {"wp-content", "wp-includes"},
	"shopify":    {"cdn.shopify.com", "shopify.theme"},
	"hubspot":    {"js.hs-scripts.com", "hubspot"},
	"ga":         {"googletagmanager.com", "google-analytics.com"},
	"cloudflare": {"cdn-cgi/", "cf-ray"},
	"stripe":     {"js.stripe.com"},
	"intercom":   {"widget.intercom.io"},
}
