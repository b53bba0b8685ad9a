// Package parser turns raw upstream text (alert emails, portal digests)
// into normalized MarketEvents. Parsers are best-effort extractors; the
// ingest service validates and counts what they produce.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"farm_prospector/models"
)

type Parser interface {
	Source() string
	Parse(raw string) ([]models.MarketEvent, error)
}

var registry = map[string]Parser{}

func register(p Parser) {
	registry[p.Source()] = p
}

// ForSource returns the parser registered for an upstream source tag.
func ForSource(source string) (Parser, bool) {
	p, ok := registry[source]
	return p, ok
}

// Sources lists the registered source tags.
func Sources() []string {
	out := make([]string, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	return out
}

func init() {
	register(&AgencyAlertParser{})
	register(&PortalDigestParser{})
}

var (
	addressRegex = regexp.MustCompile(`(?i)(\d[\d/]*[a-z]?\s+[a-z][a-z' ]*\s(?:street|st|avenue|ave|av|road|rd|drive|dr|place|pl|lane|ln|court|ct|crescent|cres|boulevard|blvd|parade|pde|terrace|tce|circuit|cct|close|cl|grove|gr|esplanade|esp)\b\.?(?:\s*,\s*[a-z][a-z ]+)?)`)
	priceRegex   = regexp.MustCompile(`\$[\d,.]+(?:[mMkK])?(?:\s*-\s*\$[\d,.]+(?:[mMkK])?)?`)
	bedsRegex    = regexp.MustCompile(`(?i)(\d+)\s*bed`)
	bathsRegex   = regexp.MustCompile(`(?i)(\d+)\s*bath`)
	carsRegex    = regexp.MustCompile(`(?i)(\d+)\s*car`)
)

// classifyEvent maps headline keywords to an event type, checking the most
// specific phrases first.
func classifyEvent(text string) (models.EventType, bool) {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "price"):
		return models.EventPriceChange, true
	case strings.Contains(t, "relisted") || strings.Contains(t, "back on market"):
		return models.EventRelisted, true
	case strings.Contains(t, "sold") || strings.Contains(t, "under offer"):
		return models.EventSold, true
	case strings.Contains(t, "withdrawn") || strings.Contains(t, "off market") || strings.Contains(t, "unlisted"):
		return models.EventUnlisted, true
	case strings.Contains(t, "lease") || strings.Contains(t, "rent"):
		return models.EventRental, true
	case strings.Contains(t, "listing") || strings.Contains(t, "just listed") || strings.Contains(t, "for sale"):
		return models.EventListing, true
	}
	return "", false
}

func extractAddress(text string) string {
	return strings.TrimSpace(addressRegex.FindString(text))
}

func extractPrices(text string) (price, previous string) {
	matches := priceRegex.FindAllString(text, 2)
	if len(matches) == 0 {
		return "", ""
	}
	if len(matches) == 1 {
		return matches[0], ""
	}
	// "was $X now $Y" style: last match is current
	return matches[1], matches[0]
}

func extractCount(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
