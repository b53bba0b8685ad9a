package parser

import (
	"strings"
	"time"

	"farm_prospector/models"
)

// PortalDigestParser extracts events from plain-text portal digests.
// One event per line, pipe-separated:
//
//	SOLD | 23 Wallace Street, Willoughby | $2,150,000 | 4 bed 2 bath 2 car | House | Ray White
//
// Trailing fields are optional; lines that don't classify are skipped.
type PortalDigestParser struct{}

func (p *PortalDigestParser) Source() string { return "portal_digest" }

func (p *PortalDigestParser) Parse(raw string) ([]models.MarketEvent, error) {
	now := time.Now()
	var events []models.MarketEvent

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "|")
		typ, ok := classifyEvent(fields[0])
		if !ok {
			continue
		}

		event := models.MarketEvent{
			Type:       typ,
			Source:     p.Source(),
			EventDate:  now,
			DetectedAt: now,
			Status:     models.EventStatusActive,
		}

		if len(fields) > 1 {
			event.Address = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			event.Price, event.PricePrevious = extractPrices(fields[2])
		}
		if len(fields) > 3 {
			event.Beds = extractCount(bedsRegex, fields[3])
			event.Baths = extractCount(bathsRegex, fields[3])
			event.Cars = extractCount(carsRegex, fields[3])
		}
		if len(fields) > 4 {
			event.PropertyType = strings.TrimSpace(fields[4])
		}
		if len(fields) > 5 {
			event.Agency = strings.TrimSpace(fields[5])
		}

		events = append(events, event)
	}

	return events, nil
}
