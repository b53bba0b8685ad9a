package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"farm_prospector/models"
)

// AgencyAlertParser extracts events from agency alert emails (HTML). Each
// alert is a block whose heading carries the event kind ("Just Listed",
// "Sold", ...) followed by the address and property details.
type AgencyAlertParser struct{}

func (p *AgencyAlertParser) Source() string { return "agency_alert" }

func (p *AgencyAlertParser) Parse(raw string) ([]models.MarketEvent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	now := time.Now()
	var events []models.MarketEvent

	blocks := doc.Find(".alert-item, .listing-alert, table tr")
	blocks.Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}

		typ, ok := classifyEvent(text)
		if !ok {
			return
		}

		addr := extractAddress(text)
		if addr == "" {
			// some templates put the address in its own cell/link
			addr = extractAddress(sel.Find("a").Text())
		}

		price, previous := extractPrices(text)

		event := models.MarketEvent{
			Address:       addr,
			Type:          typ,
			Price:         price,
			PricePrevious: previous,
			Beds:          extractCount(bedsRegex, text),
			Baths:         extractCount(bathsRegex, text),
			Cars:          extractCount(carsRegex, text),
			PropertyType:  extractPropertyType(text),
			Agency:        strings.TrimSpace(sel.Find(".agency, .agent-name").Text()),
			Source:        p.Source(),
			EventDate:     now,
			DetectedAt:    now,
			Status:        models.EventStatusActive,
		}
		events = append(events, event)
	})

	return dedupeParsed(events), nil
}

func extractPropertyType(text string) string {
	t := strings.ToLower(text)
	for _, kind := range []string{"townhouse", "duplex", "semi", "villa", "apartment", "unit", "studio", "house"} {
		if strings.Contains(t, kind) {
			return kind
		}
	}
	return ""
}

// dedupeParsed drops repeated (address, type) blocks within one payload;
// nested table markup often matches both a row and its wrapper.
func dedupeParsed(events []models.MarketEvent) []models.MarketEvent {
	seen := make(map[string]bool, len(events))
	out := events[:0]
	for _, e := range events {
		key := strings.ToUpper(e.Address) + "|" + string(e.Type)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
