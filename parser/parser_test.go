package parser

import (
	"testing"

	"farm_prospector/models"
)

const agencyAlertHTML = `
<html><body>
<table>
<tr class="alert-item">
  <td>Just Listed</td>
  <td><a href="#">23 Wallace Street, Willoughby</a></td>
  <td>$2,350,000</td>
  <td>4 bed 2 bath 2 car House</td>
  <td class="agency">Ray White Willoughby</td>
</tr>
<tr class="alert-item">
  <td>SOLD</td>
  <td>26/166 Mowbray Road, Willoughby</td>
  <td>$1,150,000</td>
  <td>2 bed 1 bath Unit</td>
</tr>
<tr class="alert-item">
  <td>Price Update: was $1,900,000 now $1,790,000</td>
  <td>8 Tyneside Avenue, Willoughby</td>
  <td>3 bed 1 bath house</td>
</tr>
<tr><td>Open homes this Saturday</td></tr>
</table>
</body></html>`

func TestAgencyAlertParser(t *testing.T) {
	p := &AgencyAlertParser{}
	events, err := p.Parse(agencyAlertHTML)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	listing := events[0]
	if listing.Type != models.EventListing {
		t.Fatalf("expected listing, got %s", listing.Type)
	}
	if listing.Address != "23 Wallace Street, Willoughby" {
		t.Fatalf("unexpected address %q", listing.Address)
	}
	if listing.Price != "$2,350,000" {
		t.Fatalf("unexpected price %q", listing.Price)
	}
	if listing.Beds != 4 || listing.Baths != 2 || listing.Cars != 2 {
		t.Fatalf("unexpected counts %d/%d/%d", listing.Beds, listing.Baths, listing.Cars)
	}
	if listing.PropertyType != "house" {
		t.Fatalf("unexpected property type %q", listing.PropertyType)
	}

	sold := events[1]
	if sold.Type != models.EventSold {
		t.Fatalf("expected sold, got %s", sold.Type)
	}
	if sold.Address != "26/166 Mowbray Road, Willoughby" {
		t.Fatalf("unexpected address %q", sold.Address)
	}

	change := events[2]
	if change.Type != models.EventPriceChange {
		t.Fatalf("expected price_change, got %s", change.Type)
	}
	if change.Price != "$1,790,000" || change.PricePrevious != "$1,900,000" {
		t.Fatalf("unexpected prices %q / %q", change.Price, change.PricePrevious)
	}
}

func TestPortalDigestParser(t *testing.T) {
	raw := `# Willoughby digest
SOLD | 23 Wallace Street, Willoughby | $2,150,000 | 4 bed 2 bath 2 car | House | Ray White
Just Listed | 41 Tyneside Avenue, Willoughby | $1,950,000 | 3 bed 1 bath | House
For Lease | 5/12 Penshurst Street, Willoughby | $750 | 2 bed 1 bath | Unit
auction results attached
`
	p := &PortalDigestParser{}
	events, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != models.EventSold || events[0].Agency != "Ray White" {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].Type != models.EventListing || events[1].Beds != 3 {
		t.Fatalf("unexpected second event %+v", events[1])
	}
	if events[2].Type != models.EventRental || events[2].PropertyType != "Unit" {
		t.Fatalf("unexpected third event %+v", events[2])
	}
}

func TestPortalDigestParser_SkipsUnclassifiable(t *testing.T) {
	p := &PortalDigestParser{}
	events, err := p.Parse("hello world\nno event here | 1 Fake St\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected 0 events, got %d", len(events))
	}
}

func TestForSource(t *testing.T) {
	if _, ok := ForSource("agency_alert"); !ok {
		t.Fatal("agency_alert parser not registered")
	}
	if _, ok := ForSource("portal_digest"); !ok {
		t.Fatal("portal_digest parser not registered")
	}
	if _, ok := ForSource("unknown"); ok {
		t.Fatal("unknown source should not resolve")
	}
}
