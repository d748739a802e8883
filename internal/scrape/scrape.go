// Package scrape pulls vehicle facts out of dealer inventory pages.
// Every field is best effort; an empty string means nothing was found.
package scrape

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Record is what a vehicle detail page yielded.
type Record struct {
	Title  string `json:"title"`
	Stock  string `json:"stock"`
	Miles  string `json:"miles"`
	Dealer string `json:"dealer"`
}

var (
	titleSelectors = []string{
		"h1.vehicle-title", ".vehicle-title", ".vehicle-name",
		`[data-testid="vehicleTitle"]`, ".listing-title",
		".vdp-vehicle-title", ".inventory-title", "h1", ".vehicle-header h1",
		".inventory-title h1", ".vdp-title", ".detail-title", ".listing-title h1",
		".vehicle-details h1", ".title h1",
	}
	dealerSelectors = []string{
		".dealer-name", ".dealership", `[data-testid="dealerName"]`,
		`meta[property="og:site_name"]`, ".vdp-dealer-name",
		".dealer-info h2", ".dealer-info h1", ".header-dealer-name",
		".site-header .logo", ".dealership-name",
	}
	stockSelectors = []string{
		".vdp-info-block__info-item-description", ".optStock", ".dws-vehicle-fields-label",
		".stock-number", ".stockNumber", ".stock", ".vin-stock",
		".stockNum", ".stock-num", ".vehicle-stock",
	}
	milesSelectors = []string{
		".vdp-header-bar__mileage.font-primary", ".optMileage", ".mileage", ".odometer",
		".dws-vehicle-fields-label", ".basic-info-item__value", ".vehicle-miles",
		".miles", ".odometer-reading", ".mileage-display", ".t-value",
	}

	yearMake = regexp.MustCompile(`(?i)\b(20\d{2}|19\d{2})\s+(FORD|CHEVROLET|HONDA|TOYOTA|BMW|AUDI|JEEP|RAM|DODGE|CADILLAC|KIA|HYUNDAI|SUBARU|VOLKSWAGEN|MAZDA|VOLVO|BUICK|GMC|LINCOLN|NISSAN|MITSUBISHI|FIAT|JAGUAR|LAND ROVER)\b`)
	nonDigit     = regexp.MustCompile(`[^0-9]`)
	nonStockChar = regexp.MustCompile(`[^0-9A-Z]`)
	stockToken   = regexp.MustCompile(`[A-Z0-9]+`)
	mileage      = regexp.MustCompile(`(?i)([\d,]+)\s*(?:mi|miles|odometer|mileage)?`)
)

const (
	minStockLen = 5
	maxStockLen = 8
)

// Extract reads an HTML document. pageURL feeds the host-name dealer fallback
// and may be empty.
func Extract(doc io.Reader, pageURL string) Record {
	d, err := goquery.NewDocumentFromReader(doc)
	if err != nil {
		return Record{Dealer: dealerFromHost(pageURL)}
	}
	return Record{
		Title:  extractTitle(d),
		Stock:  extractStock(d),
		Miles:  extractMiles(d),
		Dealer: extractDealer(d, pageURL),
	}
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func extractTitle(d *goquery.Document) string {
	for _, sel := range titleSelectors {
		text := clean(d.Find(sel).First().Text())
		if len(text) > 3 {
			return strings.ToUpper(text)
		}
	}

	// the innermost matching element carries the shortest text
	best := ""
	d.Find("h1, h2, h3, div, p, span").Each(func(_ int, s *goquery.Selection) {
		text := clean(s.Text())
		if !yearMake.MatchString(text) {
			return
		}
		if best == "" || len(text) < len(best) {
			best = text
		}
	})
	return strings.ToUpper(best)
}

func extractDealer(d *goquery.Document, pageURL string) string {
	for _, sel := range dealerSelectors {
		s := d.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		var content string
		if strings.HasPrefix(sel, "meta") {
			content, _ = s.Attr("content")
		} else {
			content = s.Text()
		}
		if content = clean(content); content != "" {
			return strings.ToUpper(content)
		}
	}

	title := d.Find("title").First().Text()
	if strings.Contains(title, " | ") {
		parts := strings.Split(title, " | ")
		if last := clean(parts[len(parts)-1]); last != "" {
			return strings.ToUpper(last)
		}
	}

	return dealerFromHost(pageURL)
}

func dealerFromHost(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.Replace(u.Hostname(), "www.", "", 1)
	host = strings.Replace(host, ".com", "", 1)
	return strings.ToUpper(clean(strings.ReplaceAll(host, ".", " ")))
}

func validStock(s string) bool {
	return len(s) >= minStockLen && len(s) <= maxStockLen
}

// extractStock walks every selector; the last acceptable value wins.
func extractStock(d *goquery.Document) string {
	stock := ""
	for _, sel := range stockSelectors {
		d.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				return
			}
			switch {
			case sel == ".optStock":
				if digits := nonDigit.ReplaceAllString(text, ""); validStock(digits) {
					stock = digits
				}
			case sel == ".dws-vehicle-fields-label" && strings.Contains(text, "Stock No."):
				value := s.Parent().Find(".dws-vehicle-fields-value").First()
				if value.Length() == 0 {
					return
				}
				if v := nonStockChar.ReplaceAllString(strings.TrimSpace(value.Text()), ""); validStock(v) {
					stock = v
				}
			default:
				for _, m := range stockToken.FindAllString(text, -1) {
					if validStock(m) {
						stock = m
					}
				}
			}
		})
	}
	return stock
}

// extractMiles walks every selector; the last value found wins.
func extractMiles(d *goquery.Document) string {
	miles := ""
	for _, sel := range milesSelectors {
		d.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				return
			}
			switch {
			case sel == ".optMileage":
				miles = nonDigit.ReplaceAllString(text, "")
			case sel == ".dws-vehicle-fields-label" && strings.Contains(text, "Mileage"):
				value := s.Parent().Find(".dws-vehicle-fields-value").First()
				if value.Length() == 0 {
					return
				}
				miles = strings.ReplaceAll(strings.TrimSpace(value.Text()), ",", "")
			default:
				m := mileage.FindStringSubmatch(text)
				if m == nil {
					return
				}
				if v := strings.TrimSpace(strings.ReplaceAll(m[1], ",", "")); v != "" {
					miles = v
				}
			}
		})
	}
	return miles
}
