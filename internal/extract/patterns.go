package extract

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/iexcalibur/invoice-extractor/internal/models"
)

// matcher is one pattern in a fallback chain. Chains are ordered from most to
// least specific and stop at the first hit, so a generic pattern can never
// shadow a label-anchored one.
type matcher struct {
	name string
	re   *regexp.Regexp
}

// dateMatcher captures month/day/year groups starting at groupOffset. The
// table-format pattern captures the ORDER DATE first, so its offset skips
// those groups and reads the INVOICE DATE.
type dateMatcher struct {
	name        string
	re          *regexp.Regexp
	groupOffset int
}

// profile is the per-vendor extraction strategy: where fields are anchored
// and what the table columns mean. Column semantics are named per vendor
// (Pacific's quantity is its SHIPPED column, not ORDERED) rather than
// assumed by position.
type profile struct {
	invoiceMatchers []matcher
	dateMatchers    []dateMatcher
	findTotal       func(text string) (string, bool)
	headerRes       []*regexp.Regexp
	tableEndRe      *regexp.Regexp
	parseItems      func(table string) []models.LineItem
	auxFields       func(text string, rec *models.ExtractionRecord)
}

// tableWindow bounds the table region when no trailing marker is found.
// Large enough to keep the last line item of a long invoice.
const tableWindow = 3000

var pacificProfile = profile{
	invoiceMatchers: []matcher{
		// Label-anchored; the number may land on the next OCR line.
		{"label", regexp.MustCompile(`(?i)INVOICE[\s\n]+(\d{6})`)},
		// Bare prefix anywhere, last resort.
		{"bare-prefix", regexp.MustCompile(`\b(37\d{4})\b`)},
	},
	dateMatchers: []dateMatcher{
		// ORDER DATE |INVOICE DATE header with both dates on the next line;
		// the second date (after the pipe) is the invoice date.
		{"table-format", regexp.MustCompile(`(?i)ORDER\s+DATE\s*\|\s*INVOICE\s+DATE.*?\n.*?(\d{2})/(\d{2})/(\d{4})\s*\|\s*(\d{2})/(\d{2})/(\d{4})`), 3},
		{"label", regexp.MustCompile(`(?i)INVOICE\s+DATE[\s\n|]+(\d{2})/(\d{2})/(\d{4})`), 0},
		{"after-pipe", regexp.MustCompile(`(?i)INVOICE\s+DATE.*?\n.*?\|\s*(\d{2})/(\d{2})/(\d{4})`), 0},
		// Bare date anywhere. Documented last resort: this can pick up the
		// ORDER DATE instead of the invoice date.
		{"bare-date", regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})`), 0},
	},
	// Label-anchored only. Sub Total is never substituted: Pacific invoices
	// carry both and the subtotal is a pre-tax figure.
	findTotal: func(text string) (string, bool) {
		if m := pacificTotalRe.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
		return "", false
	},
	headerRes: []*regexp.Regexp{
		regexp.MustCompile(`(?i)PRODUCT\s*ID[\s\n]+ORDERED[\s\n]+SHIPPED`),
		regexp.MustCompile(`(?i)PRODUCT\s*ID.*?DESCRIPTION`),
	},
	tableEndRe: regexp.MustCompile(`(?i)Total\s+Weight|Invoice\s+Total|Sub\s+Total`),
	parseItems: parsePacificItems,
	auxFields: func(text string, rec *models.ExtractionRecord) {
		if m := pacificOrderNoRe.FindStringSubmatch(text); m != nil {
			rec.OrderNumber = m[1]
		}
		if m := pacificCustIDRe.FindStringSubmatch(text); m != nil {
			rec.CustomerID = m[1]
		}
	},
}

var franksProfile = profile{
	invoiceMatchers: []matcher{
		{"label", regexp.MustCompile(`(?i)Invoice\s*#?\s*:?\s*(2006\d{4})`)},
		{"label-number", regexp.MustCompile(`(?i)Invoice\s*Number\s*:?\s*(2006\d{4})`)},
		{"inv-abbrev", regexp.MustCompile(`(?i)INV\s*#?\s*:?\s*(2006\d{4})`)},
	},
	dateMatchers: []dateMatcher{
		{"label", regexp.MustCompile(`(?i)Date\s*:?\s*(\d{1,2})/(\d{1,2})/(\d{4})`), 0},
		{"bare-date", regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`), 0},
	},
	findTotal: franksTotal,
	headerRes: []*regexp.Regexp{
		regexp.MustCompile(`(?i)Quantity\s+Description\s+Price\s+Each\s+Amount`),
	},
	tableEndRe: regexp.MustCompile(`(?i)FUEL\s+SURCHARGE|Sales\s+Tax|Total`),
	parseItems: parseFranksItems,
	auxFields: func(text string, rec *models.ExtractionRecord) {
		if m := franksAccountRe.FindStringSubmatch(text); m != nil {
			rec.AccountNumber = m[1]
		}
	},
}

var (
	pacificTotalRe   = regexp.MustCompile(`(?i)INVOICE\s+TOTAL[^\d]*(\d{1,3}(?:,\d{3})?\.\d{2})`)
	pacificOrderNoRe = regexp.MustCompile(`(?i)ORDER\s+NO\s*:?\s*(\d+)`)
	pacificCustIDRe  = regexp.MustCompile(`(?i)CUST\s+ID\s*:?\s*(\d+)`)
	franksAccountRe  = regexp.MustCompile(`(?i)Account\s*#?\s*:?\s*(\d{4})`)

	// All "Total"-labeled amounts, including Sub/Grand variants; franksTotal
	// filters the subtotal hits out rather than risking a pre-tax figure.
	franksTotalRe = regexp.MustCompile(`(?i)((?:Sub[\s-]*)?(?:Grand\s+)?Total)\s*:?\s*\$?\s*([\d,]+\.\d{2})`)
)

// franksTotal returns the first amount labeled Total that is not a Sub-Total.
func franksTotal(text string) (string, bool) {
	for _, m := range franksTotalRe.FindAllStringSubmatch(text, -1) {
		if subRe.MatchString(m[1]) {
			continue
		}
		return m[2], true
	}
	return "", false
}

var subRe = regexp.MustCompile(`(?i)^sub`)

// profiles maps registry vendor IDs to their extraction strategies. Only
// vendors listed here are served by the pattern tier.
var profiles = map[string]*profile{
	"pacific_food": &pacificProfile,
	"franks":       &franksProfile,
}

// parseMoney converts an OCR amount like "1,234.56" to a decimal.
func parseMoney(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(stripCommas(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func stripCommas(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ',' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
