package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iexcalibur/invoice-extractor/internal/models"
)

// Row-level patterns for Frank's "Quantity Description Price-Each Amount"
// layout, ordered strictest first. OCR sometimes flattens the column gaps to
// single spaces or tabs, so the later patterns loosen the separators.
var franksRowRes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*(\d+)\s+([A-Z][^\d\n]{3,}?)\s+(\d+\.\d{2})\s+(\d+\.\d{2})\s*$`),
	regexp.MustCompile(`(\d+)\s+([A-Z][^#\n]+?#?)\s+(\d+\.\d{2})\s+(\d+\.\d{2})`),
	regexp.MustCompile(`(\d+)\t+([^\t\n]+)\t+(\d+\.\d{2})\t+(\d+\.\d{2})`),
}

// Charge rows that live inside the table region but are not produce items.
var franksSkipRe = regexp.MustCompile(`(?i)FUEL\s+SURCHARGE|SALES\s+TAX|SUB\s*TOTAL|DISCOUNT|DELIVERY`)

func parseFranksItems(table string) []models.LineItem {
	var items []models.LineItem
	seen := make(map[string]bool)

	for _, re := range franksRowRes {
		for _, m := range re.FindAllStringSubmatch(table, -1) {
			desc := strings.TrimSpace(m[2])
			if desc == "" || franksSkipRe.MatchString(desc) {
				continue
			}
			qty, err := decimal.NewFromString(m[1])
			price, pok := parseMoney(m[3])
			amount, aok := parseMoney(m[4])
			if err != nil || !pok || !aok {
				continue
			}
			key := dedupeKey(desc, m[1], m[3])
			if seen[key] {
				continue
			}
			seen[key] = true

			items = append(items, models.LineItem{
				Description: desc,
				Quantity:    qty,
				UnitPrice:   price,
				LineTotal:   amount,
				Position:    len(items) + 1,
			})
		}
		if len(items) > 0 {
			break
		}
	}
	return items
}

// Pacific rows start with a 5-6 digit product ID followed by the ORDERED and
// SHIPPED quantities. SHIPPED is what was billed, so it is the quantity; the
// description and the price/amount pair follow on the same line.
var (
	pacificRowRe  = regexp.MustCompile(`^(\d{5,6})\s+([\d.]+)\s+([\d.]+)\s+(.*)$`)
	pacificDescRe = regexp.MustCompile(`[/\s|]*([A-Za-z][A-Za-z\s'&-]+)`)
	numberRe      = regexp.MustCompile(`[\d,]+\.\d{2}`)
)

func parsePacificItems(table string) []models.LineItem {
	var items []models.LineItem
	seen := make(map[string]bool)

	for _, line := range strings.Split(table, "\n") {
		m := pacificRowRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		shipped, err := decimal.NewFromString(m[3])
		if err != nil || shipped.IsZero() {
			continue
		}
		rest := m[4]

		var desc string
		if dm := pacificDescRe.FindStringSubmatch(rest); dm != nil {
			desc = strings.TrimSpace(dm[1])
		}
		if desc == "" {
			continue
		}

		nums := numberRe.FindAllString(rest, -1)
		if len(nums) < 2 {
			continue
		}
		price, pok := parseMoney(nums[len(nums)-2])
		amount, aok := parseMoney(nums[len(nums)-1])
		if !pok || !aok {
			continue
		}
		// Weight-priced rows make qty*price diverge from the amount; a row
		// off by more than half its expected value is OCR garbage, not data.
		if !rowConsistent(shipped, price, amount) {
			continue
		}

		key := dedupeKey(desc, m[3], nums[len(nums)-2])
		if seen[key] {
			continue
		}
		seen[key] = true

		items = append(items, models.LineItem{
			Description: desc,
			Quantity:    shipped,
			UnitPrice:   price,
			LineTotal:   amount,
			Position:    len(items) + 1,
			ProductID:   m[1],
		})
	}
	return items
}

// rowConsistent accepts a row when quantity*price is within 50% of the
// stated amount.
func rowConsistent(qty, price, amount decimal.Decimal) bool {
	expected := qty.Mul(price)
	if expected.IsZero() {
		return false
	}
	diff := expected.Sub(amount).Abs()
	return diff.Div(expected).LessThanOrEqual(decimal.NewFromFloat(0.5))
}

func dedupeKey(desc, qty, price string) string {
	if len(desc) > 50 {
		desc = desc[:50]
	}
	return fmt.Sprintf("%s|%s|%s", desc, qty, price)
}
