package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iexcalibur/invoice-extractor/internal/models"
)

// ParseRecord converts a raw model response into an ExtractionRecord. Models
// wrap JSON in markdown fences or chat around it, so the parser strips fences
// and takes the outermost object before unmarshaling. A response with no JSON
// object at all is an error; the caller treats that as a tier failure.
func ParseRecord(response string) (*models.ExtractionRecord, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	cleaned = cleaned[start : end+1]

	// Amounts come back as numbers, quoted numbers, or quoted numbers with
	// thousands separators depending on the model's mood.
	var raw struct {
		VendorName    string      `json:"vendor_name"`
		InvoiceNumber string      `json:"invoice_number"`
		Date          string      `json:"date"`
		TotalAmount   interface{} `json:"total_amount"`
		OrderNumber   string      `json:"order_number"`
		CustomerID    string      `json:"customer_id"`
		AccountNumber string      `json:"account_number"`
		LineItems     []struct {
			Description string      `json:"description"`
			Quantity    interface{} `json:"quantity"`
			UnitPrice   interface{} `json:"unit_price"`
			LineTotal   interface{} `json:"line_total"`
		} `json:"line_items"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}

	rec := &models.ExtractionRecord{
		VendorName:    strings.TrimSpace(raw.VendorName),
		InvoiceNumber: strings.TrimSpace(raw.InvoiceNumber),
		Date:          normalizeDate(raw.Date),
		TotalAmount:   flexDecimal(raw.TotalAmount),
		OrderNumber:   strings.TrimSpace(raw.OrderNumber),
		CustomerID:    strings.TrimSpace(raw.CustomerID),
		AccountNumber: strings.TrimSpace(raw.AccountNumber),
	}

	for i, item := range raw.LineItems {
		desc := strings.TrimSpace(item.Description)
		if desc == "" {
			continue
		}
		rec.LineItems = append(rec.LineItems, models.LineItem{
			Description: desc,
			Quantity:    flexDecimal(item.Quantity),
			UnitPrice:   flexDecimal(item.UnitPrice),
			LineTotal:   flexDecimal(item.LineTotal),
			Position:    i + 1,
		})
	}

	return rec, nil
}

var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"01-02-2006",
}

// normalizeDate coerces whatever date shape the model produced into ISO form,
// or empty when nothing parses.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return ""
	}
	for _, f := range dateFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// flexDecimal parses an amount that may arrive as a JSON number, a string, or
// a string with thousands separators. Unparseable values become zero.
func flexDecimal(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		val = strings.ReplaceAll(strings.TrimSpace(val), ",", "")
		val = strings.TrimPrefix(val, "$")
		if val == "" || strings.EqualFold(val, "null") {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	case json.Number:
		d, err := decimal.NewFromString(string(val))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}
