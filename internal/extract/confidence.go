package extract

import (
	"github.com/shopspring/decimal"

	"github.com/iexcalibur/invoice-extractor/internal/models"
)

// Breakdown itemizes a confidence score so logs and API responses can show
// what an extraction earned and lost.
type Breakdown struct {
	FieldPresence   float64 `json:"field_presence"`
	LineItemQuality float64 `json:"line_item_quality"`
	LineItemBonus   float64 `json:"line_item_bonus"`
	Consistency     float64 `json:"consistency"`
}

// Total sums the components, capped at 1.0.
func (b Breakdown) Total() float64 {
	t := b.FieldPresence + b.LineItemQuality + b.LineItemBonus + b.Consistency
	if t > 1.0 {
		t = 1.0
	}
	return t
}

// Score rates an extraction on three axes: presence of the required fields,
// quality of the line items, and arithmetic consistency between the item sum
// and the declared total. It never raises an error; a sparse record simply
// scores low.
//
//	vendor / invoice number / date / total present: 0.10 each
//	valid line items: 0.30 scaled by count, full credit at 5
//	three or more valid items: 0.10 bonus
//	item sum vs. total variance <5% / <15% / <30% / worse: 0.20 / 0.15 / 0.10 / 0.05
func Score(rec *models.ExtractionRecord) Breakdown {
	var b Breakdown

	if rec.VendorName != "" {
		b.FieldPresence += 0.10
	}
	if rec.InvoiceNumber != "" {
		b.FieldPresence += 0.10
	}
	if rec.Date != "" {
		b.FieldPresence += 0.10
	}
	if rec.TotalAmount.IsPositive() {
		b.FieldPresence += 0.10
	}

	valid := 0
	sum := decimal.Zero
	for _, it := range rec.LineItems {
		if it.Complete() {
			valid++
			sum = sum.Add(it.LineTotal)
		}
	}
	if valid > 0 {
		q := float64(valid) / 5.0 * 0.30
		if q > 0.30 {
			q = 0.30
		}
		b.LineItemQuality = q
		if valid >= 3 {
			b.LineItemBonus = 0.10
		}
	}

	// Consistency is only judged when both sides of the comparison exist.
	// Even a wildly inconsistent total earns a floor credit: items plus a
	// total is still more signal than no items at all.
	if valid > 0 && rec.TotalAmount.IsPositive() {
		variance, _ := sum.Sub(rec.TotalAmount).Abs().Div(rec.TotalAmount).Float64()
		switch {
		case variance < 0.05:
			b.Consistency = 0.20
		case variance < 0.15:
			b.Consistency = 0.15
		case variance < 0.30:
			b.Consistency = 0.10
		default:
			b.Consistency = 0.05
		}
	}

	return b
}
