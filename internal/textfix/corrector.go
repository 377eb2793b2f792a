// Package textfix repairs common OCR misreads in invoice text before any
// pattern matching runs. Fixing the text once benefits every downstream
// regex instead of patching each pattern for each misread.
package textfix

import (
	"regexp"
	"strings"
)

// wordFix is a whole-word substitution from the fixed misread dictionary.
type wordFix struct {
	re    *regexp.Regexp
	right string
}

// Corrector applies deterministic lexical repairs to OCR text. It is a pure
// function of its input plus a fixed internal table, and is idempotent:
// Correct(Correct(s)) == Correct(s).
type Corrector struct {
	words   []wordFix
	context []contextFix
	idRe    *regexp.Regexp
	amtRe   *regexp.Regexp
}

type contextFix struct {
	re    *regexp.Regexp
	wrong string
	right string
}

// NewCorrector builds a corrector with the known misread table.
func NewCorrector() *Corrector {
	mk := func(wrong string) *regexp.Regexp {
		return regexp.MustCompile(`\b` + regexp.QuoteMeta(wrong) + `\b`)
	}

	words := []wordFix{
		// INVOICE variations
		{mk("INVOKE"), "INVOICE"},
		{mk("lNVOlCE"), "INVOICE"},
		{mk("INV0ICE"), "INVOICE"},
		{mk("INVOlCE"), "INVOICE"},
		// TOTAL variations
		{mk("T0TAL"), "TOTAL"},
		{mk("TOTAl"), "TOTAL"},
		{mk("TOTAI"), "TOTAL"},
		// DATE variations
		{mk("0ATE"), "DATE"},
		{mk("OATE"), "DATE"},
		// NUMBER variations
		{mk("NUMßER"), "NUMBER"},
		{mk("NUMB3R"), "NUMBER"},
		// CUSTOMER variations
		{mk("CUST0MER"), "CUSTOMER"},
		{mk("CUSTOMEß"), "CUSTOMER"},
		// ORDER variations
		{mk("0RDER"), "ORDER"},
		{mk("OROER"), "ORDER"},
		// SHIPPED variations
		{mk("SHlPPED"), "SHIPPED"},
		{mk("SHIPP3D"), "SHIPPED"},
	}

	// Context-sensitive rules only fire next to a disambiguating word, so an
	// unrelated "INVOKE" elsewhere in the text is left alone by this stage.
	context := []contextFix{
		{regexp.MustCompile(`\bINVOKE\s+(?:TOTAL|DATE|#|NO|\d)`), "INVOKE", "INVOICE"},
		{regexp.MustCompile(`(?:INVOICE|SUB|GRAND)\s+T0TAL`), "T0TAL", "TOTAL"},
	}

	return &Corrector{
		words:   words,
		context: context,
		// Letter/digit look-alikes inside an identifier that follows a
		// letter prefix, e.g. "INVO12345" misread as "INVOl2345".
		idRe: regexp.MustCompile(`\b([A-Z]+)([Ol])(\d{5,})\b`),
		// Look-alikes inside a dollar amount, e.g. "$5l9.89".
		amtRe: regexp.MustCompile(`\$\s*[Ol\d,]+\.\d{2}`),
	}
}

// Correct returns text with all known misreads repaired. Empty input is
// returned unchanged.
func (c *Corrector) Correct(text string) string {
	if text == "" {
		return text
	}

	for _, w := range c.words {
		text = w.re.ReplaceAllString(text, w.right)
	}

	for _, cf := range c.context {
		text = cf.re.ReplaceAllStringFunc(text, func(m string) string {
			return strings.Replace(m, cf.wrong, cf.right, 1)
		})
	}

	text = c.idRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := c.idRe.FindStringSubmatch(m)
		mid := strings.NewReplacer("O", "0", "l", "1").Replace(sub[2])
		return sub[1] + mid + sub[3]
	})

	text = c.amtRe.ReplaceAllStringFunc(text, func(m string) string {
		return strings.NewReplacer("l", "1", "O", "0").Replace(m)
	})

	return text
}

// Validate reports whether the key invoice vocabulary is present after
// correction. Used for diagnostics only; extraction does not gate on it.
func (c *Corrector) Validate(text string) map[string]bool {
	checks := map[string]bool{
		"has_invoice_keyword": invoiceWordRe.MatchString(text),
		"has_total_keyword":   totalWordRe.MatchString(text),
		"has_date_keyword":    dateWordRe.MatchString(text),
		"has_dollar_amounts":  dollarRe.MatchString(text),
		"no_invoke_misread":   !strings.Contains(text, "INVOKE"),
	}
	return checks
}

var (
	invoiceWordRe = regexp.MustCompile(`(?i)\bINVOICE\b`)
	totalWordRe   = regexp.MustCompile(`(?i)\bTOTAL\b`)
	dateWordRe    = regexp.MustCompile(`(?i)\bDATE\b`)
	dollarRe      = regexp.MustCompile(`\$\s*[\d,]+\.\d{2}`)
)
