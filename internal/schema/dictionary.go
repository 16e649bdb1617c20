// Package schema maps published country-by-country tables onto the
// canonical record layout. Source files vary in column naming between
// reporting regimes, so headings are resolved through a variant
// dictionary before any values are read.
package schema

import (
	"strings"

	"cbcrcli/pkg/contracts/domain"
)

// headerVariants maps column headings seen in published CbCR tables to
// canonical field names. Matching is case-insensitive after trimming, and
// canonical names always resolve to themselves.
var headerVariants = map[string]string{
	// Financial Data
	"Profit (Loss) before Income Tax":                      domain.FieldProfitBeforeTax,
	"Profit Before Tax":                                    domain.FieldProfitBeforeTax,
	"Income Tax Accrued":                                   domain.FieldTaxAccrued,
	"Income Tax Paid":                                      domain.FieldTaxPaid,
	"Number of Employees":                                  domain.FieldEmployees,
	"Tangible Assets other than Cash and Cash Equivalents": domain.FieldTangibleAssets,
	"Tangible Assets":                                      domain.FieldTangibleAssets,
	"Related Party Revenues":                               domain.FieldRelatedRevenues,
	"Total Revenues":                                       domain.FieldTotalRevenues,

	// Classification Data
	"Ultimate Parent Entity": domain.FieldUPEName,
	"UPE Name":               domain.FieldUPEName,
	"Jur Name":               domain.FieldJurisdiction,
	"Partner Jurisdiction":   domain.FieldJurisdiction,
	"Sector":                 domain.FieldSector,
	"Main Business Activity": domain.FieldSector,
	"Fiscal Year":            domain.FieldYear,
	"Year":                   domain.FieldYear,
}

var headerIndex = buildHeaderIndex()

func buildHeaderIndex() map[string]string {
	idx := make(map[string]string, 2*len(headerVariants))
	for variant, field := range headerVariants {
		idx[strings.ToLower(variant)] = field
	}
	for _, field := range domain.TextFields() {
		idx[field] = field
	}
	for _, field := range domain.NumericFields() {
		idx[field] = field
	}
	return idx
}

// Resolve maps a raw column heading to its canonical field name
func Resolve(header string) (string, bool) {
	field, ok := headerIndex[strings.ToLower(strings.TrimSpace(header))]
	return field, ok
}

// HeaderMap records the column position of each canonical field found in a
// source header row.
type HeaderMap map[string]int

// Has reports whether the canonical field was found
func (m HeaderMap) Has(field string) bool {
	_, ok := m[field]
	return ok
}

// Missing returns the subset of fields not present in the header
func (m HeaderMap) Missing(fields ...string) []string {
	var missing []string
	for _, f := range fields {
		if !m.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// MapHeaders resolves a raw header row into column positions. When several
// headings resolve to the same field the first one wins. The second return
// lists headings the dictionary does not know.
func MapHeaders(headers []string) (HeaderMap, []string) {
	columns := make(HeaderMap)
	var unmapped []string

	for i, h := range headers {
		trimmed := strings.TrimSpace(h)
		if trimmed == "" {
			continue
		}
		field, ok := Resolve(trimmed)
		if !ok {
			unmapped = append(unmapped, trimmed)
			continue
		}
		if _, exists := columns[field]; !exists {
			columns[field] = i
		}
	}

	return columns, unmapped
}
