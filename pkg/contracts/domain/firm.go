package domain

import (
	"math"
	"strconv"
)

// Canonical column names for the firm-record schema. Raw source headers are
// mapped onto these by the schema normalizer; everything downstream (filters,
// bases, imputation, regression formulas) refers to columns by these names.
const (
	FieldUPEName      = "upe_name"
	FieldJurisdiction = "jurisdiction"
	FieldSector       = "sector"
	FieldYear         = "year"

	FieldProfitBeforeTax = "profit_before_tax"
	FieldTaxAccrued      = "tax_accrued"
	FieldTaxPaid         = "tax_paid"
	FieldEmployees       = "employees"
	FieldTangibleAssets  = "tangible_assets"
	FieldRelatedRevenues = "related_revenues"
	FieldTotalRevenues   = "total_revenues"
)

// NumericFields returns the canonical financial columns in schema order.
func NumericFields() []string {
	return []string{
		FieldProfitBeforeTax,
		FieldTaxAccrued,
		FieldTaxPaid,
		FieldEmployees,
		FieldTangibleAssets,
		FieldRelatedRevenues,
		FieldTotalRevenues,
	}
}

// TextFields returns the canonical identifying columns in schema order.
func TextFields() []string {
	return []string{
		FieldUPEName,
		FieldJurisdiction,
		FieldSector,
		FieldYear,
	}
}

// Value is a nullable financial figure. A FirmRecord field is either a finite
// real number (Valid) or explicitly absent — never a non-numeric string and
// never NaN/Inf once normalization has run.
type Value struct {
	Float64 float64 `json:"float64"`
	Valid   bool    `json:"valid"`
}

// Num returns a present Value. Non-finite inputs collapse to Absent so the
// finiteness invariant holds at construction time.
func Num(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{Float64: f, Valid: true}
}

// Absent returns the explicit-absent marker.
func Absent() Value {
	return Value{}
}

// Missing reports whether the value is absent.
func (v Value) Missing() bool {
	return !v.Valid
}

// Positive reports whether the value is present and strictly positive.
func (v Value) Positive() bool {
	return v.Valid && v.Float64 > 0
}

// Or returns the value when present, otherwise the fallback.
func (v Value) Or(fallback float64) float64 {
	if v.Valid {
		return v.Float64
	}
	return fallback
}

// String renders the value for tabular output: the number when present, an
// empty cell when absent.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

// FirmRecord is one reporting row of a country-by-country tax report: one
// ultimate parent entity, one partner jurisdiction, one period.
type FirmRecord struct {
	UPEName      string `json:"upe_name,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Sector       string `json:"sector,omitempty"`
	Year         string `json:"year,omitempty"`

	ProfitBeforeTax Value `json:"profit_before_tax"`
	TaxAccrued      Value `json:"tax_accrued"`
	TaxPaid         Value `json:"tax_paid"`
	Employees       Value `json:"employees"`
	TangibleAssets  Value `json:"tangible_assets"`
	RelatedRevenues Value `json:"related_revenues"`
	TotalRevenues   Value `json:"total_revenues"`
}

// Numeric returns the named financial column. The second return is false for
// names outside the canonical numeric set.
func (r *FirmRecord) Numeric(field string) (Value, bool) {
	switch field {
	case FieldProfitBeforeTax:
		return r.ProfitBeforeTax, true
	case FieldTaxAccrued:
		return r.TaxAccrued, true
	case FieldTaxPaid:
		return r.TaxPaid, true
	case FieldEmployees:
		return r.Employees, true
	case FieldTangibleAssets:
		return r.TangibleAssets, true
	case FieldRelatedRevenues:
		return r.RelatedRevenues, true
	case FieldTotalRevenues:
		return r.TotalRevenues, true
	}
	return Value{}, false
}

// SetNumeric assigns the named financial column and reports whether the name
// belongs to the canonical numeric set.
func (r *FirmRecord) SetNumeric(field string, v Value) bool {
	switch field {
	case FieldProfitBeforeTax:
		r.ProfitBeforeTax = v
	case FieldTaxAccrued:
		r.TaxAccrued = v
	case FieldTaxPaid:
		r.TaxPaid = v
	case FieldEmployees:
		r.Employees = v
	case FieldTangibleAssets:
		r.TangibleAssets = v
	case FieldRelatedRevenues:
		r.RelatedRevenues = v
	case FieldTotalRevenues:
		r.TotalRevenues = v
	default:
		return false
	}
	return true
}

// Text returns the named identifying column.
func (r *FirmRecord) Text(field string) (string, bool) {
	switch field {
	case FieldUPEName:
		return r.UPEName, true
	case FieldJurisdiction:
		return r.Jurisdiction, true
	case FieldSector:
		return r.Sector, true
	case FieldYear:
		return r.Year, true
	}
	return "", false
}

// SetText assigns the named identifying column.
func (r *FirmRecord) SetText(field, s string) bool {
	switch field {
	case FieldUPEName:
		r.UPEName = s
	case FieldJurisdiction:
		r.Jurisdiction = s
	case FieldSector:
		r.Sector = s
	case FieldYear:
		r.Year = s
	default:
		return false
	}
	return true
}

// IsNumericField reports whether name is one of the canonical financial
// columns.
func IsNumericField(name string) bool {
	switch name {
	case FieldProfitBeforeTax, FieldTaxAccrued, FieldTaxPaid,
		FieldEmployees, FieldTangibleAssets, FieldRelatedRevenues,
		FieldTotalRevenues:
		return true
	}
	return false
}
