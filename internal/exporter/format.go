package exporter

import (
	"fmt"

	"cbcrcli/pkg/contracts/domain"
)

// formatFloat renders a statistic for CSV output with four decimal places,
// matching the precision of the text report tables.
func formatFloat(f float64) string {
	return fmt.Sprintf("%.4f", f)
}

// formatInt renders an integer count for CSV output
func formatInt(i int) string {
	return fmt.Sprintf("%d", i)
}

// formatBool renders a flag for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// formatValue renders a nullable financial figure: full precision when
// present, an empty cell when absent.
func formatValue(v domain.Value) string {
	return v.String()
}
