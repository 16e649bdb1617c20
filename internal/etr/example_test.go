package etr_test

import (
	"fmt"

	"cbcrcli/internal/etr"
	"cbcrcli/pkg/contracts/domain"
)

func ExampleBuildBase() {
	records := []domain.FirmRecord{
		{ProfitBeforeTax: domain.Num(100), TaxAccrued: domain.Num(10)},
		{ProfitBeforeTax: domain.Num(200), TaxAccrued: domain.Num(50)},
		{ProfitBeforeTax: domain.Num(150), TaxAccrued: domain.Num(90)}, // ETR 0.6, outside the window
		{ProfitBeforeTax: domain.Num(-40), TaxAccrued: domain.Num(5)},  // loss-making
	}

	base := etr.BuildBase(records, domain.FieldTaxAccrued, nil, 0, 0.5, false)
	fmt.Println(base.N())
	// Output: 2
}

func ExampleAnalyzeTurningPoint() {
	result := &etr.RegressionResult{
		Formula: etr.FormulaQuadratic,
		Terms:   []string{etr.TermConst, etr.TermETR, etr.TermETRSq},
		Coefficients: map[string]float64{
			etr.TermConst: 1.0,
			etr.TermETR:   -0.4,
			etr.TermETRSq: 0.8,
		},
	}

	tp, err := etr.AnalyzeTurningPoint(result, 0, 0.499)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(tp.VerdictLine())
	// Output: >> U-TEST: Coeff ETR^2=0.8000, TP=25.0000%, In Range? YES
}
