package review

import (
	"math"

	"github.com/shopspring/decimal"

	"pipelinereview/internal/datastore"
)

type scaledColumn struct {
	name    string
	source  string
	divisor float64
	places  int32
}

var scaledColumns = []scaledColumn{
	{name: ColMarketCapB, source: ColMarketCap, divisor: 1e9, places: 2},
	{name: ColEVB, source: ColEV, divisor: 1e9, places: 2},
	{name: ColTotalCashM, source: ColTotalCash, divisor: 1e6, places: 0},
	{name: ColTotalDebtM, source: ColTotalDebt, divisor: 1e6, places: 0},
}

// Scale divides n and rounds it half away from zero to places decimals.
// Invalid input stays invalid.
func Scale(n datastore.Number, divisor float64, places int32) datastore.Number {
	return n.Map(func(v float64) float64 {
		v /= divisor
		if math.IsInf(v, 0) {
			return v
		}
		rounded, _ := decimal.NewFromFloat(v).Round(places).Float64()
		return rounded
	})
}

// WithDisplayColumns returns a copy of summary with the scaled display columns
// added. Source columns are left untouched. A display column whose source is
// missing is all invalid.
func WithDisplayColumns(summary *datastore.Table) *datastore.Table {
	out := summary
	for _, sc := range scaledColumns {
		sc := sc
		src := out
		out = src.WithColumn(sc.name, true, func(i int) datastore.Cell {
			n := Scale(src.Number(i, sc.source), sc.divisor, sc.places)
			if !n.Valid || math.IsInf(n.Value, 0) {
				return datastore.NumberCell(n)
			}
			return datastore.Cell{
				Text: decimal.NewFromFloat(n.Value).StringFixed(sc.places),
				Num:  n,
			}
		})
	}
	return out
}

// FormatCompanies is the company table as displayed: scaled columns added and
// projected onto CompanyDisplayColumns.
func FormatCompanies(summary *datastore.Table) *datastore.Table {
	return WithDisplayColumns(summary).Select(CompanyDisplayColumns...)
}

// FormatTrials projects a TrialsFor result onto TrialDisplayColumns.
func FormatTrials(trials *datastore.Table) *datastore.Table {
	return trials.Select(TrialDisplayColumns...)
}
