package review

import (
	"fmt"

	"pipelinereview/internal/datastore"
)

// Summary holds the headline metrics of a filtered view.
type Summary struct {
	Rows            int              `json:"rows"`
	UniqueCompanies int              `json:"unique_companies"`
	AvgMarketCapB   datastore.Number `json:"avg_market_cap_b"`
}

// Summarize counts rows and distinct symbols and averages the valid market
// caps in billions.
func Summarize(filtered *datastore.Table) Summary {
	s := Summary{Rows: filtered.Len()}

	symbols := make(map[string]struct{})
	var total float64
	var n int
	for i := 0; i < filtered.Len(); i++ {
		if sym, ok := filtered.Text(i, ColSymbol); ok {
			symbols[sym] = struct{}{}
		}
		if mc := filtered.Number(i, ColMarketCap); mc.Valid {
			total += mc.Value
			n++
		}
	}
	s.UniqueCompanies = len(symbols)
	if n > 0 {
		s.AvgMarketCapB = datastore.Num(total / float64(n) / billion)
	}
	return s
}

// AvgMarketCapLabel renders the average as "$2.50B", or "—" when unknown.
func (s Summary) AvgMarketCapLabel() string {
	if !s.AvgMarketCapB.Valid {
		return "—"
	}
	return fmt.Sprintf("$%.2fB", s.AvgMarketCapB.Value)
}
