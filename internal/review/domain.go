package review

import (
	"math"
	"sort"

	"pipelinereview/internal/datastore"
)

const billion = 1e9

// Domain is the set of values each filter control can take, derived from the
// loaded summary.
type Domain struct {
	MarketCapMin      float64  `json:"market_cap_min"`
	MarketCapMax      float64  `json:"market_cap_max"`
	MarketCapInputMax float64  `json:"market_cap_input_max"`
	TherapeuticAreas  []string `json:"therapeutic_areas"`
	Phases            []string `json:"phases"`
}

// DeriveDomain computes market-cap bounds in billions, the sorted therapeutic
// areas and the phases ordered by clinical rank. Without any valid market cap
// the bounds are (0, 1).
func DeriveDomain(summary *datastore.Table) Domain {
	d := Domain{
		MarketCapMin:     0,
		MarketCapMax:     1,
		TherapeuticAreas: []string{},
		Phases:           []string{},
	}
	if summary.IsEmpty() {
		d.MarketCapInputMax = d.MarketCapMax * 2
		return d
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	areas := make(map[string]struct{})
	phases := make(map[string]struct{})

	for i := 0; i < summary.Len(); i++ {
		if n := summary.Number(i, ColMarketCap); n.Valid && !math.IsInf(n.Value, 0) {
			v := n.Value / billion
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if a, ok := summary.Text(i, ColTherapeuticArea); ok {
			areas[a] = struct{}{}
		}
		if p, ok := summary.Text(i, ColHighestPhase); ok {
			phases[p] = struct{}{}
		}
	}

	if !math.IsInf(lo, 1) {
		d.MarketCapMin, d.MarketCapMax = lo, hi
	}
	d.MarketCapInputMax = d.MarketCapMax * 2

	for a := range areas {
		d.TherapeuticAreas = append(d.TherapeuticAreas, a)
	}
	sort.Strings(d.TherapeuticAreas)

	for p := range phases {
		d.Phases = append(d.Phases, p)
	}
	SortPhases(d.Phases)

	return d
}

// SortPhases orders phases by descending clinical rank, ties by string.
func SortPhases(phases []string) {
	sort.Slice(phases, func(i, j int) bool {
		ri, rj := PhaseRank(phases[i]), PhaseRank(phases[j])
		if ri != rj {
			return ri > rj
		}
		return phases[i] < phases[j]
	})
}
