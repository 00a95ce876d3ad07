package review

import (
	"fmt"
	"strings"

	"pipelinereview/internal/datastore"
)

// MarketedDrug is the three-way marketed-drug filter.
type MarketedDrug string

const (
	MarketedAll MarketedDrug = "All"
	MarketedYes MarketedDrug = "Yes"
	MarketedNo  MarketedDrug = "No"
)

// ParseMarketedDrug accepts All, Yes or No in any case. The empty string is All.
func ParseMarketedDrug(s string) (MarketedDrug, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return MarketedAll, nil
	case "yes":
		return MarketedYes, nil
	case "no":
		return MarketedNo, nil
	}
	return "", fmt.Errorf("invalid marketed drug filter %q", s)
}

// FilterState is one user's current filter selection. Market-cap bounds are in
// billions. Empty area and phase lists place no restriction.
type FilterState struct {
	MarketCapMin     float64      `json:"mcap_min"`
	MarketCapMax     float64      `json:"mcap_max"`
	TherapeuticAreas []string     `json:"therapeutic_areas"`
	Phases           []string     `json:"phases"`
	MarketedDrug     MarketedDrug `json:"marketed_drug"`
}

// DefaultState is the unrestricted state for a domain.
func DefaultState(d Domain) FilterState {
	return FilterState{
		MarketCapMin:     d.MarketCapMin,
		MarketCapMax:     d.MarketCapMax,
		TherapeuticAreas: []string{},
		Phases:           []string{},
		MarketedDrug:     MarketedAll,
	}
}

// Clone returns a copy that shares no slices with s.
func (s FilterState) Clone() FilterState {
	out := s
	out.TherapeuticAreas = append([]string{}, s.TherapeuticAreas...)
	out.Phases = append([]string{}, s.Phases...)
	return out
}

// Apply returns the summary rows matching every predicate of the state, in
// their original order and with all columns. A missing market cap counts as
// zero; a missing category never matches a non-empty selection.
func Apply(summary *datastore.Table, state FilterState) *datastore.Table {
	areas := toSet(state.TherapeuticAreas)
	phases := toSet(state.Phases)

	return summary.Filter(func(i int) bool {
		// Same as min*1e9 <= value <= max*1e9, compared in billions so the
		// domain's own bounds always admit its extreme rows.
		mcap := summary.Number(i, ColMarketCap).Or(0) / billion
		if mcap < state.MarketCapMin || mcap > state.MarketCapMax {
			return false
		}
		if !memberOf(areas, summary, i, ColTherapeuticArea) {
			return false
		}
		if !memberOf(phases, summary, i, ColHighestPhase) {
			return false
		}
		switch state.MarketedDrug {
		case MarketedYes, MarketedNo:
			v, ok := summary.Text(i, ColHasMarketedDrug)
			return ok && v == string(state.MarketedDrug)
		}
		return true
	})
}

// ValidateColumns lists the filter columns missing from the summary.
func ValidateColumns(summary *datastore.Table) []string {
	var missing []string
	for _, c := range FilterColumns {
		if !summary.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func memberOf(set map[string]struct{}, t *datastore.Table, i int, column string) bool {
	if set == nil {
		return true
	}
	v, ok := t.Text(i, column)
	if !ok {
		return false
	}
	_, found := set[v]
	return found
}
