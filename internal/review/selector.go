package review

import (
	"sort"
	"strings"

	"pipelinereview/internal/datastore"
)

// LabelSeparator joins symbol and name in a selector label.
const LabelSeparator = " — "

// Company is one selectable entry of the filtered list.
type Company struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Label renders "{Symbol} — {Name}". ParseLabel reverses it.
func (c Company) Label() string {
	return c.Symbol + LabelSeparator + c.Name
}

// ListCompanies returns the distinct (Symbol, Name) pairs of the filtered
// summary sorted by name. Equal names keep their input order; rows without a
// name sort last. Rows without a symbol cannot be joined and are skipped.
func ListCompanies(filtered *datastore.Table) []Company {
	type entry struct {
		Company
		hasName bool
	}

	seen := make(map[Company]struct{})
	var entries []entry
	for i := 0; i < filtered.Len(); i++ {
		sym, ok := filtered.Text(i, ColSymbol)
		if !ok {
			continue
		}
		name, hasName := filtered.Text(i, ColName)
		c := Company{Symbol: sym, Name: name}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		entries = append(entries, entry{Company: c, hasName: hasName})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].hasName != entries[j].hasName {
			return entries[i].hasName
		}
		return entries[i].Name < entries[j].Name
	})

	out := make([]Company, len(entries))
	for i, e := range entries {
		out[i] = e.Company
	}
	return out
}

// ParseLabel splits a selector label on the first separator. A label without
// one is taken whole as the symbol.
func ParseLabel(label string) Company {
	sym, name, found := strings.Cut(label, LabelSeparator)
	if !found {
		return Company{Symbol: label}
	}
	return Company{Symbol: sym, Name: name}
}
