package review

import (
	"strings"

	"pipelinereview/internal/datastore"
)

// RegistryStudyURL prefixes an NCT identifier to link its registry page.
const RegistryStudyURL = "https://clinicaltrials.gov/study/"

// NoTrialsMessage is shown when a selection has no matching trials.
const NoTrialsMessage = "No trials found for this company in Enriched_Clinical_Trials.csv."

// TrialsFor returns the trials whose Symbol equals symbol exactly, with an
// NCT_Link column appended. An absent trials source gives an empty result.
func TrialsFor(symbol string, trials *datastore.Table) *datastore.Table {
	if trials.IsEmpty() || !trials.HasColumn(ColSymbol) {
		return datastore.NewTable(TrialDisplayColumns...)
	}

	matched := trials.Filter(func(i int) bool {
		s, ok := trials.Text(i, ColSymbol)
		return ok && s == symbol
	})

	return matched.WithColumn(ColNCTLink, false, func(i int) datastore.Cell {
		return datastore.Cell{Text: TrialLink(matched.Cell(i, ColNCTId))}
	})
}

// TrialLink is the registry URL for an NCT identifier, or "" when the cell is
// null or not an NCT identifier.
func TrialLink(id datastore.Cell) string {
	if id.Null || !strings.HasPrefix(id.Text, "NCT") {
		return ""
	}
	return RegistryStudyURL + id.Text
}
