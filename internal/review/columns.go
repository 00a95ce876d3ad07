package review

// Summary dataset columns.
const (
	ColSymbol              = "Symbol"
	ColName                = "Name"
	ColMarketCap           = "Market Cap"
	ColEV                  = "EV"
	ColTotalDebt           = "Total Debt"
	ColTotalCash           = "Total Cash"
	ColPrice               = "Price"
	Col52WLow              = "52W Low"
	Col52WHigh             = "52W High"
	ColWallStreetRatings   = "Wall Street Ratings"
	ColPipelineCount       = "Pipeline_Count"
	ColTotalActiveTrials   = "Total_Active_Trials"
	ColSharesOutstanding   = "Shares Outstanding"
	ColInstitutionalShares = "Institutional Shares"
	ColInsiderPct          = "Insider %"
	ColTherapeuticArea     = "Therapeutic_Area_Filter"
	ColHighestPhase        = "Highest_Phase"
	ColHasMarketedDrug     = "Has_Marketed_Drug"
	ColCountry             = "Country"
	ColIndustry            = "Industry"
)

// Trials dataset columns.
const (
	ColNCTId                 = "NCTId"
	ColPhases                = "Phases"
	ColStatus                = "Status"
	ColConditions            = "Conditions"
	ColInterventions         = "Interventions"
	ColEnrollmentCount       = "EnrollmentCount"
	ColStartDate             = "StartDate"
	ColPrimaryCompletionDate = "PrimaryCompletionDate"
	ColBriefSummary          = "BriefSummary"
	ColOfficialTitle         = "OfficialTitle"
	ColNCTLink               = "NCT_Link"
)

// Display-only columns derived by FormatCompanies.
const (
	ColMarketCapB = "Market Cap (B)"
	ColEVB        = "EV (B)"
	ColTotalCashM = "Total Cash (M)"
	ColTotalDebtM = "Total Debt (M)"
)

// SummaryNumericColumns are coerced to numbers when the summary is loaded.
var SummaryNumericColumns = []string{
	ColMarketCap, ColEV, ColTotalDebt, ColTotalCash, ColPrice,
	Col52WLow, Col52WHigh, ColWallStreetRatings,
	ColPipelineCount, ColTotalActiveTrials,
	ColSharesOutstanding, ColInstitutionalShares, ColInsiderPct,
}

// TrialNumericColumns are coerced to numbers when the trials table is loaded.
var TrialNumericColumns = []string{ColEnrollmentCount}

// FilterColumns must exist before filters are exposed.
var FilterColumns = []string{
	ColSymbol, ColName, ColMarketCap,
	ColTherapeuticArea, ColHighestPhase, ColHasMarketedDrug,
}

// CompanyDisplayColumns is the company table shown to the user.
var CompanyDisplayColumns = []string{
	ColSymbol, ColName, ColTherapeuticArea, ColHighestPhase, ColHasMarketedDrug,
	ColMarketCapB, ColPipelineCount, ColTotalActiveTrials, ColCountry, ColIndustry,
}

// TrialDisplayColumns is the trial table shown for a selected company.
var TrialDisplayColumns = []string{
	ColNCTId, ColPhases, ColStatus, ColConditions, ColInterventions,
	ColEnrollmentCount, ColStartDate, ColPrimaryCompletionDate,
	ColBriefSummary, ColOfficialTitle, ColNCTLink,
}

var phaseRank = map[string]int{
	"PHASE4":       4,
	"PHASE3":       3,
	"PHASE2":       2,
	"PHASE1":       1,
	"EARLY_PHASE1": 0,
	"N/A":          -1,
	"No Trials":    -2,
}

// PhaseRank orders clinical phases, most advanced first. Unknown values rank
// with "N/A".
func PhaseRank(phase string) int {
	if r, ok := phaseRank[phase]; ok {
		return r
	}
	return -1
}
