package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

// SummaryHeader is the column layout of the pipeline summary export.
var SummaryHeader = []string{
	"Symbol", "Name", "Market Cap", "EV", "Total Debt", "Total Cash", "Price",
	"52W Low", "52W High", "Wall Street Ratings", "Pipeline_Count",
	"Total_Active_Trials", "Shares Outstanding", "Institutional Shares",
	"Insider %", "Therapeutic_Area_Filter", "Highest_Phase", "Has_Marketed_Drug",
	"Country", "Industry",
}

// SummaryRows is a small summary dataset covering nulls and invalid numbers.
var SummaryRows = [][]string{
	{"ABC", "Acme Corp", "2500000000", "3000000000", "120000000", "450000000", "12.5", "8", "15", "4.2", "6", "3", "200000000", "150000000", "1.5", "Oncology", "PHASE3", "Yes", "US", "Biotechnology"},
	{"XYZ", "Xylo Bio", "800000000", "", "0", "75500000", "3.1", "1", "4", "", "2", "1", "", "", "-0.4", "Neurology", "PHASE1", "No", "US", "Biotechnology"},
	{"QRS", "Quartz Rx", "n/a", "", "", "", "", "", "", "", "1", "0", "", "", "", "Oncology", "N/A", "No", "CA", "Pharmaceuticals"},
	{"BIG", "Big Pharma", "150000000000", "160000000000", "20000000000", "9000000000", "88", "70", "95", "4.8", "40", "25", "1700000000", "1200000000", "0.1", "Immunology", "PHASE4", "Yes", "US", "Pharmaceuticals"},
}

// TrialsHeader is the column layout of the enriched trials export.
var TrialsHeader = []string{
	"Symbol", "NCTId", "Phases", "Status", "Conditions", "Interventions",
	"EnrollmentCount", "StartDate", "PrimaryCompletionDate", "BriefSummary", "OfficialTitle",
}

// TrialsRows links two trials to ABC, one to XYZ and none to the others.
var TrialsRows = [][]string{
	{"ABC", "NCT00123456", "PHASE3", "RECRUITING", "Lung Cancer", "ABC-101", "120", "2023-01-10", "2025-06-30", "A phase 3 study", "A Randomized Study of ABC-101"},
	{"ABC", "INVALID", "PHASE2", "COMPLETED", "Melanoma", "ABC-202", "bad", "2021-03-01", "", "", "An Open-Label Study"},
	{"XYZ", "NCT99999999", "PHASE1", "ACTIVE_NOT_RECRUITING", "ALS", "XY-1", "30", "2024-02-02", "2026-01-01", "", "First-in-Human Study of XY-1"},
}

// WriteCSV writes header and rows to dir/name and returns the path.
func WriteCSV(t *testing.T, dir, name string, header []string, rows [][]string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	return path
}

// WriteFixtures writes the default summary and trials files into dir and
// returns their paths.
func WriteFixtures(t *testing.T, dir string) (summary, trials string) {
	t.Helper()
	summary = WriteCSV(t, dir, "Company_Pipeline_Summary.csv", SummaryHeader, SummaryRows)
	trials = WriteCSV(t, dir, "Enriched_Clinical_Trials.csv", TrialsHeader, TrialsRows)
	return summary, trials
}
