package datastore

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
	}{
		{"2500000000", 2.5e9, true},
		{" 42.5 ", 42.5, true},
		{"-3", -3, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"1,234", 0, false},
		{"NaN", 0, false},
		{"$12", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n := ParseNumber(tt.in)
			assert.Equal(t, tt.valid, n.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, n.Value)
			}
		})
	}
}

func TestNumber_OrAndMap(t *testing.T) {
	assert.Equal(t, 0.0, NaN().Or(0))
	assert.Equal(t, 5.0, Num(5).Or(0))

	assert.False(t, NaN().Map(func(v float64) float64 { return v * 2 }).Valid)
	assert.Equal(t, 10.0, Num(5).Map(func(v float64) float64 { return v * 2 }).Value)
	assert.False(t, Num(math.NaN()).Valid)
}

func TestNumber_JSON(t *testing.T) {
	data, err := json.Marshal([]Number{Num(1.5), NaN(), Num(math.Inf(1))})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null, null]`, string(data))

	var back []Number
	require.NoError(t, json.Unmarshal([]byte(`[2, null]`), &back))
	assert.Equal(t, []Number{Num(2), NaN()}, back)
}

func sampleTable() *Table {
	t := NewTable("Symbol", "Name", "Market Cap")
	t.AppendText("ABC", "Acme", "2500000000")
	t.AppendText("XYZ", "", "oops")
	t.AppendText("QQQ")
	return t.CoerceNumeric("Market Cap", "Missing Column")
}

func TestTable_Accessors(t *testing.T) {
	tbl := sampleTable()

	assert.Equal(t, 3, tbl.Len())
	assert.True(t, tbl.HasColumn("Name"))
	assert.True(t, tbl.IsNumeric("Market Cap"))
	assert.False(t, tbl.IsNumeric("Name"))
	assert.False(t, tbl.HasColumn("Missing Column"))

	name, ok := tbl.Text(0, "Name")
	assert.True(t, ok)
	assert.Equal(t, "Acme", name)

	_, ok = tbl.Text(1, "Name")
	assert.False(t, ok, "empty cell is null")

	_, ok = tbl.Text(2, "Name")
	assert.False(t, ok, "short rows are padded with nulls")

	_, ok = tbl.Text(0, "Nope")
	assert.False(t, ok)

	assert.Equal(t, Num(2.5e9), tbl.Number(0, "Market Cap"))
	assert.False(t, tbl.Number(1, "Market Cap").Valid, "coercion failure is per cell")
	assert.False(t, tbl.Number(0, "Name").Valid, "text columns have no numbers")
	assert.False(t, tbl.Number(0, "Nope").Valid)
}

func TestTable_CoercionKeepsRawText(t *testing.T) {
	tbl := sampleTable()
	assert.Equal(t, "oops", tbl.Cell(1, "Market Cap").Text)
}

func TestTable_FilterSelectWithColumn(t *testing.T) {
	tbl := sampleTable()

	filtered := tbl.Filter(func(i int) bool { return tbl.Number(i, "Market Cap").Valid })
	require.Equal(t, 1, filtered.Len())
	assert.Equal(t, tbl.Columns(), filtered.Columns())
	assert.True(t, filtered.IsNumeric("Market Cap"))

	selected := tbl.Select("Name", "Nope", "Symbol")
	assert.Equal(t, []string{"Name", "Symbol"}, selected.Columns())
	sym, _ := selected.Text(0, "Symbol")
	assert.Equal(t, "ABC", sym)

	added := tbl.WithColumn("Flag", false, func(i int) Cell { return TextCell("x") })
	assert.Equal(t, []string{"Symbol", "Name", "Market Cap", "Flag"}, added.Columns())
	assert.False(t, tbl.HasColumn("Flag"), "receiver unchanged")

	replaced := tbl.WithColumn("Name", false, func(i int) Cell { return TextCell("n") })
	v, _ := replaced.Text(0, "Name")
	assert.Equal(t, "n", v)
	orig, _ := tbl.Text(0, "Name")
	assert.Equal(t, "Acme", orig)
}

func TestTable_Empty(t *testing.T) {
	assert.True(t, Empty().IsEmpty())
	assert.Empty(t, Empty().Columns())

	headerOnly := NewTable("Symbol")
	assert.True(t, headerOnly.IsEmpty())

	var nilTable *Table
	assert.True(t, nilTable.IsEmpty())
}

func TestTable_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(sampleTable())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"columns": ["Symbol", "Name", "Market Cap"],
		"rows": [
			{"Symbol": "ABC", "Name": "Acme", "Market Cap": 2500000000},
			{"Symbol": "XYZ", "Name": null, "Market Cap": null},
			{"Symbol": "QQQ", "Name": null, "Market Cap": null}
		]
	}`, string(data))
}

func TestTable_Strings(t *testing.T) {
	tbl := sampleTable()
	assert.Equal(t, []string{"ABC", "Acme", "2500000000"}, tbl.Strings(0))
	assert.Equal(t, []string{"XYZ", "", ""}, tbl.Strings(1))

	computed := NewTable("Value").WithColumn("Value", true, func(int) Cell { return NumberCell(Num(0.25)) })
	computed.AppendRow(NumberCell(Num(1.5)))
	assert.Equal(t, []string{"1.5"}, computed.Strings(0))
}

func TestTable_Take(t *testing.T) {
	tbl := sampleTable()
	reordered := tbl.Take([]int{2, 0})

	require.Equal(t, 2, reordered.Len())
	first, _ := reordered.Text(0, "Symbol")
	second, _ := reordered.Text(1, "Symbol")
	assert.Equal(t, "QQQ", first)
	assert.Equal(t, "ABC", second)
	assert.True(t, reordered.IsNumeric("Market Cap"))
}
