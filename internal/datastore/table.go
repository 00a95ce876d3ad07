package datastore

import (
	"encoding/json"
	"strings"
)

// Cell is one value of a table. Text keeps the raw source text; Null marks an
// empty source cell. For numeric columns Num carries the coerced value.
type Cell struct {
	Text string
	Null bool
	Num  Number
}

// TextCell builds a string cell; the empty string is null.
func TextCell(s string) Cell {
	return Cell{Text: s, Null: s == ""}
}

// NumberCell builds a numeric cell whose text mirrors the number.
func NumberCell(n Number) Cell {
	return Cell{Text: n.String(), Null: !n.Valid, Num: n}
}

// Table is an immutable, column-named grid. Operations that change shape
// return a new Table and never modify the receiver; rows may be shared.
type Table struct {
	columns []string
	index   map[string]int
	numeric []bool
	rows    [][]Cell
}

// NewTable creates an empty table with the given header.
func NewTable(columns ...string) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		numeric: make([]bool, len(columns)),
	}
	for i, c := range t.columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
	return t
}

// Empty returns the zero-row, zero-column table used for absent sources.
func Empty() *Table {
	return NewTable()
}

// AppendRow adds a row, padding short rows with null cells and dropping
// cells beyond the header. Intended for builders before the table is shared.
func (t *Table) AppendRow(cells ...Cell) {
	row := make([]Cell, len(t.columns))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = Cell{Null: true}
		}
	}
	t.rows = append(t.rows, row)
}

// AppendText adds a row of raw text cells.
func (t *Table) AppendText(values ...string) {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = TextCell(v)
	}
	t.AppendRow(cells...)
}

// Columns returns a copy of the header.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len is the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// IsEmpty reports whether the table has no rows or no columns.
func (t *Table) IsEmpty() bool {
	return t == nil || len(t.rows) == 0 || len(t.columns) == 0
}

// HasColumn reports whether the column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// IsNumeric reports whether the column was coerced to numbers.
func (t *Table) IsNumeric(name string) bool {
	i, ok := t.index[name]
	return ok && t.numeric[i]
}

// Cell returns the cell at row i, column name. Missing columns yield a null cell.
func (t *Table) Cell(i int, name string) Cell {
	c, ok := t.index[name]
	if !ok {
		return Cell{Null: true}
	}
	return t.rows[i][c]
}

// Text returns the string value; ok is false for null cells and missing columns.
func (t *Table) Text(i int, name string) (string, bool) {
	cell := t.Cell(i, name)
	if cell.Null {
		return "", false
	}
	return cell.Text, true
}

// Number returns the numeric value of a cell; NaN for missing columns,
// non-numeric columns and unparseable values.
func (t *Table) Number(i int, name string) Number {
	c, ok := t.index[name]
	if !ok || !t.numeric[c] {
		return NaN()
	}
	return t.rows[i][c].Num
}

// Filter keeps the rows for which keep returns true, in order.
func (t *Table) Filter(keep func(i int) bool) *Table {
	out := t.shell()
	for i, row := range t.rows {
		if keep(i) {
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// Select projects onto the named columns that exist, in the given order.
func (t *Table) Select(names ...string) *Table {
	var keep []int
	var cols []string
	for _, n := range names {
		if i, ok := t.index[n]; ok {
			keep = append(keep, i)
			cols = append(cols, n)
		}
	}

	out := NewTable(cols...)
	for j, i := range keep {
		out.numeric[j] = t.numeric[i]
	}
	out.rows = make([][]Cell, len(t.rows))
	for r, row := range t.rows {
		projected := make([]Cell, len(keep))
		for j, i := range keep {
			projected[j] = row[i]
		}
		out.rows[r] = projected
	}
	return out
}

// WithColumn returns a copy with the column added (or replaced) and filled by f.
func (t *Table) WithColumn(name string, numeric bool, f func(i int) Cell) *Table {
	pos, exists := t.index[name]
	cols := t.columns
	if !exists {
		cols = append(t.Columns(), name)
		pos = len(cols) - 1
	}

	out := NewTable(cols...)
	copy(out.numeric, t.numeric)
	out.numeric[pos] = numeric
	out.rows = make([][]Cell, len(t.rows))
	for i, row := range t.rows {
		next := make([]Cell, len(cols))
		copy(next, row)
		next[pos] = f(i)
		out.rows[i] = next
	}
	return out
}

// CoerceNumeric returns a copy where each listed column that exists is parsed
// to numbers cell by cell. Columns that are absent are skipped.
func (t *Table) CoerceNumeric(names ...string) *Table {
	out := t
	for _, name := range names {
		if !out.HasColumn(name) || out.IsNumeric(name) {
			continue
		}
		src := out
		out = src.WithColumn(name, true, func(i int) Cell {
			cell := src.Cell(i, name)
			return Cell{Text: cell.Text, Null: cell.Null, Num: ParseNumber(cell.Text)}
		})
	}
	return out
}

// Records renders rows as column-keyed maps; numeric cells become Number,
// null text cells nil.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.rows))
	for i := range t.rows {
		out[i] = t.Record(i)
	}
	return out
}

// Record renders one row.
func (t *Table) Record(i int) map[string]any {
	rec := make(map[string]any, len(t.columns))
	for c, name := range t.columns {
		cell := t.rows[i][c]
		switch {
		case t.numeric[c]:
			rec[name] = cell.Num
		case cell.Null:
			rec[name] = nil
		default:
			rec[name] = cell.Text
		}
	}
	return rec
}

// Strings renders row i as display text in column order. Valid numbers keep
// their source text; invalid numbers render empty.
func (t *Table) Strings(i int) []string {
	out := make([]string, len(t.columns))
	for c := range t.columns {
		cell := t.rows[i][c]
		switch {
		case !t.numeric[c]:
			out[c] = cell.Text
		case !cell.Num.Valid:
			out[c] = ""
		case cell.Text != "":
			out[c] = strings.TrimSpace(cell.Text)
		default:
			out[c] = cell.Num.String()
		}
	}
	return out
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [...]}.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
	}{
		Columns: t.Columns(),
		Rows:    t.Records(),
	})
}

// Take returns the rows at the given indices, in that order.
func (t *Table) Take(indices []int) *Table {
	out := t.shell()
	out.rows = make([][]Cell, 0, len(indices))
	for _, i := range indices {
		out.rows = append(out.rows, t.rows[i])
	}
	return out
}

// shell copies the header without rows.
func (t *Table) shell() *Table {
	out := NewTable(t.columns...)
	copy(out.numeric, t.numeric)
	return out
}
