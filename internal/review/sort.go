package review

import (
	"sort"

	"pipelinereview/internal/datastore"
)

// SortBy orders rows by column. Numeric columns compare as numbers, others as
// strings; nulls go last in both directions. The sort is stable and an
// unknown column leaves the order unchanged.
func SortBy(t *datastore.Table, column string, desc bool) *datastore.Table {
	if column == "" || !t.HasColumn(column) {
		return t
	}

	idx := make([]int, t.Len())
	for i := range idx {
		idx[i] = i
	}

	numeric := t.IsNumeric(column)
	less := func(a, b int) bool {
		if numeric {
			x, y := t.Number(a, column), t.Number(b, column)
			if !x.Valid || !y.Valid {
				return x.Valid && !y.Valid
			}
			if desc {
				return x.Value > y.Value
			}
			return x.Value < y.Value
		}
		x, okX := t.Text(a, column)
		y, okY := t.Text(b, column)
		if !okX || !okY {
			return okX && !okY
		}
		if desc {
			return x > y
		}
		return x < y
	}

	sort.SliceStable(idx, func(i, j int) bool { return less(idx[i], idx[j]) })
	return t.Take(idx)
}
