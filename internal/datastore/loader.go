package datastore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for sources that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported source format")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Source names a dataset on disk and the columns to coerce to numbers.
type Source struct {
	Name    string
	Path    string
	Numeric []string
}

// LoadFile reads a source from disk. A missing file is not an error: it yields
// the empty table so callers can show a notice instead of failing.
func LoadFile(src Source) (*Table, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", src.Path, err)
	}
	defer f.Close()

	var raw *Table
	switch strings.ToLower(filepath.Ext(src.Path)) {
	case ".csv", ".txt", "":
		raw, err = ReadCSV(f)
	case ".xlsx", ".xlsm":
		raw, err = ReadXLSX(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(src.Path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", src.Path, err)
	}

	return raw.CoerceNumeric(src.Numeric...), nil
}

// ReadCSV parses a header-first CSV stream into a text-only table.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

// ReadXLSX parses the first worksheet of a workbook, first row as header.
// Cells are read raw so numbers keep full precision.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Empty(), nil
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return fromRecords(rows), nil
}

func fromRecords(records [][]string) *Table {
	if len(records) == 0 {
		return Empty()
	}

	t := NewTable(uniqueHeader(records[0])...)
	// Rows of empty fields stay as all-null rows. csv.Reader has already
	// skipped empty lines.
	for _, rec := range records[1:] {
		t.AppendText(rec...)
	}
	return t
}

// uniqueHeader suffixes repeated names with .1, .2, ... so every column stays addressable.
func uniqueHeader(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, name := range header {
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			out[i] = name + "." + strconv.Itoa(n+1)
			continue
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}
