package exporter

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsupportedFormat is returned by ParseFormat for unknown names.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format names an export file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SupportedFormats lists the accepted format names.
var SupportedFormats = []string{string(FormatCSV), string(FormatXLSX)}

// ParseFormat resolves a format name case-insensitively. The empty string
// means CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename builds a dated download name such as companies_20260131.csv.
func Filename(base string, f Format, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", base, now.Format("20060102"), f)
}
