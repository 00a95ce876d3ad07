// Package exporter renders review tables as downloadable files.
//
// Two formats are supported:
//
// CSV: header row plus one row per record, prefixed with a UTF-8 BOM so
// spreadsheet applications detect the encoding. Numbers keep their display
// text, invalid numbers are empty.
//
// XLSX: a single sheet written with excelize. Valid numbers are stored as
// numeric cells so the workbook can be sorted and summed.
//
// Example usage:
//
//	format, err := exporter.ParseFormat(r.URL.Query().Get("format"))
//	if err != nil {
//	    return err
//	}
//	w.Header().Set("Content-Type", format.ContentType())
//	err = exporter.New(logger).Write(ctx, w, table, format)
//
// The exporter only ever writes to the given io.Writer; it never touches the
// source datasets.
package exporter
