package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"pipelinereview/internal/datastore"
)

// Exporter writes tables in a requested format.
type Exporter struct {
	logger *slog.Logger
}

// New creates an exporter.
func New(logger *slog.Logger) *Exporter {
	return &Exporter{logger: logger.With(slog.String("component", "exporter"))}
}

// Write renders t to w in format f.
func (e *Exporter) Write(ctx context.Context, w io.Writer, t *datastore.Table, f Format) error {
	var err error
	switch f {
	case FormatCSV:
		err = WriteCSV(w, t, WriteOptions{BOMPrefix: true})
	case FormatXLSX:
		err = WriteXLSX(w, t, DefaultSheetName)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "export failed",
			slog.String("format", string(f)),
			slog.String("error", err.Error()))
		return err
	}

	e.logger.InfoContext(ctx, "export written",
		slog.String("format", string(f)),
		slog.Int("record_count", t.Len()),
		slog.Int("column_count", len(t.Columns())))
	return nil
}
