package dataprocessing

import (
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	apperrors "wardpulse/internal/errors"
	"wardpulse/pkg/contracts/domain"
)

// ReadWorkbook reads an Excel workbook from r and extracts every sheet
// as raw rows in file order. The workbook is owned transiently by the
// ingestion call and discarded after normalization.
func ReadWorkbook(r io.Reader) ([]domain.RawSheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewParsingError("could not open workbook, expected .xlsx or .xls content", err)
	}
	defer f.Close()

	var sheets []domain.RawSheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			slog.Warn("skipping unreadable sheet",
				slog.String("sheet_name", name),
				slog.String("error", err.Error()))
			continue
		}
		sheets = append(sheets, domain.RawSheet{Name: name, Rows: rows})
	}

	if len(sheets) == 0 {
		return nil, apperrors.NewStructuralError("workbook contains no readable sheets", nil)
	}

	slog.Debug("workbook read",
		slog.Int("sheet_count", len(sheets)))

	return sheets, nil
}
