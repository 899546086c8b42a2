// Package exporter serializes normalized and merged tables as
// delimited text for the export collaborator. Output is column stable:
// canonical columns in schema order first, extension columns in
// first-seen order after them.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	apperrors "wardpulse/internal/errors"
	"wardpulse/pkg/contracts/domain"
)

const dateLayout = "2006-01-02"

// WriteOptions configures CSV writing behavior.
type WriteOptions struct {
	// BOMPrefix prepends a UTF-8 BOM so Excel recognizes the encoding.
	BOMPrefix bool
}

// CSVWriter exports tables to CSV streams and files.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		logger: logger.With(slog.String("component", "csv_writer")),
	}
}

// PatientHeaders returns the header row for a patient table export.
func PatientHeaders(t *domain.PatientTable) []string {
	headers := []string{
		domain.ColRegistryID,
		domain.ColAge,
		domain.ColGender,
		domain.ColAdmissionDate,
		domain.ColDischargeDate,
	}
	return append(headers, t.ExtraColumns...)
}

// DiagnosisHeaders returns the header row for a diagnosis table export.
func DiagnosisHeaders(t *domain.DiagnosisTable) []string {
	headers := []string{
		domain.ColRegistryID,
		domain.ColDiagnosis,
		domain.ColDiagnosisDate,
		domain.ColDepartment,
	}
	return append(headers, t.ExtraColumns...)
}

// MergedHeaders returns the header row for a merged table export:
// patient columns, then diagnosis columns, then the provenance flag.
func MergedHeaders(t *domain.MergedTable) []string {
	headers := []string{
		domain.ColRegistryID,
		domain.ColAge,
		domain.ColGender,
		domain.ColAdmissionDate,
		domain.ColDischargeDate,
	}
	headers = append(headers, t.PatientExtraColumns...)
	headers = append(headers,
		domain.ColDiagnosis,
		domain.ColDiagnosisDate,
		domain.ColDepartment,
	)
	headers = append(headers, t.DiagnosisExtraColumns...)
	return append(headers, "has_diagnosis")
}

// WritePatients serializes a patient table to w.
func (c *CSVWriter) WritePatients(w io.Writer, t *domain.PatientTable, opts WriteOptions) error {
	records := make([][]string, 0, len(t.Records))
	for _, rec := range t.Records {
		records = append(records, patientCells(&rec, t.ExtraColumns))
	}
	return c.write(w, PatientHeaders(t), records, opts)
}

// WriteDiagnoses serializes a diagnosis table to w.
func (c *CSVWriter) WriteDiagnoses(w io.Writer, t *domain.DiagnosisTable, opts WriteOptions) error {
	records := make([][]string, 0, len(t.Records))
	for _, rec := range t.Records {
		records = append(records, diagnosisCells(&rec, t.ExtraColumns))
	}
	return c.write(w, DiagnosisHeaders(t), records, opts)
}

// WriteMerged serializes the merged table to w.
func (c *CSVWriter) WriteMerged(w io.Writer, t *domain.MergedTable, opts WriteOptions) error {
	records := make([][]string, 0, len(t.Rows))
	for i := range t.Rows {
		row := &t.Rows[i]
		cells := patientCells(&row.Patient, t.PatientExtraColumns)
		if row.Diagnosis != nil {
			cells = append(cells, diagnosisCells(row.Diagnosis, t.DiagnosisExtraColumns)[1:]...)
		} else {
			for i := 0; i < len(t.DiagnosisExtraColumns)+3; i++ {
				cells = append(cells, "")
			}
		}
		cells = append(cells, strconv.FormatBool(row.HasDiagnosis))
		records = append(records, cells)
	}
	return c.write(w, MergedHeaders(t), records, opts)
}

// WriteFile writes a table to a file using the given writer function,
// creating parent directories as needed.
func (c *CSVWriter) WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory for CSV output", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return apperrors.NewStorageError("failed to create CSV file", err)
	}
	defer file.Close()

	c.logger.Info("writing CSV file", slog.String("path", path))

	return write(file)
}

func (c *CSVWriter) write(w io.Writer, headers []string, records [][]string, opts WriteOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func patientCells(rec *domain.PatientRecord, extraColumns []string) []string {
	cells := []string{
		rec.RegistryID,
		formatInt(rec.Age),
		rec.Gender,
		formatDate(rec.AdmissionDate),
		formatDate(rec.DischargeDate),
	}
	return append(cells, extraCells(rec.Extra, extraColumns)...)
}

func diagnosisCells(rec *domain.DiagnosisRecord, extraColumns []string) []string {
	cells := []string{
		rec.RegistryID,
		rec.Diagnosis,
		formatDate(rec.DiagnosisDate),
		rec.Department,
	}
	return append(cells, extraCells(rec.Extra, extraColumns)...)
}

func extraCells(extra map[string]string, columns []string) []string {
	if len(columns) == 0 {
		return nil
	}
	cells := make([]string, len(columns))
	for i, col := range columns {
		cells[i] = extra[col]
	}
	return cells
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
