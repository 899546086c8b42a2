package exporter

import (
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wardpulse/pkg/contracts/domain"
)

func intPtr(v int) *int { return &v }

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWriter_WritePatients(t *testing.T) {
	table := &domain.PatientTable{
		ExtraColumns: []string{"Referred By"},
		Records: []domain.PatientRecord{
			{
				RegistryID:    "P001",
				Age:           intPtr(42),
				Gender:        "MALE",
				AdmissionDate: datePtr(2024, 1, 5),
				Extra:         map[string]string{"Referred By": "Dr. Rao"},
			},
			{RegistryID: "P002"},
		},
	}

	var buf bytes.Buffer
	w := NewCSVWriter(slog.Default())
	require.NoError(t, w.WritePatients(&buf, table, WriteOptions{}))

	rows := parseCSV(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"registry_id", "age", "gender", "admission_date", "discharge_date", "Referred By"}, rows[0])
	assert.Equal(t, []string{"P001", "42", "MALE", "2024-01-05", "", "Dr. Rao"}, rows[1])
	assert.Equal(t, []string{"P002", "", "", "", "", ""}, rows[2], "null fields export as empty cells")
}

func TestCSVWriter_WriteDiagnoses(t *testing.T) {
	table := &domain.DiagnosisTable{
		Records: []domain.DiagnosisRecord{
			{RegistryID: "P001", Diagnosis: "FLU", DiagnosisDate: datePtr(2024, 1, 12), Department: "ER"},
		},
	}

	var buf bytes.Buffer
	w := NewCSVWriter(slog.Default())
	require.NoError(t, w.WriteDiagnoses(&buf, table, WriteOptions{}))

	rows := parseCSV(t, buf.Bytes())
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"registry_id", "diagnosis", "diagnosis_date", "department"}, rows[0])
	assert.Equal(t, []string{"P001", "FLU", "2024-01-12", "ER"}, rows[1])
}

func TestCSVWriter_WriteMerged(t *testing.T) {
	table := &domain.MergedTable{
		PatientExtraColumns:   []string{"Referred By"},
		DiagnosisExtraColumns: []string{"Severity"},
		Rows: []domain.MergedRow{
			{
				Patient: domain.PatientRecord{
					RegistryID: "P001",
					Age:        intPtr(42),
					Gender:     "MALE",
					Extra:      map[string]string{"Referred By": "Dr. Rao"},
				},
				HasDiagnosis: true,
				Diagnosis: &domain.DiagnosisRecord{
					RegistryID: "P001",
					Diagnosis:  "FLU",
					Department: "ER",
					Extra:      map[string]string{"Severity": "mild"},
				},
			},
			{
				Patient: domain.PatientRecord{RegistryID: "P002", Gender: "FEMALE"},
			},
		},
	}

	var buf bytes.Buffer
	w := NewCSVWriter(slog.Default())
	require.NoError(t, w.WriteMerged(&buf, table, WriteOptions{}))

	rows := parseCSV(t, buf.Bytes())
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"registry_id", "age", "gender", "admission_date", "discharge_date", "Referred By",
		"diagnosis", "diagnosis_date", "department", "Severity",
		"has_diagnosis",
	}, rows[0])

	assert.Equal(t, []string{"P001", "42", "MALE", "", "", "Dr. Rao", "FLU", "", "ER", "mild", "true"}, rows[1])

	// A patient without diagnoses keeps the full column count with
	// empty diagnosis cells.
	assert.Equal(t, []string{"P002", "", "FEMALE", "", "", "", "", "", "", "", "false"}, rows[2])
}

func TestCSVWriter_BOMPrefix(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(slog.Default())
	require.NoError(t, w.WritePatients(&buf, &domain.PatientTable{}, WriteOptions{BOMPrefix: true}))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte{0xEF, 0xBB, 0xBF}))
}

func TestCSVWriter_WriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "patients.csv")

	w := NewCSVWriter(slog.Default())
	err := w.WriteFile(path, func(out io.Writer) error {
		return w.WritePatients(out, &domain.PatientTable{
			Records: []domain.PatientRecord{{RegistryID: "P001"}},
		}, WriteOptions{})
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "registry_id"))
}
