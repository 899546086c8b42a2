package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"wardpulse/internal/config"
	"wardpulse/internal/services"
	"wardpulse/internal/shared/testutil"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	// Keep uploads flowing in tests regardless of the default limiter.
	cfg.Server.RateLimitRPS = 1000
	cfg.Server.RateLimitBurst = 1000

	logger, _ := testutil.NewTestLogger()
	service := services.NewDatasetService(logger, cfg.Pipeline)
	server := httptest.NewServer(NewRouter(cfg, logger, service))
	t.Cleanup(server.Close)
	return server
}

func validWorkbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Patient Details"))
	_, err := f.NewSheet("Diagnosis Details")
	require.NoError(t, err)

	for i, row := range [][]string{
		{"Registry ID", "Age", "Gender"},
		{"P001", "42", "M"},
		{"P002", "17", "F"},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Patient Details", cell, &row))
	}
	for i, row := range [][]string{
		{"Registry ID", "Diagnosis", "Department"},
		{"P001", "Flu", "ER"},
		{"P001", "Asthma", "Pulmonology"},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Diagnosis Details", cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

// patientOnlyWorkbook is structurally invalid: the diagnosis sheet is
// missing entirely.
func patientOnlyWorkbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Patient Details"))
	for i, row := range [][]string{
		{"Registry ID", "Age"},
		{"P001", "42"},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Patient Details", cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func uploadWorkbook(t *testing.T, server *httptest.Server, filename string, data []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(server.URL+"/api/workbooks", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decodeUpload(t *testing.T, resp *http.Response) UploadResponse {
	t.Helper()
	defer resp.Body.Close()

	var out UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestUpload(t *testing.T) {
	server := newTestServer(t)

	resp := uploadWorkbook(t, server, "registry.xlsx", validWorkbook(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeUpload(t, resp)
	assert.NotEmpty(t, out.DatasetID)
	assert.False(t, out.Cached)
	assert.False(t, out.Blocked)
	require.NotNil(t, out.Summary)
	assert.Equal(t, 2, out.Summary.TotalPatients)
	require.NotNil(t, out.Consolidated)
}

func TestUpload_CachedOnReupload(t *testing.T) {
	server := newTestServer(t)
	data := validWorkbook(t)

	first := decodeUpload(t, uploadWorkbook(t, server, "registry.xlsx", data))
	second := decodeUpload(t, uploadWorkbook(t, server, "renamed.xlsx", data))

	assert.True(t, second.Cached, "identical bytes hit the cache even under a new name")
	assert.Equal(t, first.DatasetID, second.DatasetID)
}

func TestUpload_StructuralFailure(t *testing.T) {
	server := newTestServer(t)

	resp := uploadWorkbook(t, server, "broken.xlsx", patientOnlyWorkbook(t))
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var out struct {
		ErrorCode string          `json:"error_code"`
		Message   string          `json:"message"`
		Details   json.RawMessage `json:"details"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "WORKBOOK_REJECTED", out.ErrorCode)
	assert.Contains(t, out.Message, "required sheets not found")
	assert.NotEmpty(t, out.Details, "the consolidated report travels with the rejection")
}

func TestUpload_WrongExtension(t *testing.T) {
	server := newTestServer(t)

	resp := uploadWorkbook(t, server, "registry.pdf", validWorkbook(t))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpload_MissingFileField(t *testing.T) {
	server := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(server.URL+"/api/workbooks", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetMerged(t *testing.T) {
	server := newTestServer(t)
	out := decodeUpload(t, uploadWorkbook(t, server, "registry.xlsx", validWorkbook(t)))

	resp, err := http.Get(server.URL + "/api/datasets/" + out.DatasetID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var merged struct {
		Rows []json.RawMessage `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&merged))
	assert.Len(t, merged.Rows, 3, "P001 fans out to two rows, P002 appears bare")
}

func TestGetDataset_NotFound(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/datasets/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetSummary_WithFilters(t *testing.T) {
	server := newTestServer(t)
	out := decodeUpload(t, uploadWorkbook(t, server, "registry.xlsx", validWorkbook(t)))

	resp, err := http.Get(server.URL + "/api/datasets/" + out.DatasetID + "/summary?gender=male")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		TotalPatients int `json:"total_patients"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalPatients, "gender parameter is case folded")
}

func TestGetSummary_BadFilter(t *testing.T) {
	server := newTestServer(t)
	out := decodeUpload(t, uploadWorkbook(t, server, "registry.xlsx", validWorkbook(t)))

	resp, err := http.Get(server.URL + "/api/datasets/" + out.DatasetID + "/summary?from=yesterday")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetReports(t *testing.T) {
	server := newTestServer(t)
	out := decodeUpload(t, uploadWorkbook(t, server, "registry.xlsx", validWorkbook(t)))

	resp, err := http.Get(server.URL + "/api/datasets/" + out.DatasetID + "/reports")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reports struct {
		Blocked      bool            `json:"blocked"`
		Consolidated json.RawMessage `json:"consolidated"`
		Stages       json.RawMessage `json:"stages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reports))
	assert.False(t, reports.Blocked)
	assert.NotEmpty(t, reports.Consolidated)
	assert.NotEmpty(t, reports.Stages)
}

func TestExport(t *testing.T) {
	server := newTestServer(t)
	out := decodeUpload(t, uploadWorkbook(t, server, "registry.xlsx", validWorkbook(t)))

	tests := []struct {
		table      string
		wantHeader string
	}{
		{table: "patients", wantHeader: "registry_id,age,gender"},
		{table: "diagnoses", wantHeader: "registry_id,diagnosis"},
		{table: "merged", wantHeader: "registry_id,age,gender"},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			resp, err := http.Get(server.URL + "/api/datasets/" + out.DatasetID + "/export/" + tt.table)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
			assert.Contains(t, resp.Header.Get("Content-Disposition"), tt.table+".csv")

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			text := strings.TrimPrefix(string(body), "\xEF\xBB\xBF")
			assert.True(t, strings.HasPrefix(text, tt.wantHeader), "got header: %q", text)
		})
	}
}

func TestExport_UnknownTable(t *testing.T) {
	server := newTestServer(t)
	out := decodeUpload(t, uploadWorkbook(t, server, "registry.xlsx", validWorkbook(t)))

	resp, err := http.Get(server.URL + "/api/datasets/" + out.DatasetID + "/export/everything")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.NotEmpty(t, health["version"])
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)
	uploadWorkbook(t, server, "registry.xlsx", validWorkbook(t)).Body.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "wardpulse_workbooks_ingested_total")
}
