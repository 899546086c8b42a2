package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "wardpulse/internal/errors"
	"wardpulse/internal/exporter"
	"wardpulse/internal/services"
	"wardpulse/internal/validation"
	"wardpulse/pkg/contracts/domain"
)

const dateParamLayout = "2006-01-02"

// DatasetHandler handles workbook upload and dataset retrieval.
type DatasetHandler struct {
	service        *services.DatasetService
	csv            *exporter.CSVWriter
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
	metrics        *Metrics
	maxUploadBytes int64
}

// NewDatasetHandler creates a dataset handler.
func NewDatasetHandler(service *services.DatasetService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, metrics *Metrics, maxUploadBytes int64) *DatasetHandler {
	return &DatasetHandler{
		service:        service,
		csv:            exporter.NewCSVWriter(logger),
		logger:         logger.With(slog.String("component", "dataset_handler")),
		errorHandler:   errorHandler,
		metrics:        metrics,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadResponse is the body returned for a processed workbook.
type UploadResponse struct {
	DatasetID    string                   `json:"dataset_id"`
	Cached       bool                     `json:"cached"`
	Blocked      bool                     `json:"blocked"`
	Stages       domain.StageReports      `json:"stages"`
	Consolidated *domain.ValidationReport `json:"consolidated"`
	Summary      *domain.SummaryStats     `json:"summary,omitempty"`
}

// Upload handles POST /api/workbooks: a multipart upload with the
// workbook under the "file" field.
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "A workbook file is required"))
		return
	}
	defer file.Close()

	if !validation.HasWorkbookExtension(header.Filename) {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "Only .xlsx and .xls workbooks are accepted"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrInternalServer)
		return
	}

	id, dataset, cached, err := h.service.Ingest(r.Context(), data)
	h.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		h.metrics.IngestFailures.Inc()
		// Structural failures still carry the consolidated report so
		// the UI can render the blocking banner.
		var details interface{}
		if dataset != nil {
			details = dataset.Consolidated
		}
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusUnprocessableEntity, "WORKBOOK_REJECTED", err.Error(), details))
		return
	}

	h.metrics.WorkbooksIngested.Inc()
	if cached {
		h.metrics.CacheHits.Inc()
	}
	if dataset.Blocked {
		h.metrics.IngestBlocked.Inc()
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, UploadResponse{
		DatasetID:    id,
		Cached:       cached,
		Blocked:      dataset.Blocked,
		Stages:       dataset.Stages,
		Consolidated: dataset.Consolidated,
		Summary:      dataset.Summary,
	})
}

// DatasetCtx loads the dataset id from the URL and verifies it exists.
func (h *DatasetHandler) DatasetCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", "Dataset id is required"))
			return
		}
		if _, err := h.service.Get(id); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetMerged handles GET /api/datasets/{id}: the merged analytic table.
// A blocked dataset is never presented.
func (h *DatasetHandler) GetMerged(w http.ResponseWriter, r *http.Request) {
	dataset, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrNotFound)
		return
	}
	if dataset.Blocked {
		h.errorHandler.HandleError(w, r, blockedError(dataset))
		return
	}
	render.JSON(w, r, dataset.Merged)
}

// GetReports handles GET /api/datasets/{id}/reports.
func (h *DatasetHandler) GetReports(w http.ResponseWriter, r *http.Request) {
	dataset, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrNotFound)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"stages":       dataset.Stages,
		"consolidated": dataset.Consolidated,
		"blocked":      dataset.Blocked,
	})
}

// GetSummary handles GET /api/datasets/{id}/summary with optional
// filter query parameters.
func (h *DatasetHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	stats, err := h.service.Summarize(chi.URLParam(r, "id"), filter)
	if err != nil {
		if errors.Is(err, services.ErrDatasetNotFound) {
			h.errorHandler.HandleError(w, r, apierrors.ErrNotFound)
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

// Export handles GET /api/datasets/{id}/export/{table}: CSV download
// of the merged, patient, or diagnosis table.
func (h *DatasetHandler) Export(w http.ResponseWriter, r *http.Request) {
	dataset, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrNotFound)
		return
	}

	table := chi.URLParam(r, "table")
	opts := exporter.WriteOptions{BOMPrefix: true}

	var write func(io.Writer) error
	switch table {
	case "merged":
		if dataset.Blocked {
			h.errorHandler.HandleError(w, r, blockedError(dataset))
			return
		}
		write = func(wr io.Writer) error { return h.csv.WriteMerged(wr, dataset.Merged, opts) }
	case "patients":
		write = func(wr io.Writer) error { return h.csv.WritePatients(wr, dataset.Patients, opts) }
	case "diagnoses":
		write = func(wr io.Writer) error { return h.csv.WriteDiagnoses(wr, dataset.Diagnoses, opts) }
	default:
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("table", "Table must be merged, patients, or diagnoses"))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+table+`.csv"`)
	if err := write(w); err != nil {
		h.logger.ErrorContext(r.Context(), "csv export failed",
			slog.String("table", table),
			slog.String("error", err.Error()))
	}
}

func blockedError(dataset *domain.Dataset) *apierrors.APIError {
	return apierrors.NewWithDetails(http.StatusConflict, "DATASET_BLOCKED",
		"Dataset is blocked by validation errors and cannot be presented", dataset.Consolidated)
}

// parseFilter builds a row filter from query parameters: from, to,
// gender, age_min, age_max, department (repeatable).
func parseFilter(r *http.Request) (*domain.Filter, error) {
	q := r.URL.Query()
	filter := &domain.Filter{
		Gender:      strings.ToUpper(strings.TrimSpace(q.Get("gender"))),
		Departments: q["department"],
	}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(dateParamLayout, v)
		if err != nil {
			return nil, apierrors.ErrValidation("from", "Expected date in YYYY-MM-DD format")
		}
		filter.DateFrom = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(dateParamLayout, v)
		if err != nil {
			return nil, apierrors.ErrValidation("to", "Expected date in YYYY-MM-DD format")
		}
		filter.DateTo = &t
	}
	if v := q.Get("age_min"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, apierrors.ErrValidation("age_min", "Expected an integer")
		}
		filter.AgeMin = &n
	}
	if v := q.Get("age_max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, apierrors.ErrValidation("age_max", "Expected an integer")
		}
		filter.AgeMax = &n
	}

	return filter, nil
}
