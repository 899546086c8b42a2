// Package services holds the session-scoped application services that
// sit between the HTTP transport and the stateless processing core.
package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"wardpulse/internal/config"
	"wardpulse/internal/dataprocessing"
	apperrors "wardpulse/internal/errors"
	"wardpulse/pkg/contracts/domain"
)

// ErrDatasetNotFound is returned when no dataset exists for an id.
var ErrDatasetNotFound = errors.New("dataset not found")

// DatasetService owns the session-scoped "current dataset" cache. The
// cache is keyed by the content hash of the uploaded workbook so
// re-uploading identical bytes returns the previously computed dataset
// instead of recomputing; the processing core itself stays a pure
// function of its inputs.
type DatasetService struct {
	logger     *slog.Logger
	processor  *dataprocessing.Processor
	summarizer *dataprocessing.Summarizer

	mu     sync.RWMutex
	byID   map[string]*domain.Dataset
	byHash map[string]string
}

// NewDatasetService creates a dataset service wired with the pipeline
// configuration.
func NewDatasetService(logger *slog.Logger, cfg config.PipelineConfig) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetService{
		logger:     logger.With(slog.String("component", "dataset_service")),
		processor:  dataprocessing.NewProcessor(logger, cfg),
		summarizer: dataprocessing.NewSummarizer(logger, cfg),
		byID:       make(map[string]*domain.Dataset),
		byHash:     make(map[string]string),
	}
}

// Ingest processes workbook bytes into a dataset, returning its id and
// whether the result came from the content-hash cache. A structural
// error is returned together with the blocked dataset so callers can
// surface the consolidated report.
func (s *DatasetService) Ingest(ctx context.Context, data []byte) (string, *domain.Dataset, bool, error) {
	hash := contentHash(data)

	s.mu.RLock()
	if id, ok := s.byHash[hash]; ok {
		ds := s.byID[id]
		s.mu.RUnlock()
		s.logger.InfoContext(ctx, "workbook served from cache",
			slog.String("dataset_id", id),
			slog.String("content_hash", hash[:12]))
		return id, ds, true, nil
	}
	s.mu.RUnlock()

	dataset, err := s.processor.ProcessWorkbook(ctx, bytes.NewReader(data))
	if err != nil {
		return "", dataset, false, err
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.byID[id] = dataset
	s.byHash[hash] = id
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "workbook ingested",
		slog.String("dataset_id", id),
		slog.String("content_hash", hash[:12]),
		slog.Bool("blocked", dataset.Blocked))

	return id, dataset, false, nil
}

// Get returns the dataset for an id.
func (s *DatasetService) Get(id string) (*domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.byID[id]
	if !ok {
		return nil, ErrDatasetNotFound
	}
	return ds, nil
}

// Summarize recomputes summary statistics for a dataset under the
// given filter. The stored dataset is never mutated; every call is
// reproducible from the same inputs.
func (s *DatasetService) Summarize(id string, filter *domain.Filter) (*domain.SummaryStats, error) {
	ds, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if ds.Merged == nil {
		return nil, apperrors.NewNotFoundError("merged table")
	}
	return s.summarizer.Summarize(ds.Merged, filter), nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
