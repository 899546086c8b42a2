package validation

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "wardpulse/internal/errors"
)

// WorkbookExtensions lists the spreadsheet file extensions accepted for ingest.
var WorkbookExtensions = []string{".xlsx", ".xls"}

// FileValidator checks workbook inputs and export targets before the
// pipeline touches them, so CLI users get a clear error instead of a
// parser failure deep in the run.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// ValidateWorkbookFile checks that path exists, is a regular file, is not
// empty, and carries a recognized workbook extension.
func (v *FileValidator) ValidateWorkbookFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("workbook does not exist",
			slog.String("file", path))
		return apperrors.NewValidationError("workbook file " + path + " does not exist")
	}
	if err != nil {
		return apperrors.NewValidationError("failed to stat workbook " + path)
	}
	if info.IsDir() {
		v.logger.Error("workbook path is a directory",
			slog.String("path", path))
		return apperrors.NewValidationError(path + " is a directory, not a workbook")
	}
	if info.Size() == 0 {
		v.logger.Error("workbook is empty",
			slog.String("file", path))
		return apperrors.NewValidationError("workbook file " + path + " is empty")
	}

	if !HasWorkbookExtension(path) {
		v.logger.Error("unsupported workbook extension",
			slog.String("file", path))
		return apperrors.NewValidationError(
			"unsupported file type for " + path + ", expected one of " + strings.Join(WorkbookExtensions, ", "))
	}

	// Confirm the file is actually readable before handing it to the parser.
	f, err := os.Open(path)
	if err != nil {
		v.logger.Error("workbook is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewValidationError("workbook file " + path + " is not readable")
	}
	f.Close()

	v.logger.Debug("workbook validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory ensures the export directory exists, creating it
// if needed, and verifies it is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("failed to create output directory "+dir, err)
	}

	probe := filepath.Join(dir, ".write_test")
	f, err := os.Create(probe)
	if err != nil {
		v.logger.Error("output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("output directory "+dir+" is not writable", err)
	}
	f.Close()
	os.Remove(probe)

	return nil
}

// HasWorkbookExtension reports whether name ends in a supported
// spreadsheet extension, case-insensitively.
func HasWorkbookExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range WorkbookExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
