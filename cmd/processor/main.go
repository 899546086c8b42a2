// Command processor ingests a hospital registry workbook from the
// command line, runs the full pipeline, and writes the normalized
// tables, the merged table, and the validation report to an output
// directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"wardpulse/internal/config"
	"wardpulse/internal/dataprocessing"
	"wardpulse/internal/exporter"
	"wardpulse/internal/infrastructure"
	"wardpulse/internal/validation"
	"wardpulse/pkg/contracts"
)

func main() {
	inFile := flag.String("in", "", "input workbook (.xlsx or .xls)")
	outDir := flag.String("out", "out", "output directory for CSV files and the report")
	configFile := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	if *inFile == "" {
		fmt.Fprintln(os.Stderr, "usage: processor -in workbook.xlsx [-out dir] [-config config.yaml]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := infrastructure.InitializeLogger(cfg.Logging)
	logger.Info("starting", slog.String("version", contracts.Version))

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateWorkbookFile(*inFile); err != nil {
		logger.Error("workbook rejected", "path", *inFile, "error", err)
		os.Exit(1)
	}
	if err := validator.ValidateOutputDirectory(*outDir); err != nil {
		logger.Error("output directory rejected", "path", *outDir, "error", err)
		os.Exit(1)
	}

	file, err := os.Open(*inFile)
	if err != nil {
		logger.Error("failed to open workbook", "path", *inFile, "error", err)
		os.Exit(1)
	}
	defer file.Close()

	processor := dataprocessing.NewProcessor(logger, cfg.Pipeline)
	dataset, procErr := processor.ProcessWorkbook(context.Background(), file)

	// The report is written even when processing failed so the
	// blocking findings are inspectable.
	if err := writeReport(filepath.Join(*outDir, "report.json"), dataset); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}

	if procErr != nil {
		logger.Error("workbook processing failed", "error", procErr)
		os.Exit(1)
	}

	csv := exporter.NewCSVWriter(logger)
	opts := exporter.WriteOptions{BOMPrefix: true}
	outputs := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"patients.csv", func(w io.Writer) error { return csv.WritePatients(w, dataset.Patients, opts) }},
		{"diagnoses.csv", func(w io.Writer) error { return csv.WriteDiagnoses(w, dataset.Diagnoses, opts) }},
		{"merged.csv", func(w io.Writer) error { return csv.WriteMerged(w, dataset.Merged, opts) }},
	}
	for _, out := range outputs {
		if err := csv.WriteFile(filepath.Join(*outDir, out.name), out.write); err != nil {
			logger.Error("failed to write CSV", "file", out.name, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("workbook processed",
		slog.Int("patients", len(dataset.Patients.Records)),
		slog.Int("diagnoses", len(dataset.Diagnoses.Records)),
		slog.Int("merged_rows", len(dataset.Merged.Rows)),
		slog.Bool("blocked", dataset.Blocked),
		slog.String("output_dir", *outDir))

	if dataset.Blocked {
		os.Exit(1)
	}
}

func writeReport(path string, dataset interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(dataset)
}
