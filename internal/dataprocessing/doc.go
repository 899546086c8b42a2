// Package dataprocessing implements the workbook ingestion pipeline:
// sheet classification, table normalization, validation, the
// patient/diagnosis merge, and summary statistics.
//
// The pipeline is single threaded and stateless. Every stage returns
// its output together with a validation report instead of raising past
// the stage boundary; structural errors short-circuit the remaining
// stages, everything else accumulates into one consolidated report per
// ingestion. All produced tables are immutable snapshots regenerated
// per uploaded workbook.
package dataprocessing
