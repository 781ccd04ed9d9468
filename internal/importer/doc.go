// Package importer validates and deduplicates bulk-import batches.
//
// The package is the business core of customer/policy bulk import. It has no
// HTTP dependencies and can be driven by web handlers, CLI tools or tests.
//
// # Pipeline
//
// Every batch runs through the same stages:
//
//  1. Rows arrive already mapped to internal field names ([MapRows] does the
//     header mapping for callers that hold raw spreadsheet rows).
//  2. [RowValidator] checks structure: empty rows and missing required fields.
//  3. Structurally valid rows are checked by [dedupe.Detect] against a
//     reference set made of the existing data plus every earlier valid row of
//     the same batch.
//  4. Each row ends in exactly one bucket: valid, failed validation, or
//     failed duplicate.
//
// Stage 2 runs concurrently. Stage 3 is a sequential fold: row N is checked
// against exactly the valid rows 1..N-1, never later rows, and duplicate rows
// are never added to the reference set.
//
// # Service
//
// [Service.Run] wraps [Processor.Process] with settings loading (copy-on-start),
// reference loading, committing valid rows, history and metrics. Only
// environment failures such as an unreadable reference set surface as errors;
// per-row problems are always classified.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a code for support reference:
//
//   - IMP001-IMP004: Batch errors (empty batch, too many rows)
//   - DUP001-DUP002: Duplicate handling (strict mode)
//   - CFG001-CFG002: Settings errors
//   - REF001: Reference data unavailable
//   - UPL001-UPL005: Import slot and request errors
package importer
