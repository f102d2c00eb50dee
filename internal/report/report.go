// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package report writes the CSV and text output comprestimator.c produces
// from init_log_files and print_status: a header row describing the run
// (including its start time), one intermediate CSV row per reaped worker,
// and a final CSV row followed by a duration row at exit. encoding/csv is used for the row writers since none of
// the example repos carry a CSV library of their own to reuse; see
// DESIGN.md for why this one ambient concern falls back to the standard
// library.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cosnicolaou/comprestimator/internal/stats"
)

// Row is one CSV writer over an intermediate or final results file. It
// does not own the underlying file; callers close it themselves, the way
// comprestimator.c leaves fclose to its caller too.
type Row struct {
	w *csv.Writer
}

// NewRow wraps w in a Row, ready to receive rows via Write.
func NewRow(w io.Writer) *Row {
	return &Row{w: csv.NewWriter(w)}
}

// Header writes the one-time header row comprestimator.c's
// init_log_files emits to the final results file: run date/time, device
// path, device size, process count and exhaustive flag. The run's
// duration is not part of this row; Trailer writes it as a row of its own.
func (r *Row) Header(startedAt time.Time, devicePath string, deviceSizeMB float64, numProcs int, exhaustive bool) error {
	return r.w.Write([]string{
		startedAt.Format(time.RFC3339),
		devicePath,
		strconv.FormatFloat(deviceSizeMB, 'f', 2, 64),
		strconv.Itoa(numProcs),
		strconv.FormatBool(exhaustive),
	})
}

// Write appends one data row — the twelve-column record shared by the
// intermediate and final CSV files (spec.md §6).
func (r *Row) Write(report stats.Report, rep Report) error {
	rec := []string{
		strconv.FormatInt(rep.NumZeroBlocks, 10),
		strconv.FormatInt(rep.NumNonZeroBlocks, 10),
		strconv.FormatInt(rep.TotalBlocksRead, 10),
		formatFloat(rep.CompressionRatio),
		formatFloat(report.ConfComp),
		formatFloat(rep.DeviceSizeMB),
		formatFloat(report.AfterZeroMB),
		formatFloat(report.AfterZeroPercent),
		formatFloat(report.ConfZeros),
		formatFloat(report.AfterRTCMB),
		formatFloat(report.AfterRTCPercent),
		formatFloat(report.ErrorMB),
	}
	if err := r.w.Write(rec); err != nil {
		return err
	}
	r.w.Flush()
	return r.w.Error()
}

// Trailer appends a one-field row holding the run's total duration in
// seconds to the final results file.
func (r *Row) Trailer(d time.Duration) error {
	if err := r.w.Write([]string{strconv.FormatFloat(d.Seconds(), 'f', 3, 64)}); err != nil {
		return err
	}
	r.w.Flush()
	return r.w.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// Report bundles the raw aggregate counters alongside the derived
// stats.Report so a single call to Write can emit the full twelve-column
// row without the caller re-deriving DeviceSizeMB and CompressionRatio.
type Report struct {
	NumZeroBlocks    int64
	NumNonZeroBlocks int64
	TotalBlocksRead  int64
	CompressionRatio float64
	DeviceSizeMB     float64
}

// Summary writes a short human-readable status line to w, the Go
// equivalent of comprestimator.c's print_status. The command writes one
// such line after the run completes; per-reap progress goes to the log
// separately.
func Summary(w io.Writer, report stats.Report) {
	fmt.Fprintf(w, "samples: %d (non-zero %d)  after-zero-elimination: %.2f%% (±%.4f)  after-RTC: %.2f%% (mean ratio %.4f ±%.4f)\n",
		report.TotalSamples, report.NonZeroSamples,
		report.AfterZeroPercent, report.ConfZeros,
		report.AfterRTCPercent, report.MeanRatio, report.ConfComp)
}
