// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package report_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/cosnicolaou/comprestimator/internal/report"
	"github.com/cosnicolaou/comprestimator/internal/sampleinfo"
	"github.com/cosnicolaou/comprestimator/internal/stats"
)

func TestRowHeaderAndWriteProduceWellFormedCSV(t *testing.T) {
	var buf bytes.Buffer
	row := report.NewRow(&buf)

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := row.Header(started, "/dev/sdb", 1024.5, 4, false); err != nil {
		t.Fatalf("Header: %v", err)
	}

	info := sampleinfo.CompressionInfo{NumZeroBlocks: 10, NumNonZeroBlocks: 5, TotalBlocksRead: 15, CompressionRatio: 2.5}
	s := stats.Compute(info, 1<<30)
	rr := report.Report{
		NumZeroBlocks:    info.NumZeroBlocks,
		NumNonZeroBlocks: info.NumNonZeroBlocks,
		TotalBlocksRead:  info.TotalBlocksRead,
		CompressionRatio: info.CompressionRatio,
		DeviceSizeMB:     1024,
	}
	if err := row.Write(s, rr); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := row.Trailer(2500 * time.Millisecond); err != nil {
		t.Fatalf("Trailer: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (header, data, trailer): %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "/dev/sdb") {
		t.Errorf("header line missing device path: %q", lines[0])
	}
	if got := strings.Count(lines[1], ","); got != 11 {
		t.Errorf("data row has %d commas, want 11 for a 12-column row: %q", got, lines[1])
	}
	if !strings.Contains(lines[2], "2.500") {
		t.Errorf("trailer line missing duration: %q", lines[2])
	}
}

func TestSummaryWritesReadableLine(t *testing.T) {
	var buf bytes.Buffer
	s := stats.Compute(sampleinfo.CompressionInfo{NumZeroBlocks: 900, NumNonZeroBlocks: 100, CompressionRatio: 40}, 1<<30)
	report.Summary(&buf, s)
	if !strings.Contains(buf.String(), "samples:") {
		t.Errorf("Summary output missing expected text: %q", buf.String())
	}
}
