// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package comprestimator_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cosnicolaou/comprestimator"
)

type memDevice []byte

func (d memDevice) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(d)) {
		return 0, errEOF{}
	}
	n := copy(p, d[off:])
	if n < len(p) {
		return n, errEOF{}
	}
	return n, nil
}

type errEOF struct{}

func (errEOF) Error() string { return "EOF" }
func (errEOF) Is(target error) bool {
	return target.Error() == "EOF"
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openerFor(dev memDevice) comprestimator.OpenFunc {
	return func() (comprestimator.ReaderAt, comprestimator.Closer, error) {
		return dev, nopCloser{}, nil
	}
}

func TestRunRandomModeAllZeroDevice(t *testing.T) {
	dev := make(memDevice, 4096*2048)
	summary, err := comprestimator.Run(context.Background(), openerFor(dev), int64(len(dev)),
		comprestimator.WithConcurrency(4),
		comprestimator.WithSeed(1234),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Info.NumNonZeroBlocks != 0 {
		t.Errorf("NumNonZeroBlocks = %d, want 0", summary.Info.NumNonZeroBlocks)
	}
	if summary.Info.NumZeroBlocks == 0 {
		t.Error("expected at least some zero blocks to have been sampled")
	}
	if !math.IsNaN(summary.Report.MeanRatio) {
		t.Errorf("MeanRatio = %v, want NaN with no non-zero samples", summary.Report.MeanRatio)
	}
}

func TestRunExhaustiveModeCoversWholeDevice(t *testing.T) {
	dev := make(memDevice, 64*2048)
	for i := range dev {
		dev[i] = byte(i)
	}
	summary, err := comprestimator.Run(context.Background(), openerFor(dev), int64(len(dev)),
		comprestimator.WithConcurrency(2),
		comprestimator.WithExhaustive(true),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Info.NumZeroBlocks+summary.Info.NumNonZeroBlocks != 64 {
		t.Errorf("scanned %d blocks, want 64", summary.Info.NumZeroBlocks+summary.Info.NumNonZeroBlocks)
	}
}

func TestRunRespectsCancellation(t *testing.T) {
	dev := make(memDevice, 1<<20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := comprestimator.Run(ctx, openerFor(dev), int64(len(dev)), comprestimator.WithConcurrency(2))
	if err == nil {
		t.Error("expected an error from a pre-cancelled context")
	}
}

func TestRunDeviceTooSmall(t *testing.T) {
	dev := make(memDevice, 1024)
	_, err := comprestimator.Run(context.Background(), openerFor(dev), int64(len(dev)))
	if !errors.Is(err, comprestimator.ErrDeviceTooSmall) {
		t.Errorf("Run: got %v, want ErrDeviceTooSmall", err)
	}
}

func TestRunZeroConcurrencyTerminatesCleanly(t *testing.T) {
	dev := make(memDevice, 4096*2048)
	summary, err := comprestimator.Run(context.Background(), openerFor(dev), int64(len(dev)),
		comprestimator.WithConcurrency(0),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Info != (comprestimator.CompressionInfo{}) {
		t.Errorf("Info = %+v, want zero value with no samplers spawned", summary.Info)
	}
}

func TestRunDeterministicWithFixedSeed(t *testing.T) {
	dev := make(memDevice, 8192*2048)
	for i := range dev {
		dev[i] = byte(i * 7)
	}
	s1, err := comprestimator.Run(context.Background(), openerFor(dev), int64(len(dev)), comprestimator.WithConcurrency(1), comprestimator.WithSeed(99))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s2, err := comprestimator.Run(context.Background(), openerFor(dev), int64(len(dev)), comprestimator.WithConcurrency(1), comprestimator.WithSeed(99))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s1.Info != s2.Info {
		t.Errorf("same seed produced different aggregates: %+v vs %+v", s1.Info, s2.Info)
	}
}
