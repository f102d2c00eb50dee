// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package stats_test

import (
	"math"
	"testing"

	"github.com/cosnicolaou/comprestimator/internal/sampleinfo"
	"github.com/cosnicolaou/comprestimator/internal/stats"
)

func TestComputeBasicQuantities(t *testing.T) {
	info := sampleinfo.CompressionInfo{
		NumZeroBlocks:    700,
		NumNonZeroBlocks: 300,
		CompressionRatio: 150, // mean ratio 0.5
		CSquared:         80,  // variance = 80/300 - 0.25
	}
	deviceSize := int64(1 << 30) // 1GB
	r := stats.Compute(info, deviceSize)

	if got, want := r.TotalSamples, int64(1000); got != want {
		t.Errorf("TotalSamples = %d, want %d", got, want)
	}
	if math.Abs(r.NonZeroFraction-0.3) > 1e-9 {
		t.Errorf("NonZeroFraction = %v, want 0.3", r.NonZeroFraction)
	}
	if math.Abs(r.MeanRatio-0.5) > 1e-9 {
		t.Errorf("MeanRatio = %v, want 0.5", r.MeanRatio)
	}
	wantVar := 80.0/300.0 - 0.25
	if math.Abs(r.Variance-wantVar) > 1e-9 {
		t.Errorf("Variance = %v, want %v", r.Variance, wantVar)
	}
	if r.ConfZeros <= 0 || r.ConfZeros >= 1 {
		t.Errorf("ConfZeros = %v, want in (0,1)", r.ConfZeros)
	}
	if r.ConfComp <= r.ConfZeros {
		t.Errorf("ConfComp (%v) should be larger than ConfZeros (%v) given fewer non-zero samples", r.ConfComp, r.ConfZeros)
	}
	deviceSizeMB := float64(deviceSize) / (1 << 20)
	wantAfterZero := 0.3 * deviceSizeMB
	if math.Abs(r.AfterZeroMB-wantAfterZero) > 1e-6 {
		t.Errorf("AfterZeroMB = %v, want %v", r.AfterZeroMB, wantAfterZero)
	}
	wantAfterRTC := 0.5 * 0.3 * deviceSizeMB
	if math.Abs(r.AfterRTCMB-wantAfterRTC) > 1e-6 {
		t.Errorf("AfterRTCMB = %v, want %v", r.AfterRTCMB, wantAfterRTC)
	}
}

func TestComputeNoSamplesYieldsNaN(t *testing.T) {
	r := stats.Compute(sampleinfo.CompressionInfo{}, 1<<30)
	if !math.IsNaN(r.NonZeroFraction) {
		t.Errorf("NonZeroFraction = %v, want NaN with zero samples", r.NonZeroFraction)
	}
	if !math.IsNaN(r.ConfZeros) {
		t.Errorf("ConfZeros = %v, want NaN with zero samples", r.ConfZeros)
	}
	if !math.IsNaN(r.MeanRatio) {
		t.Errorf("MeanRatio = %v, want NaN with zero non-zero samples", r.MeanRatio)
	}
}

func TestComputeAllZeroBlocksYieldsNaNRatioOnly(t *testing.T) {
	info := sampleinfo.CompressionInfo{NumZeroBlocks: 500}
	r := stats.Compute(info, 1<<30)
	if r.NonZeroFraction != 0 {
		t.Errorf("NonZeroFraction = %v, want 0", r.NonZeroFraction)
	}
	if !math.IsNaN(r.MeanRatio) {
		t.Errorf("MeanRatio = %v, want NaN when there are no non-zero samples", r.MeanRatio)
	}
	if r.AfterZeroMB != 0 {
		t.Errorf("AfterZeroMB = %v, want 0 when every block sampled was zero", r.AfterZeroMB)
	}
}

func TestConfidenceBoundsShrinkWithMoreSamples(t *testing.T) {
	small := stats.Compute(sampleinfo.CompressionInfo{NumZeroBlocks: 50, NumNonZeroBlocks: 50, CompressionRatio: 25, CSquared: 15}, 1<<20)
	large := stats.Compute(sampleinfo.CompressionInfo{NumZeroBlocks: 5000, NumNonZeroBlocks: 5000, CompressionRatio: 2500, CSquared: 1500}, 1<<20)
	if large.ConfZeros >= small.ConfZeros {
		t.Errorf("ConfZeros should shrink as T grows: small=%v large=%v", small.ConfZeros, large.ConfZeros)
	}
	if large.ConfComp >= small.ConfComp {
		t.Errorf("ConfComp should shrink as N grows: small=%v large=%v", small.ConfComp, large.ConfComp)
	}
}
