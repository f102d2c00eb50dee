// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package stats turns an aggregate sampleinfo.CompressionInfo into the
// percentages, projected sizes, and Hoeffding confidence bounds that are
// reported to the operator. This is comprestimator.c's estimator: the
// math is unchanged, only the data it reads comes from Go's
// sampleinfo.CompressionInfo rather than the shared-memory aggregate
// slot.
package stats

import (
	"math"

	"github.com/cosnicolaou/comprestimator/internal/sampleinfo"
)

// hoeffdingConst is ln(2/delta) for delta = 1e-7 (about 16.811), rounded
// up, giving 99.99999% confidence bounds (spec.md §4.7).
const hoeffdingConst = 16.82

// Report is the full set of derived quantities computed from one
// aggregate CompressionInfo and a device size.
type Report struct {
	TotalSamples    int64
	NonZeroSamples  int64
	NonZeroFraction float64 // N/T
	MeanRatio       float64 // S/N
	Variance        float64 // Q/N - (S/N)^2, diagnostic only

	ConfZeros float64 // Hoeffding bound on the zero/non-zero estimate
	ConfComp  float64 // Hoeffding bound on the compression ratio estimate

	AfterZeroMB      float64 // projected size after zero-elimination
	AfterZeroPercent float64
	AfterRTCMB       float64 // projected size after zero-elimination + RTC
	AfterRTCPercent  float64
	ErrorMB          float64 // absolute error in the after-zero-elimination estimate
}

// Compute derives a Report from the aggregate info and the device's total
// size in bytes. When info has zero samples, or zero non-zero samples,
// the corresponding ratios and confidence bounds are NaN rather than
// panicking on division by zero or silently reporting zero, per
// SPEC_FULL.md §9: a NaN makes the "not enough data yet" condition
// visible in every downstream consumer instead of being mistaken for a
// measured zero.
func Compute(info sampleinfo.CompressionInfo, deviceSizeBytes int64) Report {
	var r Report
	r.TotalSamples = info.TotalSamples()
	r.NonZeroSamples = info.NumNonZeroBlocks
	deviceSizeMB := float64(deviceSizeBytes) / (1 << 20)

	if r.TotalSamples == 0 {
		r.NonZeroFraction = math.NaN()
		r.ConfZeros = math.NaN()
	} else {
		r.NonZeroFraction = float64(info.NumNonZeroBlocks) / float64(r.TotalSamples)
		r.ConfZeros = math.Sqrt(hoeffdingConst / (2 * float64(r.TotalSamples)))
	}

	if info.NumNonZeroBlocks == 0 {
		r.MeanRatio = math.NaN()
		r.Variance = math.NaN()
		r.ConfComp = math.NaN()
	} else {
		n := float64(info.NumNonZeroBlocks)
		r.MeanRatio = info.CompressionRatio / n
		r.Variance = info.CSquared/n - r.MeanRatio*r.MeanRatio
		r.ConfComp = math.Sqrt(hoeffdingConst / (2 * n))
	}

	r.AfterZeroMB = r.NonZeroFraction * deviceSizeMB
	r.AfterZeroPercent = r.NonZeroFraction * 100
	r.AfterRTCMB = r.MeanRatio * r.NonZeroFraction * deviceSizeMB
	r.AfterRTCPercent = r.MeanRatio * r.NonZeroFraction * 100
	r.ErrorMB = r.ConfZeros * r.NonZeroFraction * deviceSizeMB

	return r
}
