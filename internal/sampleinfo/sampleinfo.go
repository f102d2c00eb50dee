// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package sampleinfo holds the constants and the aggregate record shared by
// every layer of the sampling engine: the pattern generator, the worker, the
// pool/aggregator and the estimator all operate on the same
// CompressionInfo and the same block/unit sizing.
package sampleinfo

// Sizes and thresholds, named and valued after comprestimator.c's #defines.
const (
	// BlockSize is the size, in bytes, of the smallest unit the sampler reads
	// and tests for zero-ness.
	BlockSize = 2048
	// ZlibBlockSize is the chunk size fed to the compressor on each call.
	ZlibBlockSize = 16384
	// OutBlockSize is the size of the simulated compressor output buffer;
	// once a sample's cumulative compressed output reaches this many bytes
	// the sample is considered closed.
	OutBlockSize = 2048
	// CompUnitSize is the notional size of the compression unit a storage
	// system would compress as a single stream (128MiB), used here only to
	// bound how far a random-mode sample may read ahead and as the batch
	// size of one exhaustive-mode pattern.
	CompUnitSize = 134217728
	// BlocksPerProc is the maximum number of offsets in one random-mode
	// pattern.
	BlocksPerProc = 50
	// MaxNumSample is the non-zero sample count at which the stopping rule
	// fires.
	MaxNumSample = 2000
	// ZeroBlockFactor multiplies MaxNumSample to give the zero-sample count
	// at which the stopping rule fires (20000 at the defaults above).
	ZeroBlockFactor = 10
	// MaxNumProcs is the largest concurrency the pool will accept.
	MaxNumProcs = 128
	// CompressionLevel is the deflate level the streaming adapter uses.
	CompressionLevel = 1
)

// CompressionInfo is the per-worker and aggregate sampling record. A worker
// owns one instance exclusively until it reports completion; the pool
// merges completed workers' instances into a single aggregate instance that
// nothing else writes to concurrently.
//
// CompressionRatio and CSquared are sums, not means: CompressionRatio is the
// sum over non-zero samples of (compressed_bytes / uncompressed_bytes), and
// the mean ratio is CompressionRatio / NumNonZeroBlocks, computed at report
// time. In exhaustive mode CompressionRatio holds a single pooled ratio
// multiplied by NumNonZeroBlocks (see internal/worker), not a true sum of
// independent samples, and CSquared is left at zero — it is meaningless in
// that mode.
type CompressionInfo struct {
	NumZeroBlocks    int64
	NumNonZeroBlocks int64
	TotalBlocksRead  int64
	CompressionRatio float64
	CSquared         float64
}

// Add merges o into the receiver, field by field. It is the Go equivalent
// of comprestimator.c's wait_for_process aggregation step.
func (c *CompressionInfo) Add(o CompressionInfo) {
	c.NumZeroBlocks += o.NumZeroBlocks
	c.NumNonZeroBlocks += o.NumNonZeroBlocks
	c.TotalBlocksRead += o.TotalBlocksRead
	c.CompressionRatio += o.CompressionRatio
	c.CSquared += o.CSquared
}

// TotalSamples is NumZeroBlocks + NumNonZeroBlocks.
func (c CompressionInfo) TotalSamples() int64 {
	return c.NumZeroBlocks + c.NumNonZeroBlocks
}
