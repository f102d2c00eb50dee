// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pattern generates the sequences of block offsets that workers
// probe, in both the default random mode and the sequential exhaustive
// diagnostic mode described in comprestimator.c's get_pattern.
package pattern

import (
	"math/rand"

	"github.com/cosnicolaou/comprestimator/internal/sampleinfo"
)

// Generator produces successive batches of block offsets (byte positions,
// multiples of sampleinfo.BlockSize) for the pool to hand to new workers.
// Next returns nil once the generator's stopping rule is satisfied.
type Generator interface {
	Next(activeProcs int, aggregate sampleinfo.CompressionInfo) []int64
}

// Random returns the default sample-pattern generator. Offsets are drawn
// with replacement from [0, numChunks) using a PRNG seeded with seed, so
// that a fixed seed and a fixed numProcs reproduce the same sequence of
// patterns (comprestimator.c's determinism guarantee, spec.md §4.2).
type Random struct {
	rng       *rand.Rand
	numChunks int64
	numProcs  int
}

// NewRandom constructs a Random pattern generator. numProcs must be >= 1;
// the caller is responsible for not driving a pool with zero workers.
func NewRandom(seed int64, numChunks int64, numProcs int) *Random {
	return &Random{
		rng:       rand.New(rand.NewSource(seed)),
		numChunks: numChunks,
		numProcs:  numProcs,
	}
}

// Next implements Generator. It applies the ramp-up throttle and the
// MAX_NUM_SAMPLE/ZERO_BLOCK_FACTOR stopping rule from spec.md §4.2.
func (g *Random) Next(activeProcs int, aggregate sampleinfo.CompressionInfo) []int64 {
	if aggregate.NumNonZeroBlocks >= sampleinfo.MaxNumSample ||
		aggregate.NumZeroBlocks >= sampleinfo.MaxNumSample*sampleinfo.ZeroBlockFactor {
		return nil
	}
	// Ramp-up throttle: stagger early batches so workers don't all finish
	// at once. Matches comprestimator.c's get_pattern literally, including
	// its rounding towards zero for small activeProcs/large numProcs
	// combinations. A batch of size 0 here is indistinguishable from the
	// stopping rule to the driver loop (both return an empty pattern), so
	// for numProcs > BlocksPerProc the very first call can end the run
	// before any sampling happens — a faithfully reproduced quirk of the
	// source, not a distinct "try again later" signal.
	batch := int(float64(activeProcs+1) / float64(g.numProcs) * sampleinfo.BlocksPerProc)
	if batch > sampleinfo.BlocksPerProc {
		batch = sampleinfo.BlocksPerProc
	}
	if batch < 0 {
		batch = 0
	}
	offsets := make([]int64, batch)
	for i := range offsets {
		offsets[i] = g.rng.Int63n(g.numChunks) * sampleinfo.BlockSize
	}
	return offsets
}

// Exhaustive walks the device sequentially, a CompUnitSize-sized batch of
// consecutive offsets per call, maintaining its cursor across calls. It is
// the diagnostic mode of spec.md §4.2.
type Exhaustive struct {
	numChunks int64
	curChunk  int64
}

// NewExhaustive constructs an Exhaustive pattern generator over a device of
// numChunks blocks.
func NewExhaustive(numChunks int64) *Exhaustive {
	return &Exhaustive{numChunks: numChunks}
}

// Next implements Generator. The aggregate argument is ignored: exhaustive
// mode stops only when the device is exhausted.
func (g *Exhaustive) Next(int, sampleinfo.CompressionInfo) []int64 {
	const maxBlocks = sampleinfo.CompUnitSize / sampleinfo.BlockSize
	if g.curChunk >= g.numChunks {
		return nil
	}
	n := g.numChunks - g.curChunk
	if n > maxBlocks {
		n = maxBlocks
	}
	offsets := make([]int64, n)
	for i := range offsets {
		offsets[i] = g.curChunk * sampleinfo.BlockSize
		g.curChunk++
	}
	return offsets
}
