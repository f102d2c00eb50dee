// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package comprestimator

import (
	"time"

	"github.com/cosnicolaou/comprestimator/internal/sampleinfo"
)

// Progress is sent on the channel supplied to WithProgress once per
// reaped worker, mirroring pbzip2.Progress's role of reporting
// decompression events as they are reassembled in order. Unlike
// pbzip2.Progress, samplers finish in no particular order, so Reaped here
// is just a monotonically increasing reap count rather than a sequence
// number the caller can expect to see gaps in.
type Progress struct {
	Reaped int
	Info   sampleinfo.CompressionInfo
}

type config struct {
	concurrency int
	seed        int64
	exhaustive  bool
	progressCh  chan<- Progress
}

// Option configures a Run call, following the same functional-options
// shape as pbzip2.DecompressorOption.
type Option func(*config)

// WithConcurrency sets the maximum number of samplers running at once
// (spec.md's num_procs). The default is 1; values above
// sampleinfo.MaxNumProcs are clamped.
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
	}
}

// WithSeed fixes the PRNG seed random-mode sampling uses, making a run
// repeatable. The default is the current wall-clock time, matching
// comprestimator.c's behavior when -s is omitted.
func WithSeed(seed int64) Option {
	return func(c *config) {
		c.seed = seed
	}
}

// WithExhaustive switches from random sampling to the sequential
// diagnostic walk described in spec.md §4.5.
func WithExhaustive(v bool) Option {
	return func(c *config) {
		c.exhaustive = v
	}
}

// WithProgress requests a Progress value after every reaped worker.
// Sends are non-blocking from Run's point of view only insofar as the
// caller is expected to keep the channel drained; a full channel will
// stall the driver loop exactly as a full pbzip2.Progress channel would
// stall decompression.
func WithProgress(ch chan<- Progress) Option {
	return func(c *config) {
		c.progressCh = ch
	}
}

func newConfig(opts []Option) config {
	c := config{
		concurrency: 1,
		seed:        time.Now().UnixNano(),
	}
	for _, fn := range opts {
		fn(&c)
	}
	// concurrency == 0 is a valid configuration (spec.md §6, §8): it
	// spawns no samplers and the run terminates immediately with an
	// all-zero aggregate, rather than being silently promoted to 1.
	if c.concurrency < 0 {
		c.concurrency = 0
	}
	if c.concurrency > sampleinfo.MaxNumProcs {
		c.concurrency = sampleinfo.MaxNumProcs
	}
	return c
}
