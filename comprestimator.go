// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package comprestimator estimates, for a block storage device, the
// fraction of all-zero blocks and the average achievable deflate-style
// compression ratio of the non-zero blocks, without reading the whole
// device. It reports both with Hoeffding confidence bounds.
//
// Sampling runs across a pool of concurrent goroutines, each reading the
// device independently and writing to its own slot of a shared
// aggregate; this is the goroutine-based counterpart of
// comprestimator.c's fork-per-worker, shared-memory design, following
// the same pattern pbzip2's Decompressor uses for its worker pool (see
// parallel.go).
package comprestimator

import (
	"context"
	"errors"
	"math/rand"

	"github.com/cosnicolaou/comprestimator/internal/pattern"
	"github.com/cosnicolaou/comprestimator/internal/sampleinfo"
	"github.com/cosnicolaou/comprestimator/internal/samplepool"
	"github.com/cosnicolaou/comprestimator/internal/stats"
	"github.com/cosnicolaou/comprestimator/internal/worker"
)

// ErrDeviceTooSmall is returned by Run when the device is smaller than a
// single block, matching comprestimator.c's "device size is too small"
// fatal startup check (spec.md §8).
var ErrDeviceTooSmall = errors.New("comprestimator: device size is too small")

// CompressionInfo is the aggregate counters accumulated across all
// samplers in a run: counts of zero/non-zero/total blocks read, and the
// sum (not mean) of per-sample compression ratios and their squares.
type CompressionInfo = sampleinfo.CompressionInfo

// Report is the derived percentages, projected sizes, and confidence
// bounds computed from a final CompressionInfo (spec.md §4.7).
type Report = stats.Report

// Summary is what Run returns: the raw aggregate plus its derived
// report.
type Summary struct {
	Info   CompressionInfo
	Report Report
}

// OpenFunc opens one independent handle onto the device being sampled,
// returning a positional reader and a closer. Run calls it once per
// spawned sampler — "the device is opened independently by each worker"
// (spec.md §5) — so OpenFunc implementations that wrap a single seek
// position (such as internal/device.Open against an S3 object) are safe
// to use even though the resulting io.ReaderAt is not itself safe for
// concurrent use.
type OpenFunc func() (ReaderAt, Closer, error)

// ReaderAt is the minimal device read contract: positional reads only
// (spec.md §6).
type ReaderAt interface {
	ReadAt(p []byte, off int64) (int, error)
}

// Closer releases whatever resource an OpenFunc call opened.
type Closer interface {
	Close() error
}

// CloserFunc adapts a plain function to Closer, for OpenFunc
// implementations (such as ones built on internal/device, whose Close
// takes a context) that need to bind extra arguments via a closure.
type CloserFunc func() error

// Close calls f.
func (f CloserFunc) Close() error {
	return f()
}

// Run samples deviceSizeBytes worth of device reachable through open,
// until the pattern generator's stopping rule fires (or, in exhaustive
// mode, the device is exhausted), and returns the aggregate result. Run
// blocks until the run completes, ctx is cancelled, or a sampler reports
// an unrecoverable error.
//
// On cancellation, Run stops spawning new samplers and drains whatever
// is already running before returning ctx.Err(); it never abandons a
// goroutine that is still writing into its slot.
func Run(ctx context.Context, open OpenFunc, deviceSizeBytes int64, opts ...Option) (Summary, error) {
	if deviceSizeBytes < sampleinfo.BlockSize {
		return Summary{}, ErrDeviceTooSmall
	}
	cfg := newConfig(opts)
	numChunks := deviceSizeBytes / sampleinfo.BlockSize

	if cfg.concurrency == 0 {
		// No samplers can ever run; nothing to do but report the
		// (zero-valued) aggregate (spec.md §8: num_procs=0 "equivalent to
		// 'spawn none'; no progress possible; must terminate cleanly").
		return summarize(samplepool.New(0), deviceSizeBytes), nil
	}

	var gen pattern.Generator
	if cfg.exhaustive {
		gen = pattern.NewExhaustive(numChunks)
	} else {
		gen = pattern.NewRandom(cfg.seed, numChunks, cfg.concurrency)
	}

	pool := samplepool.New(cfg.concurrency)
	rng := rand.New(rand.NewSource(cfg.seed))
	reaped := 0

	for {
		if err := ctx.Err(); err != nil {
			return drainAndSummarize(pool, deviceSizeBytes, cfg, &reaped, err)
		}
		batch := gen.Next(pool.Active(), pool.Aggregate())
		if len(batch) == 0 {
			break
		}
		if pool.Saturated() {
			if err := pool.Reap(ctx); err != nil {
				return drainAndSummarize(pool, deviceSizeBytes, cfg, &reaped, err)
			}
			reaped++
			notify(cfg, pool, reaped)
			if err := pool.Err(); err != nil {
				return drainAndSummarize(pool, deviceSizeBytes, cfg, &reaped, err)
			}
		}
		spawnSampler(pool, open, cfg.exhaustive, rng.Int63(), batch)
	}

	if err := drain(ctx, pool, cfg, &reaped); err != nil {
		return drainAndSummarize(pool, deviceSizeBytes, cfg, &reaped, err)
	}
	if err := pool.Err(); err != nil {
		return summarize(pool, deviceSizeBytes), err
	}
	return summarize(pool, deviceSizeBytes), nil
}

// drain reaps every remaining slot in pool one at a time, notifying after
// each reap exactly as the main loop does, so the intermediate CSV/log
// stream gets a row for every reaped sampler including the final batch —
// matching comprestimator.c's print_status call after every
// wait_for_process, drain loop included (spec.md §4.6, §4.8).
func drain(ctx context.Context, pool *samplepool.Pool, cfg config, reaped *int) error {
	for pool.Active() > 0 {
		if err := pool.Reap(ctx); err != nil {
			return err
		}
		*reaped++
		notify(cfg, pool, *reaped)
	}
	return nil
}

func spawnSampler(pool *samplepool.Pool, open OpenFunc, exhaustive bool, seed int64, batch []int64) {
	pool.Spawn(func() (sampleinfo.CompressionInfo, error) {
		dev, closer, err := open()
		if err != nil {
			return sampleinfo.CompressionInfo{}, err
		}
		defer closer.Close()
		if exhaustive {
			return worker.RunExhaustive(dev, batch)
		}
		return worker.RunRandom(dev, batch, rand.New(rand.NewSource(seed)))
	})
}

// drainAndSummarize is used on the cancellation/error exit path. It
// drains whatever samplers are already in flight against a fresh,
// never-cancelled context — a cancelled caller context should still let
// already-spawned goroutines finish and report into their slots rather
// than being abandoned mid-write — then returns the best summary
// available alongside the original error.
func drainAndSummarize(pool *samplepool.Pool, deviceSizeBytes int64, cfg config, reaped *int, origErr error) (Summary, error) {
	_ = drain(context.Background(), pool, cfg, reaped)
	return summarize(pool, deviceSizeBytes), origErr
}

func summarize(pool *samplepool.Pool, deviceSizeBytes int64) Summary {
	info := pool.Aggregate()
	return Summary{Info: info, Report: stats.Compute(info, deviceSizeBytes)}
}

func notify(cfg config, pool *samplepool.Pool, reaped int) {
	if cfg.progressCh == nil {
		return
	}
	cfg.progressCh <- Progress{Reaped: reaped, Info: pool.Aggregate()}
}
