// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package samplepool runs a fixed-size pool of concurrent samplers, each
// occupying a disjoint slot of a shared slice, and reaps them as they
// finish. This replaces comprestimator.c's fork/shared-memory/wait model:
// where the original gave each child process its own slot of an mmap'd
// array and reaped it with wait(), a slot here is a slice index owned by
// exactly one goroutine at a time, and reaping is a channel receive. Since
// only one goroutine ever writes a given slot, and the pool only reads a
// slot after receiving that slot's done channel, the happens-before edge
// from the channel receive is all the synchronization this needs; no
// locks guard the slice itself.
package samplepool

import (
	"context"
	"sync/atomic"

	"github.com/cosnicolaou/comprestimator/internal/sampleinfo"
)

// numActiveSamplers is the pool-wide count of currently running sampler
// goroutines, mirroring pbzip2's package-level numDecompressionGoRoutines
// counter.
var numActiveSamplers int64

// NumActiveSamplers returns the number of sampler goroutines currently
// running across all pools in this process.
func NumActiveSamplers() int {
	return int(atomic.LoadInt64(&numActiveSamplers))
}

// SampleFunc runs one sampler to completion and returns the
// CompressionInfo it accumulated. Callers bind the pattern, device, and a
// freshly-seeded *rand.Rand into a closure per call to Spawn, the way
// worker.RunRandom and worker.RunExhaustive are used by the driver loop in
// the root package.
type SampleFunc func() (sampleinfo.CompressionInfo, error)

type slot struct {
	info sampleinfo.CompressionInfo
	err  error
	done chan struct{}
}

// Pool manages up to size concurrently running samplers. Each call to
// Spawn occupies one free slot; Reap blocks until at least one occupied
// slot finishes, merges its result into the running aggregate, and frees
// the slot for reuse.
type Pool struct {
	slots    []slot
	active   int
	agg      sampleinfo.CompressionInfo
	firstErr error
}

// New creates a pool of the given size; size is the maximum number of
// samplers that may run concurrently (comprestimator.c's num_procs).
func New(size int) *Pool {
	return &Pool{
		slots: make([]slot, size),
	}
}

// Size is the pool's slot capacity.
func (p *Pool) Size() int {
	return len(p.slots)
}

// Active is the number of slots currently occupied by a running sampler.
func (p *Pool) Active() int {
	return p.active
}

// Saturated reports whether every slot is currently occupied.
func (p *Pool) Saturated() bool {
	return p.active >= len(p.slots)
}

// Aggregate returns the CompressionInfo merged in from every sampler
// reaped so far.
func (p *Pool) Aggregate() sampleinfo.CompressionInfo {
	return p.agg
}

// Spawn starts sample running in a free slot. It panics if the pool is
// already saturated; callers must check Saturated (or call Reap first)
// before spawning, exactly as comprestimator.c's main loop only forks a
// new child once a process table slot is free.
func (p *Pool) Spawn(sample SampleFunc) {
	idx := p.freeSlot()
	s := &p.slots[idx]
	s.info = sampleinfo.CompressionInfo{}
	s.err = nil
	s.done = make(chan struct{})
	p.active++

	done := s.done
	go func() {
		atomic.AddInt64(&numActiveSamplers, 1)
		defer atomic.AddInt64(&numActiveSamplers, -1)
		info, err := sample()
		p.slots[idx].info = info
		p.slots[idx].err = err
		close(done)
	}()
}

func (p *Pool) freeSlot() int {
	for i := range p.slots {
		if p.slots[i].done == nil {
			return i
		}
	}
	panic("samplepool: Spawn called on a saturated pool")
}

// Err returns the first non-nil error returned by any sampler reaped so
// far, or nil if none has failed yet. Matching comprestimator.c's
// behavior of letting already-spawned children finish even after one
// reports a failure, a failing sampler does not stop Reap/Drain from
// reaping the rest; callers check Err (typically after Drain) to decide
// whether the run as a whole failed.
func (p *Pool) Err() error {
	return p.firstErr
}

// Reap blocks until one occupied slot finishes, merges its CompressionInfo
// into the running aggregate, and frees the slot. It returns ctx.Err()
// without reaping anything if ctx is done first; it does not return a
// reaped sampler's own error directly (see Err).
func (p *Pool) Reap(ctx context.Context) error {
	if p.active == 0 {
		return nil
	}
	cases := make([]int, 0, p.active)
	for i := range p.slots {
		if p.slots[i].done != nil {
			cases = append(cases, i)
		}
	}
	idx, err := p.waitAny(ctx, cases)
	if err != nil {
		return err
	}
	p.reapSlot(idx)
	return nil
}

// Drain reaps every still-running slot, in no particular order. It
// returns ctx.Err() if ctx is done before every slot has been reaped,
// leaving the remaining slots occupied for a later Drain call made with a
// fresh context; callers then check Err for sampler failures.
func (p *Pool) Drain(ctx context.Context) error {
	for p.active > 0 {
		if err := p.Reap(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) reapSlot(idx int) {
	s := &p.slots[idx]
	p.agg.Add(s.info)
	if s.err != nil && p.firstErr == nil {
		p.firstErr = s.err
	}
	s.done = nil
	p.active--
}

// waitAny blocks until the slot at one of the given indices finishes (its
// done channel closes) or ctx is done, whichever happens first.
func (p *Pool) waitAny(ctx context.Context, indices []int) (int, error) {
	// A reflect.Select could merge these dynamically, but the pool sizes
	// used here are small (MaxNumProcs, spec'd at 128). A single active
	// slot is waited on directly, without allocating; with more than one,
	// a watcher goroutine per slot forwards the first finished index over
	// a buffered channel.
	if len(indices) == 1 {
		select {
		case <-p.slots[indices[0]].done:
			return indices[0], nil
		case <-ctx.Done():
			return -1, ctx.Err()
		}
	}
	result := make(chan int, len(indices))
	for _, idx := range indices {
		idx := idx
		go func() {
			select {
			case <-p.slots[idx].done:
				select {
				case result <- idx:
				default:
				}
			case <-ctx.Done():
			}
		}()
	}
	select {
	case idx := <-result:
		return idx, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}
