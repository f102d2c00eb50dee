// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package compressor wraps klauspost/compress/flate into the "feed a
// sample, record input/output byte counts" streaming contract described in
// spec.md §4.3: init at a fixed level, feed bytes, sync-flush without
// ending the stream, and track cumulative input/output across the whole
// session so that a fixed-size simulated output buffer can be watched for
// exhaustion.
//
// klauspost/compress/flate is used in preference to the standard library's
// compress/flate because its Flush implementation avoids rebuilding Huffman
// tables on every call, which matters here: a single sample issues a Flush
// after every ZlibBlockSize-sized chunk fed to it (spec.md §4.4), so a
// sample that reads ahead for several blocks can flush many times.
package compressor

import (
	"github.com/klauspost/compress/flate"

	"github.com/cosnicolaou/comprestimator/internal/sampleinfo"
)

// countingWriter is the sink the flate.Writer writes to; it only counts
// bytes, which is all a sample needs (the compressed bytes themselves are
// never retained or reported).
type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// Adapter is one streaming compression session. It is not safe for
// concurrent use; each worker owns one Adapter at a time.
type Adapter struct {
	sink    *countingWriter
	w       *flate.Writer
	totalIn int64
}

// New starts a new compression session at sampleinfo.CompressionLevel.
func New() *Adapter {
	sink := &countingWriter{}
	w, err := flate.NewWriter(sink, sampleinfo.CompressionLevel)
	if err != nil {
		// Level 1 is always valid for flate.NewWriter; this can't happen.
		panic(err)
	}
	return &Adapter{sink: sink, w: w}
}

// Feed writes p into the compression stream, consuming all of it. It
// returns the number of bytes consumed (always len(p) for a non-error
// return, mirroring zlib's synchronous feed/consumed contract where the
// caller hands over a bounded ZlibBlockSize chunk at a time).
func (a *Adapter) Feed(p []byte) (int, error) {
	n, err := a.w.Write(p)
	a.totalIn += int64(n)
	return n, err
}

// SyncFlush flushes all pending compressed output to the session's output
// counter without ending the stream (Z_SYNC_FLUSH semantics) and returns
// the number of bytes that flush emitted.
func (a *Adapter) SyncFlush() (int, error) {
	before := a.sink.n
	if err := a.w.Flush(); err != nil {
		return 0, err
	}
	return int(a.sink.n - before), nil
}

// Full reports whether the session's simulated OutBlockSize-sized output
// buffer has filled, i.e. whether zlib's avail_out would now be zero.
func (a *Adapter) Full() bool {
	return a.sink.n >= sampleinfo.OutBlockSize
}

// TotalIn is the cumulative number of bytes fed into the stream this
// session.
func (a *Adapter) TotalIn() int64 {
	return a.totalIn
}

// TotalOut is the cumulative number of compressed bytes emitted this
// session.
func (a *Adapter) TotalOut() int64 {
	return a.sink.n
}

// Reset starts a new session reusing the underlying flate state, the
// equivalent of zlib's deflateReset: used in exhaustive mode once the
// output buffer fills so scanning can continue under a fresh session while
// still pooling totals across the whole walk.
func (a *Adapter) Reset() {
	a.sink.n = 0
	a.totalIn = 0
	a.w.Reset(a.sink)
}

// Close ends the compression session, the equivalent of zlib's deflateEnd.
func (a *Adapter) Close() error {
	return a.w.Close()
}
