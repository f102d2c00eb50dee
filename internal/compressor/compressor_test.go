// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package compressor_test

import (
	"bytes"
	"testing"

	"github.com/cosnicolaou/comprestimator/internal/compressor"
)

func TestFeedAndFlushTracksCounts(t *testing.T) {
	a := compressor.New()
	data := bytes.Repeat([]byte("ABCD"), 4096) // 16KB, highly compressible
	n, err := a.Feed(data)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if n != len(data) {
		t.Fatalf("Feed consumed %d, want %d", n, len(data))
	}
	emitted, err := a.SyncFlush()
	if err != nil {
		t.Fatalf("SyncFlush: %v", err)
	}
	if emitted <= 0 {
		t.Fatalf("expected a sync flush on compressible data to emit output, got %d", emitted)
	}
	if a.TotalIn() != int64(len(data)) {
		t.Errorf("TotalIn = %d, want %d", a.TotalIn(), len(data))
	}
	if a.TotalOut() != int64(emitted) {
		t.Errorf("TotalOut = %d, want %d", a.TotalOut(), emitted)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFullAfterEnoughOutput(t *testing.T) {
	a := compressor.New()
	defer a.Close()
	random := make([]byte, 1<<20)
	for i := range random {
		random[i] = byte(i*2654435761 + i>>3)
	}
	for i := 0; i < len(random); i += 16384 {
		end := i + 16384
		if end > len(random) {
			end = len(random)
		}
		if _, err := a.Feed(random[i:end]); err != nil {
			t.Fatalf("Feed: %v", err)
		}
		if _, err := a.SyncFlush(); err != nil {
			t.Fatalf("SyncFlush: %v", err)
		}
		if a.Full() {
			return
		}
	}
	t.Fatal("expected Full() to become true before exhausting 1MB of input")
}

func TestResetStartsFreshSession(t *testing.T) {
	a := compressor.New()
	defer a.Close()
	if _, err := a.Feed(bytes.Repeat([]byte{0xAB}, 4096)); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if _, err := a.SyncFlush(); err != nil {
		t.Fatalf("SyncFlush: %v", err)
	}
	a.Reset()
	if a.TotalIn() != 0 || a.TotalOut() != 0 {
		t.Errorf("Reset did not clear counters: in=%d out=%d", a.TotalIn(), a.TotalOut())
	}
	if a.Full() {
		t.Errorf("freshly reset session should not be full")
	}
}
