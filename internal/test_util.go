// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package internal holds test fixture helpers shared across the other
// internal packages' test files, the way the original repo's
// internal/test_util.go did for its own decompression tests.
package internal

import (
	"fmt"
	"math/rand"
	"os"
	"time"
)

// fixdRandSeed is the seed GenPredictableRandomData always starts from,
// so two calls with the same size produce identical device fixtures.
const fixdRandSeed = 0x1234

var randSource rand.Source

func init() {
	randSeed := time.Now().UnixNano()
	fmt.Printf("rand seed for GenReproducibleRandomData: %v\n", randSeed)
	randSource = rand.NewSource(randSeed)
}

// GenPredictableRandomData generates random device content starting from
// a fixed, known seed, for tests that need byte-for-byte reproducible
// fixtures across runs.
func GenPredictableRandomData(size int) []byte {
	gen := rand.New(rand.NewSource(fixdRandSeed))
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(gen.Intn(256))
	}
	return out
}

// GenReproducibleRandomData uses the random seed printed out by this
// file's init function, for tests that want fresh-but-logged randomness
// rather than a fixed fixture.
func GenReproducibleRandomData(size int) []byte {
	gen := rand.New(randSource)
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(gen.Intn(256))
	}
	return out
}

// WriteDeviceFile writes data to filename, standing in for a block
// device in tests that exercise the internal/device package against a
// real file on disk rather than an in-memory io.ReaderAt.
func WriteDeviceFile(filename string, data []byte) error {
	if err := os.WriteFile(filename, data, 0o660); err != nil {
		return fmt.Errorf("write file: %v: %v", filename, err)
	}
	return nil
}

// FirstN returns at most the first n bytes of b.
func FirstN(n int, b []byte) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
