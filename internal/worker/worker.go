// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package worker implements the per-batch sampling loop that runs inside
// one pool slot: for each offset in a pattern, read the block, short
// circuit all-zero blocks, and otherwise feed a randomly-offset tail of the
// block (and however much more of the device is needed to fill the
// simulated compressor output buffer) into a fresh streaming compression
// session. This is the Go rendition of comprestimator.c's
// compress_chunk_random and compress_chunks_sequential.
package worker

import (
	"errors"
	"io"
	"math/rand"

	"github.com/cosnicolaou/comprestimator/internal/compressor"
	"github.com/cosnicolaou/comprestimator/internal/sampleinfo"
	"github.com/cosnicolaou/comprestimator/internal/zeroblock"
)

// readBlock reads exactly sampleinfo.BlockSize bytes at offset. It returns
// (false, nil) if the device ended before a full block could be read,
// which random-mode sampling and exhaustive-mode scanning both treat as
// "stop, there is nothing more to read here" rather than an error.
func readBlock(dev io.ReaderAt, offset int64, buf []byte) (ok bool, err error) {
	n, err := dev.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	if n < len(buf) {
		return false, nil
	}
	return true, nil
}

// RunRandom executes one random-mode pattern (spec.md §4.4) and returns the
// CompressionInfo it accumulated. rng is used only for the per-sample tail
// offset; the pattern's own offsets were already chosen by the pattern
// generator.
func RunRandom(dev io.ReaderAt, pattern []int64, rng *rand.Rand) (sampleinfo.CompressionInfo, error) {
	var info sampleinfo.CompressionInfo
	inbuf := make([]byte, sampleinfo.BlockSize)
	for _, offset := range pattern {
		if err := sampleOneRandom(dev, offset, inbuf, rng, &info); err != nil {
			return info, err
		}
	}
	return info, nil
}

func sampleOneRandom(dev io.ReaderAt, startOffset int64, inbuf []byte, rng *rand.Rand, info *sampleinfo.CompressionInfo) error {
	ok, err := readBlock(dev, startOffset, inbuf)
	if err != nil {
		return err
	}
	info.TotalBlocksRead++
	if !ok {
		// Device ended on the very block this sample was supposed to probe;
		// nothing to count as zero or non-zero.
		return nil
	}
	if zeroblock.IsZero(inbuf) {
		info.NumZeroBlocks++
		return nil
	}
	info.NumNonZeroBlocks++

	r := rng.Intn(sampleinfo.BlockSize)
	bufferSize := sampleinfo.BlockSize - r
	bufptr := inbuf[r:sampleinfo.BlockSize]
	// See SPEC_FULL.md §9: reproduces the source's 2x guard literally.
	endOfCompStream := startOffset + 2*sampleinfo.CompUnitSize
	readLocation := startOffset

	a := compressor.New()
	defer a.Close()

sampling:
	for {
		avail := bufferSize
		if avail > sampleinfo.ZlibBlockSize {
			avail = sampleinfo.ZlibBlockSize
		}
		chunk := bufptr[:avail]
		consumed, err := a.Feed(chunk)
		if err != nil {
			return err
		}
		if _, err := a.SyncFlush(); err != nil {
			return err
		}
		bufptr = bufptr[consumed:]
		bufferSize -= consumed

		if a.Full() {
			break sampling
		}

		if bufferSize <= 0 {
			// Keep reading forward past zero blocks, still counting them
			// in TotalBlocksRead, until either a non-zero block turns up
			// or the read-ahead guard trips; a read that itself crosses
			// the guard is discarded even if it happened to land on a
			// non-zero block, matching compress_chunk_random's do/while.
			for {
				readLocation += sampleinfo.BlockSize
				ok, err := readBlock(dev, readLocation, inbuf)
				if err != nil {
					return err
				}
				info.TotalBlocksRead++
				if !ok {
					break sampling
				}
				isZero := zeroblock.IsZero(inbuf)
				if readLocation >= endOfCompStream {
					break sampling
				}
				if !isZero {
					bufptr = inbuf
					break
				}
			}
			bufferSize = sampleinfo.BlockSize
		}
	}

	totalIn := a.TotalIn()
	totalOut := a.TotalOut()
	if totalIn > 0 {
		ratio := float64(totalOut) / float64(totalIn)
		info.CompressionRatio += ratio
		info.CSquared += ratio * ratio
	}
	return nil
}

// RunExhaustive executes one exhaustive-mode batch (spec.md §4.5): a single
// long-running compressor walks the pattern, resetting whenever the
// simulated output buffer fills and pooling totals across resets. The
// result's CompressionRatio holds the pooled ratio multiplied by
// NumNonZeroBlocks, matching the aggregate slot's sum-of-ratios convention;
// CSquared is left at zero, since exhaustive mode never produces
// independent per-sample ratios to square and sum.
func RunExhaustive(dev io.ReaderAt, pattern []int64) (sampleinfo.CompressionInfo, error) {
	var info sampleinfo.CompressionInfo
	inbuf := make([]byte, sampleinfo.BlockSize)
	a := compressor.New()
	defer a.Close()

	var pooledIn, pooledOut int64
	var bufptr []byte
	bufferSize := 0
	idx := 0

scan:
	for {
		if bufferSize <= 0 {
			for {
				if idx == len(pattern) {
					break scan
				}
				ok, err := readBlock(dev, pattern[idx], inbuf)
				idx++
				if err != nil {
					return info, err
				}
				if !ok {
					break scan
				}
				if zeroblock.IsZero(inbuf) {
					info.NumZeroBlocks++
					continue
				}
				break
			}
			info.NumNonZeroBlocks++
			bufferSize = sampleinfo.BlockSize
			bufptr = inbuf
		}

		avail := bufferSize
		if avail > sampleinfo.ZlibBlockSize {
			avail = sampleinfo.ZlibBlockSize
		}
		consumed, err := a.Feed(bufptr[:avail])
		if err != nil {
			return info, err
		}
		if _, err := a.SyncFlush(); err != nil {
			return info, err
		}
		bufptr = bufptr[consumed:]
		bufferSize -= consumed

		if a.Full() {
			pooledIn += a.TotalIn()
			pooledOut += a.TotalOut()
			a.Reset()
		}
	}

	// The final, still-open session (never hit a.Full()) is deliberately
	// left out of pooledIn/pooledOut: comprestimator.c's equivalent
	// zlib_input_bytes += strm.total_in accumulation at its "done" label is
	// commented out in the source, so the pooled ratio only ever reflects
	// complete OutBlockSize-filling units.
	info.TotalBlocksRead = info.NumZeroBlocks + info.NumNonZeroBlocks
	if pooledIn > 0 {
		ratio := float64(pooledOut) / float64(pooledIn)
		info.CompressionRatio = ratio * float64(info.NumNonZeroBlocks)
	}
	return info, nil
}
