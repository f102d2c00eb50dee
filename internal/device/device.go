// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package device opens the block device or file being estimated,
// whatever its location, as an io.ReaderAt plus a byte size. This
// generalizes cmd/pbzip2/main.go's openFileOrURL: that helper only ever
// needed a streaming io.Reader because bzip2 decompression is
// sequential, but sampling needs positional reads at arbitrary offsets,
// so here the grailbio file handle's ReaderAt is used directly instead
// of its sequential Reader.
package device

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
)

func init() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

// Handle is an open device: a positional reader plus its total size and a
// Close method to release whatever local or remote resource backs it. A
// Handle is not safe for concurrent use — per spec, each worker opens its
// own Handle on the same device path rather than sharing one.
type Handle struct {
	io.ReaderAt
	Size  int64
	close func(context.Context) error
}

// Close releases the handle. It is safe to call once; comprestimator's
// driver calls it via defer immediately after Open succeeds.
func (h *Handle) Close(ctx context.Context) error {
	if h.close == nil {
		return nil
	}
	return h.close(ctx)
}

// Open opens name — a local path or an s3://bucket/key URL — for
// positional reads and reports its size. Size is obtained from the
// backing file system's own stat call (grailbio's file.Stat); when that
// reports zero, as it does for block devices, Open seeks to the end of
// the device instead, like comprestimator.c's lseek(fd, 0, SEEK_END)
// probe. Neither reads the device merely to learn how big it is.
func Open(ctx context.Context, name string) (*Handle, error) {
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("stat %v: %w", name, err)
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open %v: %w", name, err)
	}
	rs := f.Reader(ctx)
	size := info.Size()
	if size == 0 {
		if size, err = rs.Seek(0, io.SeekEnd); err != nil {
			f.Close(ctx)
			return nil, fmt.Errorf("seek %v: %w", name, err)
		}
	}
	return &Handle{
		ReaderAt: &seekReaderAt{rs: rs},
		Size:     size,
		close:    f.Close,
	}, nil
}

// seekReaderAt adapts an io.ReadSeeker — what grailbio's file.File.Reader
// returns — to io.ReaderAt by seeking before every read. This is the
// trade the device package makes in exchange for grailbio's uniform
// local/S3/URL file access: callers only ever issue one read at a time
// per Handle, so a seek-then-read pair is equivalent to a true positional
// read here.
type seekReaderAt struct {
	rs io.ReadSeeker
}

// ReadAt matches the pread(2) contract the worker's readBlock expects: a
// read that runs off the end of the device returns the short count it
// managed plus io.EOF, never io.ErrUnexpectedEOF. io.ReadFull reports the
// latter on a partial trailing read, which would otherwise abort a whole
// run for any device whose size is not an exact multiple of the block
// size (spec.md §6's device contract explicitly allows plain files, not
// just block devices sized in blocks).
func (s *seekReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(s.rs, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}
