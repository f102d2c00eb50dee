// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package zeroblock implements the all-zero-block test used to short
// circuit compression of elided blocks.
package zeroblock

import "bytes"

// IsZero reports whether every byte in buf is 0x00. It runs in O(len(buf))
// and allocates nothing, mirroring comprestimator.c's is_zero_block: check
// the first byte, then compare the buffer against a one-byte-shifted view
// of itself.
func IsZero(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	return buf[0] == 0 && bytes.Equal(buf[:len(buf)-1], buf[1:])
}
