// pool.go: Buffer pooling for JSON and compression stages
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"bytes"
	"sync"
)

// maxPooledBufferSize caps what goes back into the pool; larger buffers are
// left to the GC so one big resource does not pin memory forever.
const maxPooledBufferSize = 64 * 1024

// Buffers hold plaintext JSON and decompressed resources, so they are
// zeroed before they are reused.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// getBuffer retrieves an empty buffer from the pool
func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer wipes the written region and returns the buffer to the pool
func putBuffer(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	written := buf.Bytes()
	clearBuffer(written[:cap(written)])
	buf.Reset()
	if buf.Cap() > maxPooledBufferSize {
		return
	}
	bufferPool.Put(buf)
}

// clearBuffer zeroes b; large buffers are cleared a cache line at a time
func clearBuffer(b []byte) {
	if len(b) <= 64 {
		Zeroize(b)
		return
	}

	i := 0
	for i < len(b)-7 {
		b[i] = 0
		b[i+1] = 0
		b[i+2] = 0
		b[i+3] = 0
		b[i+4] = 0
		b[i+5] = 0
		b[i+6] = 0
		b[i+7] = 0
		i += 8
	}
	for i < len(b) {
		b[i] = 0
		i++
	}
}
