// pool_test.go: Buffer pooling tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"bytes"
	"sync"
	"testing"
)

// TestBufferPoolBasic verifies basic get/put operations of the buffer pool
func TestBufferPoolBasic(t *testing.T) {
	buf := getBuffer()
	if buf == nil {
		t.Fatal("getBuffer returned nil")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d bytes", buf.Len())
	}
	buf.WriteString("hello")
	putBuffer(buf)

	again := getBuffer()
	if again.Len() != 0 {
		t.Errorf("pooled buffer not reset: %q", again.String())
	}
	putBuffer(again)

	putBuffer(nil)
}

// TestBufferPoolZeroesOnPut checks that secrets do not survive in pooled memory
func TestBufferPoolZeroesOnPut(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"Small (16B)", 16},
		{"Cache line (64B)", 64},
		{"Odd (1001B)", 1001},
		{"Large (32KB)", 32 * 1024},
		{"Oversized (128KB)", 128 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := getBuffer()
			buf.Write(bytes.Repeat([]byte{0xAB}, tt.size))
			backing := buf.Bytes()

			putBuffer(buf)

			for i, b := range backing {
				if b != 0 {
					t.Fatalf("byte %d not zeroed: %#x", i, b)
				}
			}
		})
	}
}

func TestClearBuffer(t *testing.T) {
	for _, size := range []int{0, 1, 7, 8, 63, 64, 65, 100, 4096} {
		b := bytes.Repeat([]byte{0xFF}, size)
		clearBuffer(b)
		for i, v := range b {
			if v != 0 {
				t.Fatalf("size %d: byte %d not cleared", size, i)
			}
		}
	}
}

func TestBufferPoolConcurrency(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := getBuffer()
				buf.WriteByte(byte(i))
				if buf.Len() != 1 {
					t.Errorf("unexpected length %d", buf.Len())
				}
				putBuffer(buf)
			}
		}(i)
	}
	wg.Wait()
}
