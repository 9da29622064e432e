// compress.go: Compression stage of the envelope pipeline.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	goerrors "github.com/agilira/go-errors"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz/lzma"
)

// Compressor names accepted by CompressorByName and Config.
const (
	CompressionGzip = "gzip"
	CompressionLZMA = "lzma"
	CompressionNone = "none"
)

// maxDecompressedSize bounds what Decompress will inflate.
const maxDecompressedSize = 64 << 20

// Compressor compresses plaintext before encryption. Both ends of an
// artifact must use the same Compressor.
type Compressor interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// GzipCompressor is the default compressor. It produces standard gzip
// members, the format WebCrypto hosts emit through CompressionStream.
type GzipCompressor struct {
	// Level is a gzip level; zero means gzip.DefaultCompression.
	Level int
}

// Name implements Compressor.
func (g GzipCompressor) Name() string { return CompressionGzip }

// Compress implements Compressor.
func (g GzipCompressor) Compress(data []byte) ([]byte, error) {
	level := g.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	buf := getBuffer()
	defer putBuffer(buf)

	w, err := gzip.NewWriterLevel(buf, level)
	if err != nil {
		return nil, compressError(err, "failed to create gzip writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, compressError(err, "failed to write gzip stream")
	}
	if err := w.Close(); err != nil {
		return nil, compressError(err, "failed to finish gzip stream")
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Decompress implements Compressor.
func (g GzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, decompressError(err, "failed to open gzip stream")
	}
	defer r.Close()
	return readBounded(r)
}

// LZMACompressor uses the classic LZMA format. It compresses JSON tighter
// than gzip at a higher CPU cost.
type LZMACompressor struct{}

// Name implements Compressor.
func (LZMACompressor) Name() string { return CompressionLZMA }

// Compress implements Compressor.
func (LZMACompressor) Compress(data []byte) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	w, err := lzma.NewWriter(buf)
	if err != nil {
		return nil, compressError(err, "failed to create lzma writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, compressError(err, "failed to write lzma stream")
	}
	if err := w.Close(); err != nil {
		return nil, compressError(err, "failed to finish lzma stream")
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Decompress implements Compressor.
func (LZMACompressor) Decompress(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, decompressError(err, "failed to open lzma stream")
	}
	return readBounded(r)
}

// NoCompression passes bytes through unchanged.
type NoCompression struct{}

// Name implements Compressor.
func (NoCompression) Name() string { return CompressionNone }

// Compress implements Compressor.
func (NoCompression) Compress(data []byte) ([]byte, error) { return bytes.Clone(data), nil }

// Decompress implements Compressor.
func (NoCompression) Decompress(data []byte) ([]byte, error) { return bytes.Clone(data), nil }

// CompressorByName returns the compressor registered under name.
// The empty name selects gzip.
func CompressorByName(name string) (Compressor, error) {
	switch strings.ToLower(name) {
	case "", CompressionGzip:
		return GzipCompressor{}, nil
	case CompressionLZMA:
		return LZMACompressor{}, nil
	case CompressionNone:
		return NoCompression{}, nil
	default:
		richErr := goerrors.New(ErrCodeInvalidArgument, fmt.Sprintf("unknown compressor %q", name))
		return nil, fail(ErrInvalidArgument, StageEncode, richErr)
	}
}

func readBounded(r io.Reader) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	n, err := buf.ReadFrom(io.LimitReader(r, maxDecompressedSize+1))
	if err != nil {
		return nil, decompressError(err, "failed to inflate data")
	}
	if n > maxDecompressedSize {
		return nil, decompressError(io.ErrShortBuffer, fmt.Sprintf("decompressed data exceeds %d bytes", maxDecompressedSize))
	}
	return bytes.Clone(buf.Bytes()), nil
}

func compressError(err error, msg string) error {
	return fail(ErrInvalidEncoding, StageEncode, goerrors.Wrap(err, ErrCodeCompress, msg))
}

func decompressError(err error, msg string) error {
	return fail(ErrInvalidEncoding, StageDecode, goerrors.Wrap(err, ErrCodeCompress, msg))
}
