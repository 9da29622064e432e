// codec.go: Byte codec for UTF-8, JSON and base64url.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	goerrors "github.com/agilira/go-errors"
)

// FromString encodes text as UTF-8 bytes.
func FromString(text string) []byte {
	return []byte(text)
}

// ToString decodes UTF-8 bytes. Invalid UTF-8 is rejected.
func ToString(b []byte) (string, error) {
	if !utf8.Valid(b) {
		richErr := goerrors.New(ErrCodeDecode, "bytes are not valid UTF-8")
		return "", fail(ErrInvalidEncoding, StageDecode, richErr)
	}
	return string(b), nil
}

// FromJSON serializes v to UTF-8 JSON bytes.
//
// HTML characters are not escaped and no trailing newline is written, so
// the bytes match what a JavaScript host produces with JSON.stringify for
// the same logical value. Maps serialize with sorted keys and structs in
// field order; the result is only as canonical as that.
func FromJSON(v any) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		richErr := goerrors.Wrap(err, ErrCodeEncode, "failed to stringify value")
		return nil, fail(ErrInvalidEncoding, StageEncode, richErr)
	}
	return bytes.Clone(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

// ToJSON parses UTF-8 JSON bytes into v. Numbers decode as json.Number when
// the target is untyped, so they round-trip exactly. Trailing data after the
// first value is rejected.
func ToJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		richErr := goerrors.Wrap(err, ErrCodeDecode, "failed to parse JSON")
		return fail(ErrInvalidEncoding, StageDecode, richErr)
	}
	if _, err := dec.Token(); err != io.EOF {
		richErr := goerrors.New(ErrCodeDecode, "unexpected data after JSON value")
		return fail(ErrInvalidEncoding, StageDecode, richErr)
	}
	return nil
}

// ToBase64URLString encodes bytes as unpadded URL-safe base64.
func ToBase64URLString(b []byte) string {
	s := base64.StdEncoding.EncodeToString(b)
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return strings.TrimRight(s, "=")
}

// FromBase64URLString decodes URL-safe base64. Missing padding is restored
// from the length modulo 4; a residue of 1 cannot come from any byte string
// and is rejected.
func FromBase64URLString(s string) ([]byte, error) {
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	switch len(s) % 4 {
	case 2:
		s += "=="
	case 3:
		s += "="
	case 1:
		richErr := goerrors.New(ErrCodeDecode, fmt.Sprintf("invalid base64url length %d", len(s)))
		return nil, fail(ErrInvalidEncoding, StageDecode, richErr)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		richErr := goerrors.Wrap(err, ErrCodeDecode, "failed to decode base64url")
		return nil, fail(ErrInvalidEncoding, StageDecode, richErr)
	}
	return b, nil
}
