// codec_test.go: Byte codec tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jortsupetterson/zeyra"
)

func TestBase64URL_RoundTrip(t *testing.T) {
	for n := 0; n <= 66; n++ {
		data := bytes.Repeat([]byte{0xFB, 0xFF, 0x3E}, n)[:n]
		s := zeyra.ToBase64URLString(data)

		assert.False(t, strings.ContainsAny(s, "+/="), "length %d: %q", n, s)
		assert.Equal(t, base64.RawURLEncoding.EncodeToString(data), s)

		back, err := zeyra.FromBase64URLString(s)
		require.NoError(t, err)
		assert.Equal(t, data, back, "length %d", n)
	}
}

func TestFromBase64URLString_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"residue one", "a"},
		{"residue one long", "abcde"},
		{"bad alphabet", "ab$d"},
		{"standard padding in the middle", "ab=d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := zeyra.FromBase64URLString(tt.input)
			assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)
			assert.Contains(t, err.Error(), "decode")
		})
	}
}

func TestFromJSON_MatchesStringify(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"sorted map keys", map[string]any{"b": 1, "a": 2}, `{"a":2,"b":1}`},
		{"no html escaping", map[string]any{"html": "<a href=\"x\">&</a>"}, `{"html":"<a href=\"x\">&</a>"}`},
		{"unicode kept", map[string]any{"fi": "mustan kissan paksut posket ä"}, `{"fi":"mustan kissan paksut posket ä"}`},
		{"array", []int{1, 2, 3}, `[1,2,3]`},
		{"null", nil, `null`},
		{"struct field order", struct {
			Z int `json:"z"`
			A int `json:"a"`
		}{1, 2}, `{"z":1,"a":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := zeyra.FromJSON(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestToJSON(t *testing.T) {
	var m map[string]any
	require.NoError(t, zeyra.ToJSON([]byte(`{"n": 12345678901234567890, "f": 1.5}`+"\n"), &m))
	assert.Equal(t, json.Number("12345678901234567890"), m["n"])
	assert.Equal(t, json.Number("1.5"), m["f"])

	err := zeyra.ToJSON([]byte(`{"a":1} {"b":2}`), &m)
	assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)

	err = zeyra.ToJSON([]byte(`{"a":`), &m)
	assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)
}

func TestStringCodec(t *testing.T) {
	b := zeyra.FromString("posket ä")
	s, err := zeyra.ToString(b)
	require.NoError(t, err)
	assert.Equal(t, "posket ä", s)

	_, err = zeyra.ToString([]byte{0xff, 0xfe})
	assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)
}
