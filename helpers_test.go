// helpers_test.go: Shared fixtures for black-box tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra_test

import (
	"context"
	"encoding/hex"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jortsupetterson/zeyra"
)

// countingProvider counts key imports on top of the software provider.
type countingProvider struct {
	zeyra.Provider
	imports atomic.Int32
}

func newCountingProvider() *countingProvider {
	return &countingProvider{Provider: zeyra.NewSoftwareProvider()}
}

func (p *countingProvider) ImportKey(ctx context.Context, key *zeyra.JWK, alg zeyra.Algorithm, usages []zeyra.KeyUsage) (zeyra.KeyHandle, error) {
	p.imports.Add(1)
	return p.Provider.ImportKey(ctx, key, alg, usages)
}

func mustKeyset(t testing.TB) *zeyra.Keyset {
	t.Helper()
	ks, err := zeyra.GenerateKeyset(context.Background())
	require.NoError(t, err)
	return ks
}

func mustCipherKey(t testing.TB) *zeyra.JWK {
	t.Helper()
	key, err := zeyra.GenerateCipherKey(context.Background())
	require.NoError(t, err)
	return key
}

// scenarioResource is the note resource used across envelope tests.
func scenarioResource() map[string]any {
	return map[string]any{
		"id":    "resource-1",
		"kind":  "note",
		"body":  "mustan kissan paksut posket",
		"count": 3,
	}
}

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}
