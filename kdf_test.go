// kdf_test.go: Keyset derivation tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jortsupetterson/zeyra"
)

func testRootSecret() []byte {
	return bytes.Repeat([]byte{0x5A}, zeyra.MinRootSecretSize)
}

func assertSameMembers(t *testing.T, want, got *zeyra.Keyset) {
	t.Helper()
	assert.Equal(t, want.SymmetricJWK, got.SymmetricJWK)
	assert.Equal(t, want.HmacJWK, got.HmacJWK)
	assert.Equal(t, want.PrivateJWK, got.PrivateJWK)
	assert.Equal(t, want.PublicJWK, got.PublicJWK)
	assert.Equal(t, want.WrapPrivateJWK, got.WrapPrivateJWK)
	assert.Equal(t, want.WrapPublicJWK, got.WrapPublicJWK)
}

func TestDeriveRootKeys_Deterministic(t *testing.T) {
	a, err := zeyra.DeriveRootKeys(testRootSecret(), []byte("tenant-1"))
	require.NoError(t, err)
	b, err := zeyra.DeriveRootKeys(testRootSecret(), []byte("tenant-1"))
	require.NoError(t, err)
	assertSameMembers(t, a, b)

	noSalt, err := zeyra.DeriveRootKeys(testRootSecret(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.SymmetricJWK.K, noSalt.SymmetricJWK.K)

	c, err := zeyra.DeriveRootKeys(testRootSecret(), []byte("tenant-2"))
	require.NoError(t, err)
	assert.NotEqual(t, a.SymmetricJWK.K, c.SymmetricJWK.K)
	assert.NotEqual(t, a.HmacJWK.K, c.HmacJWK.K)
	assert.NotEqual(t, a.PrivateJWK.D, c.PrivateJWK.D)
	assert.NotEqual(t, a.WrapPrivateJWK.D, c.WrapPrivateJWK.D)
}

func TestDeriveRootKeys_MembersIndependent(t *testing.T) {
	ks, err := zeyra.DeriveRootKeys(testRootSecret(), nil)
	require.NoError(t, err)

	assert.NotEqual(t, ks.PrivateJWK.D, ks.WrapPrivateJWK.D)
	assert.NotEqual(t, ks.PrivateJWK.X, ks.WrapPrivateJWK.X)

	sym, err := zeyra.FromBase64URLString(ks.SymmetricJWK.K)
	require.NoError(t, err)
	mac, err := zeyra.FromBase64URLString(ks.HmacJWK.K)
	require.NoError(t, err)
	assert.Len(t, sym, zeyra.KeySize)
	assert.Len(t, mac, zeyra.HMACKeySize)
	assert.False(t, bytes.HasPrefix(mac, sym))
}

func TestDeriveRootKeys_UsableKeyset(t *testing.T) {
	ks, err := zeyra.DeriveRootKeys(testRootSecret(), []byte("salt"))
	require.NoError(t, err)
	require.NoError(t, ks.Validate())
	assert.Equal(t, zeyra.AlgES256, ks.PrivateJWK.Alg)
	assert.Equal(t, []string{"unwrapKey"}, ks.WrapPrivateJWK.KeyOps)

	ctx := context.Background()
	artifact, err := zeyra.Encrypt(ctx, ks.SymmetricJWK, scenarioResource())
	require.NoError(t, err)
	out, err := zeyra.Decrypt(ctx, ks.SymmetricJWK, artifact)
	require.NoError(t, err)
	assert.Equal(t, "resource-1", out["id"])

	sig, err := zeyra.Sign(ctx, ks.PrivateJWK, "nonce")
	require.NoError(t, err)
	ok, err := zeyra.Verify(ctx, ks.PublicJWK, "nonce", sig)
	require.NoError(t, err)
	assert.True(t, ok)

	wrapped, err := zeyra.WrapKey(ctx, ks.WrapPublicJWK, ks.SymmetricJWK)
	require.NoError(t, err)
	unwrapped, err := zeyra.UnwrapKey(ctx, ks.WrapPrivateJWK, wrapped)
	require.NoError(t, err)
	assert.Equal(t, ks.SymmetricJWK.K, unwrapped.K)
}

func TestDeriveRootKeys_ShortSecret(t *testing.T) {
	_, err := zeyra.DeriveRootKeys(make([]byte, zeyra.MinRootSecretSize-1), nil)
	assert.ErrorIs(t, err, zeyra.ErrInvalidArgument)
}

func TestDeriveRootKeysFromPassphrase(t *testing.T) {
	salt := []byte("0123456789abcdef")
	a, err := zeyra.DeriveRootKeysFromPassphrase([]byte("correct horse"), salt, zeyra.FastKDFParams())
	require.NoError(t, err)
	b, err := zeyra.DeriveRootKeysFromPassphrase([]byte("correct horse"), salt, zeyra.FastKDFParams())
	require.NoError(t, err)
	assertSameMembers(t, a, b)
	require.NoError(t, a.Validate())

	c, err := zeyra.DeriveRootKeysFromPassphrase([]byte("correct horsf"), salt, zeyra.FastKDFParams())
	require.NoError(t, err)
	assert.NotEqual(t, a.SymmetricJWK.K, c.SymmetricJWK.K)

	// Parameters are part of the derivation.
	d, err := zeyra.DeriveRootKeysFromPassphrase([]byte("correct horse"), salt, &zeyra.KDFParams{Time: 2, Memory: 32, Threads: 2})
	require.NoError(t, err)
	assert.NotEqual(t, a.SymmetricJWK.K, d.SymmetricJWK.K)
}

func TestDeriveRootKeysFromPassphrase_Invalid(t *testing.T) {
	_, err := zeyra.DeriveRootKeysFromPassphrase(nil, []byte("salt"), zeyra.FastKDFParams())
	assert.ErrorIs(t, err, zeyra.ErrInvalidArgument)

	_, err = zeyra.DeriveRootKeysFromPassphrase([]byte("pass"), nil, zeyra.FastKDFParams())
	assert.ErrorIs(t, err, zeyra.ErrInvalidArgument)
}

func TestKDFParams_Presets(t *testing.T) {
	high := zeyra.HighSecurityKDFParams()
	assert.Equal(t, uint32(5), high.Time)
	assert.Equal(t, uint32(128), high.Memory)
	assert.Equal(t, uint8(4), high.Threads)

	fast := zeyra.FastKDFParams()
	assert.Less(t, fast.Time, high.Time)
	assert.Less(t, fast.Memory, high.Memory)
}
