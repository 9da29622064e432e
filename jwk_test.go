// jwk_test.go: JSON Web Key tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jortsupetterson/zeyra"
)

func TestParseJWK(t *testing.T) {
	key := mustCipherKey(t)
	data, err := zeyra.FromJSON(key)
	require.NoError(t, err)

	parsed, err := zeyra.ParseJWK(data)
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
	assert.NotSame(t, key, parsed)

	_, err = zeyra.ParseJWK([]byte(`{"k":"AAAA"}`))
	assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)

	_, err = zeyra.ParseJWK([]byte(`not json`))
	assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)
}

func TestJWK_Clone(t *testing.T) {
	key := mustCipherKey(t)
	clone := key.Clone()
	assert.Equal(t, key, clone)
	assert.NotSame(t, key, clone)

	clone.KeyOps[0] = "sign"
	assert.Equal(t, string(zeyra.KeyUsageEncrypt), key.KeyOps[0])

	var nilKey *zeyra.JWK
	assert.Nil(t, nilKey.Clone())
}

func TestJWK_Public(t *testing.T) {
	ctx := context.Background()

	sign, err := zeyra.GenerateSignPair(ctx)
	require.NoError(t, err)
	assert.True(t, sign.PrivateJWK.IsPrivate())
	assert.False(t, sign.PublicJWK.IsPrivate())
	assert.Empty(t, sign.PublicJWK.D)
	assert.Equal(t, []string{"verify"}, sign.PublicJWK.KeyOps)
	assert.Equal(t, zeyra.AlgES256, sign.PublicJWK.Alg)
	assert.Equal(t, sign.PrivateJWK.X, sign.PublicJWK.X)
	assert.Equal(t, sign.PrivateJWK.Y, sign.PublicJWK.Y)

	wrap, err := zeyra.GenerateWrapPair(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"unwrapKey"}, wrap.PrivateJWK.KeyOps)
	assert.Equal(t, []string{"wrapKey"}, wrap.PublicJWK.KeyOps)

	assert.Nil(t, mustCipherKey(t).Public())
	assert.True(t, mustCipherKey(t).IsPrivate())
}

func TestExportJWK(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	key, err := zeyra.ExportJWK(priv)
	require.NoError(t, err)
	assert.Equal(t, zeyra.KeyTypeEC, key.Kty)
	assert.Equal(t, zeyra.CurveP256, key.Crv)
	assert.NotEmpty(t, key.X)
	assert.NotEmpty(t, key.Y)
	assert.NotEmpty(t, key.D)
	assert.Empty(t, key.Alg)
	assert.Empty(t, key.KeyOps)
	assert.False(t, key.Ext)

	pub, err := zeyra.ExportJWK(&priv.PublicKey)
	require.NoError(t, err)
	assert.Empty(t, pub.D)
	assert.Equal(t, key.X, pub.X)

	oct, err := zeyra.ExportJWK(make([]byte, 32))
	require.NoError(t, err)
	assert.Equal(t, zeyra.KeyTypeOct, oct.Kty)
	assert.Equal(t, zeyra.ToBase64URLString(make([]byte, 32)), oct.K)

	_, err = zeyra.ExportJWK("not a key")
	assert.ErrorIs(t, err, zeyra.ErrInvalidArgument)
}

func TestKeyFingerprint(t *testing.T) {
	pair, err := zeyra.GenerateSignPair(context.Background())
	require.NoError(t, err)

	fp := zeyra.KeyFingerprint(pair.PrivateJWK)
	require.Len(t, fp, 16)
	_, err = hex.DecodeString(fp)
	require.NoError(t, err)

	// The thumbprint covers public members only.
	assert.Equal(t, fp, zeyra.KeyFingerprint(pair.PublicJWK))
	assert.NotEqual(t, fp, zeyra.KeyFingerprint(mustCipherKey(t)))

	assert.Empty(t, zeyra.KeyFingerprint(nil))
	assert.Empty(t, zeyra.KeyFingerprint(&zeyra.JWK{Kty: "EC"}))
}
