// encryption_test.go: Envelope round-trip, tamper and caching tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra_test

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jortsupetterson/zeyra"
)

func TestEncryptDecrypt_Scenario(t *testing.T) {
	ctx := context.Background()
	ks := mustKeyset(t)

	artifact, err := zeyra.Encrypt(ctx, ks.SymmetricJWK, scenarioResource())
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.Digest)
	assert.NotEmpty(t, artifact.Ciphertext)
	assert.NotEmpty(t, artifact.IV)
	for _, s := range []string{artifact.Digest, artifact.Ciphertext, artifact.IV} {
		assert.NotContains(t, s, "=")
		assert.NotContains(t, s, "+")
		assert.NotContains(t, s, "/")
	}

	decrypted, err := zeyra.Decrypt(ctx, ks.SymmetricJWK, artifact)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"digest": artifact.Digest,
		"id":     "resource-1",
		"kind":   "note",
		"body":   "mustan kissan paksut posket",
		"count":  json.Number("3"),
	}, decrypted)
}

func TestEncrypt_DigestCoversCanonicalJSON(t *testing.T) {
	ctx := context.Background()
	key := mustCipherKey(t)
	resource := scenarioResource()

	artifact, err := zeyra.Encrypt(ctx, key, resource)
	require.NoError(t, err)

	canonical, err := zeyra.FromJSON(resource)
	require.NoError(t, err)
	sum := sha256.Sum256(canonical)
	assert.Equal(t, zeyra.ToBase64URLString(sum[:]), artifact.Digest)

	raw, err := zeyra.FromBase64URLString(artifact.IV)
	require.NoError(t, err)
	assert.Len(t, raw, zeyra.IVSize)
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	ctx := context.Background()
	key := mustCipherKey(t)

	artifact, err := zeyra.Encrypt(ctx, key, scenarioResource())
	require.NoError(t, err)

	ct, err := zeyra.FromBase64URLString(artifact.Ciphertext)
	require.NoError(t, err)

	for _, pos := range []int{0, len(ct) / 2, len(ct) - 1} {
		flipped := append([]byte(nil), ct...)
		flipped[pos] ^= 0x01

		tampered := *artifact
		tampered.Ciphertext = zeyra.ToBase64URLString(flipped)

		_, err := zeyra.Decrypt(ctx, key, &tampered)
		assert.ErrorIs(t, err, zeyra.ErrAuthentication, "bit flip at %d", pos)
	}
}

func TestDecrypt_TruncatedAndWrongIV(t *testing.T) {
	ctx := context.Background()
	key := mustCipherKey(t)

	artifact, err := zeyra.Encrypt(ctx, key, scenarioResource())
	require.NoError(t, err)

	truncated := *artifact
	truncated.Ciphertext = zeyra.ToBase64URLString([]byte{1, 2, 3})
	_, err = zeyra.Decrypt(ctx, key, &truncated)
	assert.ErrorIs(t, err, zeyra.ErrAuthentication)

	shortIV := *artifact
	shortIV.IV = zeyra.ToBase64URLString(make([]byte, 8))
	_, err = zeyra.Decrypt(ctx, key, &shortIV)
	assert.ErrorIs(t, err, zeyra.ErrAuthentication)

	otherIV := *artifact
	otherIV.IV = zeyra.ToBase64URLString(make([]byte, zeyra.IVSize))
	_, err = zeyra.Decrypt(ctx, key, &otherIV)
	assert.ErrorIs(t, err, zeyra.ErrAuthentication)
}

func TestDecrypt_WrongKey(t *testing.T) {
	ctx := context.Background()

	artifact, err := zeyra.Encrypt(ctx, mustCipherKey(t), scenarioResource())
	require.NoError(t, err)

	_, err = zeyra.Decrypt(ctx, mustCipherKey(t), artifact)
	assert.ErrorIs(t, err, zeyra.ErrAuthentication)
	assert.Contains(t, err.Error(), "decrypt")
}

func TestDecrypt_MalformedEncoding(t *testing.T) {
	ctx := context.Background()
	key := mustCipherKey(t)

	artifact, err := zeyra.Encrypt(ctx, key, scenarioResource())
	require.NoError(t, err)

	bad := *artifact
	bad.Ciphertext = "abcde"
	_, err = zeyra.Decrypt(ctx, key, &bad)
	assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)

	bad = *artifact
	bad.IV = "***"
	_, err = zeyra.Decrypt(ctx, key, &bad)
	assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)

	_, err = zeyra.Decrypt(ctx, key, nil)
	assert.ErrorIs(t, err, zeyra.ErrInvalidArgument)
}

func TestEncrypt_IVUniqueness(t *testing.T) {
	ctx := context.Background()
	key := mustCipherKey(t)
	cluster := zeyra.NewCipherCluster()

	const n = 64
	ivs := make(map[string]struct{}, n)
	ciphertexts := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		artifact, err := cluster.Encrypt(ctx, key, scenarioResource())
		require.NoError(t, err)
		ivs[artifact.IV] = struct{}{}
		ciphertexts[artifact.Ciphertext] = struct{}{}
	}
	assert.Len(t, ivs, n)
	assert.Len(t, ciphertexts, n)
}

func TestCipherCluster_SingleImportPerKey(t *testing.T) {
	ctx := context.Background()
	provider := newCountingProvider()
	cluster := zeyra.NewCipherCluster(zeyra.WithProvider(provider))
	key := mustCipherKey(t)

	// Hold the agent so a GC cycle between calls cannot drop it.
	agent, err := cluster.Agent(key)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		artifact, err := cluster.Encrypt(ctx, key, map[string]any{"i": i})
		require.NoError(t, err)
		_, err = cluster.Decrypt(ctx, key, artifact)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), provider.imports.Load())
	runtime.KeepAlive(agent)

	// A value-equal key is a different identity.
	clone := key.Clone()
	other, err := cluster.Agent(clone)
	require.NoError(t, err)
	assert.NotSame(t, agent, other)
	require.NoError(t, other.Err(ctx))
	assert.Equal(t, int32(2), provider.imports.Load())
}

func TestDecrypt_ResourceDigestMemberWins(t *testing.T) {
	ctx := context.Background()
	key := mustCipherKey(t)

	artifact, err := zeyra.Encrypt(ctx, key, map[string]any{"digest": "mine", "x": "y"})
	require.NoError(t, err)

	decrypted, err := zeyra.Decrypt(ctx, key, artifact)
	require.NoError(t, err)
	assert.Equal(t, "mine", decrypted["digest"])
	assert.Equal(t, "y", decrypted["x"])
}

func TestDecrypt_NonObjectResource(t *testing.T) {
	ctx := context.Background()
	key := mustCipherKey(t)

	artifact, err := zeyra.Encrypt(ctx, key, []int{1, 2, 3})
	require.NoError(t, err)

	_, err = zeyra.Decrypt(ctx, key, artifact)
	assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)

	var out []int
	require.NoError(t, zeyra.DecryptInto(ctx, key, artifact, &out))
	assert.Equal(t, []int{1, 2, 3}, out)

	null, err := zeyra.Encrypt(ctx, key, nil)
	require.NoError(t, err)
	_, err = zeyra.Decrypt(ctx, key, null)
	assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)

	scalars := []struct {
		name     string
		resource any
		want     any
	}{
		{"string", "str", "str"},
		{"number", 5, json.Number("5")},
		{"bool", true, true},
		{"null", nil, nil},
	}
	for _, tt := range scalars {
		t.Run(tt.name, func(t *testing.T) {
			artifact, err := zeyra.Encrypt(ctx, key, tt.resource)
			require.NoError(t, err)

			_, err = zeyra.Decrypt(ctx, key, artifact)
			assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)

			var out any
			require.NoError(t, zeyra.DecryptInto(ctx, key, artifact, &out))
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestDecryptInto_Struct(t *testing.T) {
	type note struct {
		ID    string `json:"id"`
		Kind  string `json:"kind"`
		Body  string `json:"body"`
		Count int    `json:"count"`
	}
	ctx := context.Background()
	key := mustCipherKey(t)
	in := note{ID: "resource-1", Kind: "note", Body: "<b>&</b>", Count: 3}

	artifact, err := zeyra.Encrypt(ctx, key, in)
	require.NoError(t, err)

	var out note
	require.NoError(t, zeyra.DecryptInto(ctx, key, artifact, &out))
	assert.Equal(t, in, out)
}

func TestDecrypt_DigestVerification(t *testing.T) {
	ctx := context.Background()
	key := mustCipherKey(t)
	plain := zeyra.NewCipherCluster()
	strict := zeyra.NewCipherCluster(zeyra.WithDigestVerification())

	artifact, err := plain.Encrypt(ctx, key, scenarioResource())
	require.NoError(t, err)

	_, err = strict.Decrypt(ctx, key, artifact)
	require.NoError(t, err)

	forgedSum := sha256.Sum256([]byte("something else"))
	forged := *artifact
	forged.Digest = zeyra.ToBase64URLString(forgedSum[:])

	// Carried as is by default.
	decrypted, err := plain.Decrypt(ctx, key, &forged)
	require.NoError(t, err)
	assert.Equal(t, forged.Digest, decrypted["digest"])

	_, err = strict.Decrypt(ctx, key, &forged)
	assert.ErrorIs(t, err, zeyra.ErrAuthentication)

	forged.Digest = "abcde"
	_, err = strict.Decrypt(ctx, key, &forged)
	assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)
}

func TestCipherCluster_Compressors(t *testing.T) {
	ctx := context.Background()
	key := mustCipherKey(t)

	for _, c := range []zeyra.Compressor{
		zeyra.GzipCompressor{Level: 9},
		zeyra.LZMACompressor{},
		zeyra.NoCompression{},
	} {
		t.Run(c.Name(), func(t *testing.T) {
			cluster := zeyra.NewCipherCluster(zeyra.WithCompressor(c))
			artifact, err := cluster.Encrypt(ctx, key, scenarioResource())
			require.NoError(t, err)

			decrypted, err := cluster.Decrypt(ctx, key, artifact)
			require.NoError(t, err)
			assert.Equal(t, "mustan kissan paksut posket", decrypted["body"])
		})
	}
}

func TestCipherCluster_InvalidKey(t *testing.T) {
	ctx := context.Background()
	ks := mustKeyset(t)

	cases := map[string]*zeyra.JWK{
		"ec key":      ks.PrivateJWK,
		"hmac alg":    ks.HmacJWK,
		"short k":     {Kty: zeyra.KeyTypeOct, K: zeyra.ToBase64URLString(make([]byte, 16))},
		"missing k":   {Kty: zeyra.KeyTypeOct, Alg: zeyra.AlgA256GCM},
		"garbage k":   {Kty: zeyra.KeyTypeOct, K: "%%%"},
		"no encrypt":  {Kty: zeyra.KeyTypeOct, K: ks.SymmetricJWK.K, KeyOps: []string{"decrypt"}},
		"unknown kty": {Kty: "RSA"},
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := zeyra.Encrypt(ctx, key, scenarioResource())
			assert.ErrorIs(t, err, zeyra.ErrKeyImport)

			// The failure is sticky for the agent.
			_, err = zeyra.Encrypt(ctx, key, scenarioResource())
			assert.ErrorIs(t, err, zeyra.ErrKeyImport)
		})
	}

	_, err := zeyra.Encrypt(ctx, nil, scenarioResource())
	assert.ErrorIs(t, err, zeyra.ErrInvalidArgument)
}

func TestEncrypt_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := zeyra.Encrypt(ctx, mustCipherKey(t), scenarioResource())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncrypt_UnserializableResource(t *testing.T) {
	_, err := zeyra.Encrypt(context.Background(), mustCipherKey(t), map[string]any{"ch": make(chan int)})
	assert.ErrorIs(t, err, zeyra.ErrInvalidEncoding)
}
