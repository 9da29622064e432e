// cluster.go: Cluster bundle, process-wide defaults and package-level API.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"context"
	"sync"
)

// Clusters bundles one cluster per role, all sharing the same options.
// Each cluster keeps its own cache; agents are never shared across roles.
type Clusters struct {
	Cipher       *CipherCluster
	Hmac         *HmacCluster
	Signing      *SigningCluster
	Verification *VerificationCluster
	Wrapping     *WrappingCluster
	Unwrapping   *UnwrappingCluster
}

// NewClusters creates a fresh set of clusters.
func NewClusters(opts ...Option) *Clusters {
	return &Clusters{
		Cipher:       NewCipherCluster(opts...),
		Hmac:         NewHmacCluster(opts...),
		Signing:      NewSigningCluster(opts...),
		Verification: NewVerificationCluster(opts...),
		Wrapping:     NewWrappingCluster(opts...),
		Unwrapping:   NewUnwrappingCluster(opts...),
	}
}

// defaultClusters live for the whole process and are never torn down.
// Entries are pruned as key material is collected.
var defaultClusters = sync.OnceValue(func() *Clusters {
	return NewClusters()
})

// Default returns the process-wide clusters behind the package-level
// functions. They use the default registry provider and gzip.
func Default() *Clusters {
	return defaultClusters()
}

// Encrypt converts resource into an artifact with the default cipher cluster.
// Resources that are not JSON objects must be read back with DecryptInto.
func Encrypt(ctx context.Context, key *JWK, resource any) (*Artifact, error) {
	return Default().Cipher.Encrypt(ctx, key, resource)
}

// Decrypt opens an artifact with the default cipher cluster.
func Decrypt(ctx context.Context, key *JWK, artifact *Artifact) (map[string]any, error) {
	return Default().Cipher.Decrypt(ctx, key, artifact)
}

// DecryptInto opens an artifact into v with the default cipher cluster.
func DecryptInto(ctx context.Context, key *JWK, artifact *Artifact, v any) error {
	return Default().Cipher.DecryptInto(ctx, key, artifact, v)
}

// Sign returns a base64url ECDSA signature over the JSON form of value.
func Sign(ctx context.Context, privateKey *JWK, value any) (string, error) {
	return Default().Signing.Sign(ctx, privateKey, value)
}

// Verify checks a base64url ECDSA signature over the JSON form of value.
func Verify(ctx context.Context, publicKey *JWK, value any, signature string) (bool, error) {
	return Default().Verification.Verify(ctx, publicKey, value, signature)
}

// HMACSign returns the raw HMAC-SHA-256 tag over the JSON form of value.
func HMACSign(ctx context.Context, key *JWK, value any) ([]byte, error) {
	return Default().Hmac.Sign(ctx, key, value)
}

// HMACVerify checks a raw HMAC-SHA-256 tag over the JSON form of value.
func HMACVerify(ctx context.Context, key *JWK, value any, tag []byte) (bool, error) {
	return Default().Hmac.Verify(ctx, key, value, tag)
}

// WrapKey wraps key to the wrap public key.
func WrapKey(ctx context.Context, wrapKey, key *JWK) (string, error) {
	return Default().Wrapping.Wrap(ctx, wrapKey, key)
}

// UnwrapKey recovers a key wrapped with WrapKey.
func UnwrapKey(ctx context.Context, unwrapKey *JWK, wrapped string) (*JWK, error) {
	return Default().Unwrapping.Unwrap(ctx, unwrapKey, wrapped)
}
