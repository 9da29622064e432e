// kdf.go: Deterministic keyset derivation from a root secret or passphrase.
//
// DeriveRootKeys expands a high-entropy root secret with HKDF-SHA256 into
// every keyset member. DeriveRootKeysFromPassphrase first stretches a
// low-entropy passphrase with Argon2id.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"

	goerrors "github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// Default Argon2 parameters for passphrase stretching.
const (
	// DefaultTime is the default number of iterations for Argon2id.
	DefaultTime = 3

	// DefaultMemory is the default memory usage in MB for Argon2id.
	DefaultMemory = 64

	// DefaultThreads is the default number of threads for Argon2id.
	DefaultThreads = 4
)

// MinRootSecretSize is the smallest root secret DeriveRootKeys accepts.
const MinRootSecretSize = 32

// HKDF info labels, one per keyset member. Changing any of them changes
// every derived keyset.
const (
	infoSymmetric = "zeyra/keyset/v1/symmetric"
	infoHmac      = "zeyra/keyset/v1/hmac"
	infoSign      = "zeyra/keyset/v1/sign"
	infoWrap      = "zeyra/keyset/v1/wrap"
)

// KDFParams defines custom parameters for Argon2id key derivation.
//
// If a field is zero, the library's secure default will be used.
//
// Example:
//
//	params := &zeyra.KDFParams{
//		Time:    4,    // 4 iterations
//		Memory:  128,  // 128 MB memory
//		Threads: 2,    // 2 threads
//	}
//	keyset, err := zeyra.DeriveRootKeysFromPassphrase(passphrase, salt, params)
type KDFParams struct {
	// Time is the number of iterations for Argon2id.
	// If zero, DefaultTime is used.
	Time uint32 `json:"time,omitempty" yaml:"time,omitempty"`

	// Memory is the memory usage in MB for Argon2id.
	// If zero, DefaultMemory is used.
	Memory uint32 `json:"memory,omitempty" yaml:"memory,omitempty"`

	// Threads is the number of threads for Argon2id.
	// If zero, DefaultThreads is used.
	Threads uint8 `json:"threads,omitempty" yaml:"threads,omitempty"`
}

// HighSecurityKDFParams returns Argon2id parameters for maximum security scenarios.
//
// Parameters: Time=5, Memory=128MB, Threads=4
func HighSecurityKDFParams() *KDFParams {
	return &KDFParams{
		Time:    5,
		Memory:  128,
		Threads: 4,
	}
}

// FastKDFParams returns Argon2id parameters optimized for speed, for tests
// and development.
//
// Parameters: Time=1, Memory=32MB, Threads=2
func FastKDFParams() *KDFParams {
	return &KDFParams{
		Time:    1,
		Memory:  32,
		Threads: 2,
	}
}

// DeriveRootKeys derives a complete keyset from a root secret.
//
// The same rootSecret and salt always yield the same keyset. Members are
// independent: each one is expanded from its own HKDF info label, so
// learning one member reveals nothing about the others. The result is
// interchangeable with GenerateKeyset output for every cluster operation;
// only CreatedAt differs between calls.
//
// Parameters:
//   - rootSecret: High-entropy secret, at least MinRootSecretSize bytes
//   - salt: Optional HKDF salt (may be nil)
//
// Returns:
//   - The derived keyset
//   - An error wrapping ErrInvalidArgument if the secret is too short
//
// Example:
//
//	root, _ := zeyra.GenerateNonce(zeyra.MinRootSecretSize)
//	keyset, err := zeyra.DeriveRootKeys(root, []byte("tenant-42"))
//	if err != nil {
//		log.Fatal(err)
//	}
func DeriveRootKeys(rootSecret, salt []byte) (*Keyset, error) {
	if len(rootSecret) < MinRootSecretSize {
		richErr := goerrors.New(ErrCodeKeyDerivation, fmt.Sprintf("root secret must be at least %d bytes, got %d", MinRootSecretSize, len(rootSecret)))
		return nil, fail(ErrInvalidArgument, StageDerive, richErr)
	}

	symmetric, err := deriveSecret(rootSecret, salt, infoSymmetric, KeySize)
	if err != nil {
		return nil, err
	}
	defer Zeroize(symmetric)
	cipherKey, err := NewCipherJWK(symmetric)
	if err != nil {
		return nil, err
	}

	macSecret, err := deriveSecret(rootSecret, salt, infoHmac, HMACKeySize)
	if err != nil {
		return nil, err
	}
	defer Zeroize(macSecret)
	hmacKey, err := NewHmacJWK(macSecret)
	if err != nil {
		return nil, err
	}

	signPriv, err := deriveP256(rootSecret, salt, infoSign)
	if err != nil {
		return nil, err
	}
	signKey, err := ExportJWK(signPriv)
	if err != nil {
		return nil, err
	}
	decorate(signKey, AlgES256, KeyUsageSign)

	wrapPriv, err := deriveP256(rootSecret, salt, infoWrap)
	if err != nil {
		return nil, err
	}
	wrapKey, err := ExportJWK(wrapPriv)
	if err != nil {
		return nil, err
	}
	decorate(wrapKey, "", KeyUsageUnwrap)

	return &Keyset{
		SymmetricJWK:   cipherKey,
		PublicJWK:      signKey.Public(),
		PrivateJWK:     signKey,
		HmacJWK:        hmacKey,
		WrapPublicJWK:  wrapKey.Public(),
		WrapPrivateJWK: wrapKey,
		CreatedAt:      timecache.CachedTime().UTC(),
	}, nil
}

// DeriveRootKeysFromPassphrase stretches passphrase with Argon2id and
// derives a keyset from the result. salt is required and should be random
// and stored next to whatever the keyset protects.
//
// If params is nil, secure defaults are used (Time: 3, Memory: 64MB, Threads: 4).
func DeriveRootKeysFromPassphrase(passphrase, salt []byte, params *KDFParams) (*Keyset, error) {
	if len(passphrase) == 0 {
		richErr := goerrors.New(ErrCodeKeyDerivation, "passphrase cannot be empty")
		return nil, fail(ErrInvalidArgument, StageDerive, richErr)
	}
	if len(salt) == 0 {
		richErr := goerrors.New(ErrCodeKeyDerivation, "salt cannot be empty")
		return nil, fail(ErrInvalidArgument, StageDerive, richErr)
	}

	time := uint32(DefaultTime)
	memory := uint32(DefaultMemory * 1024)
	threads := uint8(DefaultThreads)
	if params != nil {
		if params.Time > 0 {
			time = params.Time
		}
		if params.Memory > 0 {
			memory = params.Memory * 1024
		}
		if params.Threads > 0 {
			threads = params.Threads
		}
	}

	root := argon2.IDKey(passphrase, salt, time, memory, threads, MinRootSecretSize)
	defer Zeroize(root)
	return DeriveRootKeys(root, salt)
}

func deriveSecret(rootSecret, salt []byte, info string, size int) ([]byte, error) {
	out := make([]byte, size)
	r := hkdf.New(sha256.New, rootSecret, salt, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		richErr := goerrors.Wrap(err, ErrCodeKeyDerivation, "HKDF expansion failed")
		return nil, fail(ErrInvalidArgument, StageDerive, richErr)
	}
	return out, nil
}

var p256Order = elliptic.P256().Params().N

// deriveP256 maps 48 HKDF bytes onto a scalar in [1, n-1]. The 128 extra
// bits keep the modular bias negligible.
func deriveP256(rootSecret, salt []byte, info string) (*ecdsa.PrivateKey, error) {
	seed, err := deriveSecret(rootSecret, salt, info, p256ScalarSize+16)
	if err != nil {
		return nil, err
	}
	defer Zeroize(seed)

	k := new(big.Int).SetBytes(seed)
	k.Mod(k, new(big.Int).Sub(p256Order, big.NewInt(1)))
	k.Add(k, big.NewInt(1))

	d := k.FillBytes(make([]byte, p256ScalarSize))
	defer Zeroize(d)
	ecdhKey, err := ecdh.P256().NewPrivateKey(d)
	if err != nil {
		richErr := goerrors.Wrap(err, ErrCodeKeyDerivation, "derived scalar rejected")
		return nil, fail(ErrInvalidArgument, StageDerive, richErr)
	}

	// Uncompressed point: 0x04 || X || Y
	point := ecdhKey.PublicKey().Bytes()
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(point[1 : 1+p256ScalarSize]),
			Y:     new(big.Int).SetBytes(point[1+p256ScalarSize:]),
		},
		D: k,
	}, nil
}
