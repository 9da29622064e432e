// keyutils.go: Key utilities for raw key import, zeroization and nonces.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"crypto/rand"
	"fmt"
	"io"

	goerrors "github.com/agilira/go-errors"
)

// Zeroize securely wipes a byte slice from memory.
//
// This function overwrites all bytes in the slice with zeros to prevent
// sensitive data from remaining in memory after use.
//
// Note: This function modifies the original slice in place.
//
// Parameters:
//   - b: The byte slice to zeroize
//
// Example:
//
//	secret, _ := zeyra.GenerateNonce(zeyra.KeySize)
//	key, _ := zeyra.NewCipherJWK(secret)
//	zeyra.Zeroize(secret)
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GenerateNonce generates a cryptographically secure random nonce of the given size.
//
// Agents draw their IVs from their provider; this helper exists for callers
// that need raw randomness outside a cluster, for example a KDF salt.
//
// Parameters:
//   - size: The desired size of the nonce in bytes (must be positive)
//
// Returns:
//   - A byte slice containing the random nonce
//   - An error if nonce generation fails
//
// Example:
//
//	salt, err := zeyra.GenerateNonce(16)
//	if err != nil {
//		log.Fatal(err)
//	}
func GenerateNonce(size int) ([]byte, error) {
	if size <= 0 {
		richErr := goerrors.New(ErrCodeInvalidArgument, "nonce size must be positive")
		return nil, fail(ErrInvalidArgument, StageGenerate, richErr)
	}
	nonce := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fail(ErrInvalidArgument, StageGenerate, goerrors.Wrap(err, ErrCodeRandom, "failed to generate nonce"))
	}
	return nonce, nil
}

// NewCipherJWK wraps a raw 32-byte AES-256 key as extractable A256GCM key
// material.
//
// Parameters:
//   - secret: The raw key (must be exactly KeySize bytes)
//
// Returns:
//   - A JWK usable with the cipher cluster
//   - An error if the key size is incorrect
func NewCipherJWK(secret []byte) (*JWK, error) {
	if len(secret) != KeySize {
		richErr := goerrors.New(ErrCodeInvalidArgument, fmt.Sprintf("key size must be %d bytes for AES-256, got %d", KeySize, len(secret)))
		return nil, fail(ErrInvalidArgument, StageGenerate, richErr)
	}
	key, err := ExportJWK(secret)
	if err != nil {
		return nil, err
	}
	return decorate(key, AlgA256GCM, KeyUsageEncrypt, KeyUsageDecrypt), nil
}

// NewHmacJWK wraps a raw secret as extractable HS256 key material.
func NewHmacJWK(secret []byte) (*JWK, error) {
	if len(secret) == 0 {
		richErr := goerrors.New(ErrCodeInvalidArgument, "HMAC secret cannot be empty")
		return nil, fail(ErrInvalidArgument, StageGenerate, richErr)
	}
	key, err := ExportJWK(secret)
	if err != nil {
		return nil, err
	}
	return decorate(key, AlgHS256, KeyUsageSign, KeyUsageVerify), nil
}
