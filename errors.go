// errors.go: Error taxonomy shared by agents, clusters and providers.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"errors"
	"fmt"
)

// Public sentinel errors. Every failure returned by this package wraps
// exactly one of them, so callers can branch with errors.Is.
var (
	// ErrKeyImport is returned when key material is structurally invalid,
	// belongs to the wrong algorithm family, or lacks the capability the
	// requested operation needs. It is fatal for the agent that hit it.
	ErrKeyImport = errors.New("zeyra: key import error")

	// ErrAuthentication is returned when an AEAD tag does not verify:
	// tampered or truncated ciphertext, wrong IV, or wrong key.
	ErrAuthentication = errors.New("zeyra: authentication error")

	// ErrInvalidEncoding is returned for malformed base64url input,
	// unparseable JSON and undecodable compressed data.
	ErrInvalidEncoding = errors.New("zeyra: invalid encoding")

	// ErrInvalidArgument is returned for nil key material, nil artifacts
	// and similar caller mistakes.
	ErrInvalidArgument = errors.New("zeyra: invalid argument")
)

// Error codes for rich error handling
const (
	ErrCodeKeyImport       = "ZEYRA_KEY_IMPORT"
	ErrCodeKeyCapability   = "ZEYRA_KEY_CAPABILITY"
	ErrCodeAuthentication  = "ZEYRA_AUTHENTICATION"
	ErrCodeEncode          = "ZEYRA_ENCODE"
	ErrCodeDecode          = "ZEYRA_DECODE"
	ErrCodeCompress        = "ZEYRA_COMPRESS"
	ErrCodeRandom          = "ZEYRA_RANDOM"
	ErrCodeProvider        = "ZEYRA_PROVIDER"
	ErrCodeKeyGeneration   = "ZEYRA_KEY_GENERATION"
	ErrCodeKeyDerivation   = "ZEYRA_KEY_DERIVATION"
	ErrCodeInvalidArgument = "ZEYRA_INVALID_ARGUMENT"
)

// Stage names the step of a pipeline that failed. It is embedded in every
// error message.
type Stage string

const (
	StageImport   Stage = "import"
	StageEncrypt  Stage = "encrypt"
	StageDecrypt  Stage = "decrypt"
	StageSign     Stage = "sign"
	StageVerify   Stage = "verify"
	StageWrap     Stage = "wrap"
	StageUnwrap   Stage = "unwrap"
	StageEncode   Stage = "encode"
	StageDecode   Stage = "decode"
	StageGenerate Stage = "generate"
	StageDerive   Stage = "derive"
)

// fail joins a sentinel, the failing stage and a rich go-errors value.
func fail(sentinel error, stage Stage, rich error) error {
	return fmt.Errorf("%w: %s: %w", sentinel, stage, rich)
}
