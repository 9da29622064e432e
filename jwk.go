// jwk.go: JSON Web Key material and its translation to native Go keys.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"crypto"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	goerrors "github.com/agilira/go-errors"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// Key types, curves and algorithm identifiers understood by this package.
const (
	KeyTypeOct = "oct"
	KeyTypeEC  = "EC"

	CurveP256 = "P-256"

	AlgA256GCM = "A256GCM" // AES-GCM with a 256-bit key
	AlgHS256   = "HS256"   // HMAC with SHA-256
	AlgES256   = "ES256"   // ECDSA P-256 with SHA-256
)

// JWK is a JSON Web Key (RFC 7517) as produced and consumed by WebCrypto.
//
// A *JWK is an identity: clusters cache agents per pointer, never per value.
// Two structurally identical keys held in two different *JWK values get two
// different agents. Use Clone to deliberately create a new identity.
type JWK struct {
	Kty    string   `json:"kty" yaml:"kty"`
	Alg    string   `json:"alg,omitempty" yaml:"alg,omitempty"`
	Crv    string   `json:"crv,omitempty" yaml:"crv,omitempty"`
	K      string   `json:"k,omitempty" yaml:"k,omitempty"`
	X      string   `json:"x,omitempty" yaml:"x,omitempty"`
	Y      string   `json:"y,omitempty" yaml:"y,omitempty"`
	D      string   `json:"d,omitempty" yaml:"d,omitempty"`
	Kid    string   `json:"kid,omitempty" yaml:"kid,omitempty"`
	KeyOps []string `json:"key_ops,omitempty" yaml:"key_ops,omitempty"`
	Ext    bool     `json:"ext,omitempty" yaml:"ext,omitempty"`
}

// jwkCore carries only the members jwx needs to rebuild the native key.
// alg and key_ops are validated by the provider, not by jwx.
type jwkCore struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	K   string `json:"k,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	D   string `json:"d,omitempty"`
}

// ParseJWK decodes a single JSON Web Key.
func ParseJWK(data []byte) (*JWK, error) {
	var key JWK
	if err := ToJSON(data, &key); err != nil {
		return nil, err
	}
	if key.Kty == "" {
		return nil, fail(ErrInvalidEncoding, StageDecode, goerrors.New(ErrCodeDecode, "JWK is missing the kty member"))
	}
	return &key, nil
}

// Clone returns a deep copy with a new identity.
func (k *JWK) Clone() *JWK {
	if k == nil {
		return nil
	}
	c := *k
	c.KeyOps = slices.Clone(k.KeyOps)
	return &c
}

// IsPrivate reports whether the key holds secret material.
func (k *JWK) IsPrivate() bool {
	return k != nil && (k.Kty == KeyTypeOct || k.D != "")
}

// Public returns the public half of an EC key, or nil for symmetric keys.
// key_ops are mapped to their public counterparts.
func (k *JWK) Public() *JWK {
	if k == nil || k.Kty != KeyTypeEC {
		return nil
	}
	pub := k.Clone()
	pub.D = ""
	if len(k.KeyOps) > 0 {
		ops := make([]string, 0, len(k.KeyOps))
		for _, op := range k.KeyOps {
			switch KeyUsage(op) {
			case KeyUsageSign:
				ops = append(ops, string(KeyUsageVerify))
			case KeyUsageUnwrap:
				ops = append(ops, string(KeyUsageWrap))
			case KeyUsageVerify, KeyUsageWrap:
				ops = append(ops, op)
			}
		}
		pub.KeyOps = ops
	}
	return pub
}

// permits reports whether key_ops allow the usage. Keys without key_ops
// permit everything.
func (k *JWK) permits(usage KeyUsage) bool {
	return len(k.KeyOps) == 0 || slices.Contains(k.KeyOps, string(usage))
}

func (k *JWK) core() jwkCore {
	return jwkCore{Kty: k.Kty, Crv: k.Crv, K: k.K, X: k.X, Y: k.Y, D: k.D}
}

// parse rebuilds the jwx representation of the key.
func (k *JWK) parse() (jwk.Key, error) {
	data, err := json.Marshal(k.core())
	if err != nil {
		return nil, err
	}
	return jwk.ParseKey(data)
}

// nativeKey returns the Go key behind the JWK: []byte for oct keys,
// *ecdsa.PrivateKey or *ecdsa.PublicKey for EC keys.
func nativeKey(k *JWK) (any, error) {
	key, err := k.parse()
	if err != nil {
		return nil, fmt.Errorf("parse %s key: %w", k.Kty, err)
	}
	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("export %s key: %w", k.Kty, err)
	}
	return raw, nil
}

// ExportJWK converts a native Go key ([]byte, *ecdsa.PrivateKey or
// *ecdsa.PublicKey) into a JWK. The result carries no alg, key_ops or ext;
// callers add them for the role the key will play.
func ExportJWK(raw any) (*JWK, error) {
	key, err := jwk.Import(raw)
	if err != nil {
		richErr := goerrors.Wrap(err, ErrCodeKeyGeneration, "failed to import native key into JWK")
		return nil, fail(ErrInvalidArgument, StageGenerate, richErr)
	}
	data, err := json.Marshal(key)
	if err != nil {
		richErr := goerrors.Wrap(err, ErrCodeEncode, "failed to marshal JWK")
		return nil, fail(ErrInvalidEncoding, StageEncode, richErr)
	}
	var out JWK
	if err := json.Unmarshal(data, &out); err != nil {
		richErr := goerrors.Wrap(err, ErrCodeDecode, "failed to unmarshal JWK")
		return nil, fail(ErrInvalidEncoding, StageDecode, richErr)
	}
	return &out, nil
}

// KeyFingerprint returns a short identifier for logs: the first 8 bytes of
// the RFC 7638 SHA-256 thumbprint, hex encoded. Empty if the key does not
// parse.
func KeyFingerprint(k *JWK) string {
	if k == nil {
		return ""
	}
	key, err := k.parse()
	if err != nil {
		return ""
	}
	sum, err := key.Thumbprint(crypto.SHA256)
	if err != nil || len(sum) < 8 {
		return ""
	}
	return hex.EncodeToString(sum[:8])
}
