// keyset.go: Keyset generation, validation and parsing.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Keyset bundles the key material protecting one resource. Every member is
// extractable so the keyset can be persisted as JSON.
type Keyset struct {
	SymmetricJWK   *JWK      `json:"symmetricJwk" yaml:"symmetricJwk"`
	PublicJWK      *JWK      `json:"publicJwk" yaml:"publicJwk"`
	PrivateJWK     *JWK      `json:"privateJwk" yaml:"privateJwk"`
	HmacJWK        *JWK      `json:"hmacJwk,omitempty" yaml:"hmacJwk,omitempty"`
	WrapPublicJWK  *JWK      `json:"wrapPublicJwk,omitempty" yaml:"wrapPublicJwk,omitempty"`
	WrapPrivateJWK *JWK      `json:"wrapPrivateJwk,omitempty" yaml:"wrapPrivateJwk,omitempty"`
	CreatedAt      time.Time `json:"createdAt" yaml:"createdAt"`
}

// KeyPair is an asymmetric key pair.
type KeyPair struct {
	PublicJWK  *JWK `json:"publicJwk" yaml:"publicJwk"`
	PrivateJWK *JWK `json:"privateJwk" yaml:"privateJwk"`
}

// GenerateKeyset generates every keyset member independently with the
// configured provider.
func GenerateKeyset(ctx context.Context, opts ...Option) (*Keyset, error) {
	o := newOptions(opts)

	symmetric, err := o.provider.GenerateKey(ctx, AlgorithmAESGCM)
	if err != nil {
		return nil, err
	}
	sign, err := generatePair(ctx, o, AlgorithmECDSA)
	if err != nil {
		return nil, err
	}
	hmacKey, err := o.provider.GenerateKey(ctx, AlgorithmHMAC)
	if err != nil {
		return nil, err
	}
	wrap, err := generatePair(ctx, o, AlgorithmHPKE)
	if err != nil {
		return nil, err
	}

	ks := &Keyset{
		SymmetricJWK:   symmetric,
		PublicJWK:      sign.PublicJWK,
		PrivateJWK:     sign.PrivateJWK,
		HmacJWK:        hmacKey,
		WrapPublicJWK:  wrap.PublicJWK,
		WrapPrivateJWK: wrap.PrivateJWK,
		CreatedAt:      timecache.CachedTime().UTC(),
	}
	o.log().WithFields(logrus.Fields{
		"provider":    o.provider.Name(),
		"fingerprint": KeyFingerprint(ks.PublicJWK),
	}).Debug("keyset generated")
	return ks, nil
}

// GenerateCipherKey generates a 256-bit AES-GCM key.
func GenerateCipherKey(ctx context.Context, opts ...Option) (*JWK, error) {
	return newOptions(opts).provider.GenerateKey(ctx, AlgorithmAESGCM)
}

// GenerateHmacKey generates an HMAC-SHA-256 key.
func GenerateHmacKey(ctx context.Context, opts ...Option) (*JWK, error) {
	return newOptions(opts).provider.GenerateKey(ctx, AlgorithmHMAC)
}

// GenerateSignPair generates an ECDSA P-256 sign/verify pair.
func GenerateSignPair(ctx context.Context, opts ...Option) (*KeyPair, error) {
	return generatePair(ctx, newOptions(opts), AlgorithmECDSA)
}

// GenerateWrapPair generates a P-256 wrap/unwrap pair.
func GenerateWrapPair(ctx context.Context, opts ...Option) (*KeyPair, error) {
	return generatePair(ctx, newOptions(opts), AlgorithmHPKE)
}

func generatePair(ctx context.Context, o options, alg Algorithm) (*KeyPair, error) {
	priv, err := o.provider.GenerateKey(ctx, alg)
	if err != nil {
		return nil, err
	}
	pub := priv.Public()
	if pub == nil || !priv.IsPrivate() {
		richErr := goerrors.New(ErrCodeKeyGeneration, fmt.Sprintf("provider returned no %s key pair", alg))
		return nil, fail(ErrInvalidArgument, StageGenerate, richErr)
	}
	return &KeyPair{PublicJWK: pub, PrivateJWK: priv}, nil
}

// Validate checks every member against the role it plays and reports all
// problems at once. Optional members are checked only when present.
func (ks *Keyset) Validate() error {
	if ks == nil {
		return nilKeyError(StageImport)
	}

	var result *multierror.Error
	check := func(name string, key *JWK, required bool, alg Algorithm, usages ...KeyUsage) {
		if key == nil {
			if required {
				result = multierror.Append(result, fmt.Errorf("%s: missing", name))
			}
			return
		}
		if !key.Ext {
			result = multierror.Append(result, fmt.Errorf("%s: not extractable", name))
		}
		if _, err := validationProvider.ImportKey(context.Background(), key, alg, usages); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
		}
	}

	check("symmetricJwk", ks.SymmetricJWK, true, AlgorithmAESGCM, KeyUsageEncrypt, KeyUsageDecrypt)
	check("privateJwk", ks.PrivateJWK, true, AlgorithmECDSA, KeyUsageSign)
	check("publicJwk", ks.PublicJWK, true, AlgorithmECDSA, KeyUsageVerify)
	check("hmacJwk", ks.HmacJWK, false, AlgorithmHMAC, KeyUsageSign, KeyUsageVerify)
	check("wrapPrivateJwk", ks.WrapPrivateJWK, false, AlgorithmHPKE, KeyUsageUnwrap)
	check("wrapPublicJwk", ks.WrapPublicJWK, false, AlgorithmHPKE, KeyUsageWrap)

	if !samePoint(ks.PrivateJWK, ks.PublicJWK) {
		result = multierror.Append(result, fmt.Errorf("publicJwk does not match privateJwk"))
	}
	if !samePoint(ks.WrapPrivateJWK, ks.WrapPublicJWK) {
		result = multierror.Append(result, fmt.Errorf("wrapPublicJwk does not match wrapPrivateJwk"))
	}

	return result.ErrorOrNil()
}

// validationProvider imports keys for Validate only; handles are discarded.
var validationProvider = NewSoftwareProvider()

// samePoint reports whether both halves carry the same public point.
// Two nil keys match.
func samePoint(priv, pub *JWK) bool {
	if priv == nil || pub == nil {
		return priv == pub
	}
	return priv.Crv == pub.Crv && priv.X == pub.X && priv.Y == pub.Y
}

// PublicKeys returns a keyset holding only the public members, safe to hand
// to parties that verify signatures or wrap keys.
func (ks *Keyset) PublicKeys() *Keyset {
	return &Keyset{
		PublicJWK:     ks.PublicJWK.Clone(),
		WrapPublicJWK: ks.WrapPublicJWK.Clone(),
		CreatedAt:     ks.CreatedAt,
	}
}

// ParseKeyset decodes a JSON keyset and validates it.
func ParseKeyset(data []byte) (*Keyset, error) {
	var ks Keyset
	if err := ToJSON(data, &ks); err != nil {
		return nil, err
	}
	if err := ks.Validate(); err != nil {
		richErr := goerrors.Wrap(err, ErrCodeKeyImport, "keyset failed validation")
		return nil, fail(ErrKeyImport, StageImport, richErr)
	}
	return &ks, nil
}
