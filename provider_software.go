// provider_software.go: Built-in software provider
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"
	"slices"

	goerrors "github.com/agilira/go-errors"
	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/kem"
)

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32

	// IVSize is the AES-GCM nonce size in bytes.
	IVSize = 12

	// HMACKeySize is the size of generated HMAC keys, one SHA-256 block.
	HMACKeySize = 64

	// SignatureSize is the size of a raw r||s P-256 signature.
	SignatureSize = 64

	p256ScalarSize = 32
)

// wrapInfo binds HPKE contexts to this key wrap construction.
var wrapInfo = []byte("zeyra key wrap v1")

var wrapSuite = hpke.NewSuite(hpke.KEM_P256_HKDF_SHA256, hpke.KDF_HKDF_SHA256, hpke.AEAD_AES256GCM)

// SoftwareProvider implements Provider with the Go standard library for
// AES-GCM, ECDSA and HMAC, and github.com/cloudflare/circl/hpke for key
// wrapping. The zero value is ready to use.
type SoftwareProvider struct {
	// Rand is the entropy source; nil means crypto/rand.Reader.
	Rand io.Reader
}

// NewSoftwareProvider returns a provider backed by crypto/rand.
func NewSoftwareProvider() *SoftwareProvider {
	return &SoftwareProvider{}
}

// softwareHandle holds the materialized key. Exactly one of the key
// fields is set, matching alg.
type softwareHandle struct {
	alg    Algorithm
	usages []KeyUsage

	aead    cipher.AEAD // AES-GCM, built once at import
	secret  []byte      // HMAC
	priv    *ecdsa.PrivateKey
	pub     *ecdsa.PublicKey
	wrapPub kem.PublicKey
	wrapKey kem.PrivateKey
}

func (h *softwareHandle) Algorithm() Algorithm { return h.alg }

func (h *softwareHandle) Usages() []KeyUsage { return slices.Clone(h.usages) }

// Name implements Provider.
func (p *SoftwareProvider) Name() string { return SoftwareProviderName }

func (p *SoftwareProvider) rand() io.Reader {
	if p.Rand != nil {
		return p.Rand
	}
	return rand.Reader
}

// allowedUsages lists what each algorithm can be imported for.
var allowedUsages = map[Algorithm][]KeyUsage{
	AlgorithmAESGCM: {KeyUsageEncrypt, KeyUsageDecrypt},
	AlgorithmHMAC:   {KeyUsageSign, KeyUsageVerify},
	AlgorithmECDSA:  {KeyUsageSign, KeyUsageVerify},
	AlgorithmHPKE:   {KeyUsageWrap, KeyUsageUnwrap},
}

// ImportKey implements Provider.
func (p *SoftwareProvider) ImportKey(ctx context.Context, key *JWK, alg Algorithm, usages []KeyUsage) (KeyHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == nil {
		return nil, importFailure("key material is nil")
	}
	allowed, ok := allowedUsages[alg]
	if !ok {
		return nil, importFailure(fmt.Sprintf("unsupported algorithm %q", alg))
	}
	if len(usages) == 0 {
		return nil, importFailure("no key usages requested")
	}
	for _, u := range usages {
		if !slices.Contains(allowed, u) {
			return nil, capabilityFailure(fmt.Sprintf("usage %q is not valid for %s", u, alg))
		}
		if !key.permits(u) {
			return nil, capabilityFailure(fmt.Sprintf("key_ops do not permit %q", u))
		}
	}

	h := &softwareHandle{alg: alg, usages: slices.Clone(usages)}
	var err error
	switch alg {
	case AlgorithmAESGCM:
		err = p.importAESGCM(h, key)
	case AlgorithmHMAC:
		err = p.importHMAC(h, key)
	case AlgorithmECDSA:
		err = p.importECDSA(h, key)
	default:
		err = p.importHPKE(h, key)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (p *SoftwareProvider) importAESGCM(h *softwareHandle, key *JWK) error {
	if key.Kty != KeyTypeOct {
		return importFailure(fmt.Sprintf("AES-GCM requires an oct key, got %q", key.Kty))
	}
	if key.Alg != "" && key.Alg != AlgA256GCM {
		return importFailure(fmt.Sprintf("AES-GCM key has alg %q", key.Alg))
	}
	secret, err := octSecret(key)
	if err != nil {
		return err
	}
	defer Zeroize(secret)
	if len(secret) != KeySize {
		return importFailure(fmt.Sprintf("AES-GCM key must be %d bytes, got %d", KeySize, len(secret)))
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		return fail(ErrKeyImport, StageImport, goerrors.Wrap(err, ErrCodeKeyImport, "failed to create AES cipher"))
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return fail(ErrKeyImport, StageImport, goerrors.Wrap(err, ErrCodeKeyImport, "failed to create GCM mode"))
	}
	h.aead = aead
	return nil
}

func (p *SoftwareProvider) importHMAC(h *softwareHandle, key *JWK) error {
	if key.Kty != KeyTypeOct {
		return importFailure(fmt.Sprintf("HMAC requires an oct key, got %q", key.Kty))
	}
	if key.Alg != "" && key.Alg != AlgHS256 {
		return importFailure(fmt.Sprintf("HMAC key has alg %q", key.Alg))
	}
	secret, err := octSecret(key)
	if err != nil {
		return err
	}
	if len(secret) == 0 {
		return importFailure("HMAC key is empty")
	}
	h.secret = secret
	return nil
}

func (p *SoftwareProvider) importECDSA(h *softwareHandle, key *JWK) error {
	if key.Alg != "" && key.Alg != AlgES256 {
		return importFailure(fmt.Sprintf("ECDSA key has alg %q", key.Alg))
	}
	priv, pub, err := p256Key(key, h.usages, KeyUsageSign)
	if err != nil {
		return err
	}
	h.priv, h.pub = priv, pub
	return nil
}

func (p *SoftwareProvider) importHPKE(h *softwareHandle, key *JWK) error {
	priv, pub, err := p256Key(key, h.usages, KeyUsageUnwrap)
	if err != nil {
		return err
	}
	scheme := hpke.KEM_P256_HKDF_SHA256.Scheme()
	if priv != nil {
		ecdhPriv, err := priv.ECDH()
		if err != nil {
			return fail(ErrKeyImport, StageImport, goerrors.Wrap(err, ErrCodeKeyImport, "invalid P-256 private key"))
		}
		sk, err := scheme.UnmarshalBinaryPrivateKey(ecdhPriv.Bytes())
		if err != nil {
			return fail(ErrKeyImport, StageImport, goerrors.Wrap(err, ErrCodeKeyImport, "failed to load HPKE private key"))
		}
		h.wrapKey = sk
		return nil
	}
	ecdhPub, err := pub.ECDH()
	if err != nil {
		return fail(ErrKeyImport, StageImport, goerrors.Wrap(err, ErrCodeKeyImport, "invalid P-256 public key"))
	}
	pk, err := scheme.UnmarshalBinaryPublicKey(ecdhPub.Bytes())
	if err != nil {
		return fail(ErrKeyImport, StageImport, goerrors.Wrap(err, ErrCodeKeyImport, "failed to load HPKE public key"))
	}
	h.wrapPub = pk
	return nil
}

// octSecret decodes the k member of a symmetric key.
func octSecret(key *JWK) ([]byte, error) {
	if key.K == "" {
		return nil, importFailure("oct key is missing k")
	}
	raw, err := nativeKey(key)
	if err != nil {
		return nil, fail(ErrKeyImport, StageImport, goerrors.Wrap(err, ErrCodeKeyImport, "failed to decode oct key"))
	}
	secret, ok := raw.([]byte)
	if !ok {
		return nil, importFailure(fmt.Sprintf("oct key decoded to %T", raw))
	}
	return secret, nil
}

// p256Key loads an EC P-256 key. Usages that need the private half
// (privateUsage) require d; all other usages require a public-only key,
// the same rule WebCrypto applies to JWK import.
func p256Key(key *JWK, usages []KeyUsage, privateUsage KeyUsage) (*ecdsa.PrivateKey, *ecdsa.PublicKey, error) {
	if key.Kty != KeyTypeEC {
		return nil, nil, importFailure(fmt.Sprintf("requires an EC key, got %q", key.Kty))
	}
	if key.Crv != CurveP256 {
		return nil, nil, importFailure(fmt.Sprintf("unsupported curve %q", key.Crv))
	}
	wantPrivate := slices.Contains(usages, privateUsage)
	if wantPrivate && len(usages) > 1 {
		return nil, nil, capabilityFailure("private and public usages cannot be combined")
	}
	if wantPrivate && key.D == "" {
		return nil, nil, capabilityFailure(fmt.Sprintf("%s requires a private key", privateUsage))
	}
	if !wantPrivate && key.D != "" {
		return nil, nil, capabilityFailure("public usages require a public key")
	}

	raw, err := nativeKey(key)
	if err != nil {
		return nil, nil, fail(ErrKeyImport, StageImport, goerrors.Wrap(err, ErrCodeKeyImport, "failed to decode EC key"))
	}
	switch k := raw.(type) {
	case *ecdsa.PrivateKey:
		if k.Curve != elliptic.P256() {
			return nil, nil, importFailure("key is not on P-256")
		}
		if _, err := k.ECDH(); err != nil {
			return nil, nil, fail(ErrKeyImport, StageImport, goerrors.Wrap(err, ErrCodeKeyImport, "invalid P-256 private key"))
		}
		return k, &k.PublicKey, nil
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return nil, nil, importFailure("key is not on P-256")
		}
		if _, err := k.ECDH(); err != nil {
			return nil, nil, fail(ErrKeyImport, StageImport, goerrors.Wrap(err, ErrCodeKeyImport, "invalid P-256 public key"))
		}
		return nil, k, nil
	default:
		return nil, nil, importFailure(fmt.Sprintf("EC key decoded to %T", raw))
	}
}

// handle checks that h came from this provider and allows usage.
func (p *SoftwareProvider) handle(h KeyHandle, alg Algorithm, usage KeyUsage, stage Stage) (*softwareHandle, error) {
	sh, ok := h.(*softwareHandle)
	if !ok || sh == nil {
		richErr := goerrors.New(ErrCodeProvider, fmt.Sprintf("foreign key handle %T", h))
		return nil, fail(ErrInvalidArgument, stage, richErr)
	}
	if sh.alg != alg {
		richErr := goerrors.New(ErrCodeKeyCapability, fmt.Sprintf("%s key cannot be used for %s", sh.alg, stage))
		return nil, fail(ErrKeyImport, stage, richErr)
	}
	if !slices.Contains(sh.usages, usage) {
		richErr := goerrors.New(ErrCodeKeyCapability, fmt.Sprintf("key was not imported for %q", usage))
		return nil, fail(ErrKeyImport, stage, richErr)
	}
	return sh, nil
}

// Encrypt implements Provider.
func (p *SoftwareProvider) Encrypt(ctx context.Context, h KeyHandle, iv, plaintext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sh, err := p.handle(h, AlgorithmAESGCM, KeyUsageEncrypt, StageEncrypt)
	if err != nil {
		return nil, err
	}
	if len(iv) != sh.aead.NonceSize() {
		richErr := goerrors.New(ErrCodeInvalidArgument, fmt.Sprintf("IV must be %d bytes, got %d", sh.aead.NonceSize(), len(iv)))
		return nil, fail(ErrInvalidArgument, StageEncrypt, richErr)
	}
	return sh.aead.Seal(nil, iv, plaintext, nil), nil
}

// Decrypt implements Provider. A wrong IV size is reported as an
// authentication failure, like a wrong IV value.
func (p *SoftwareProvider) Decrypt(ctx context.Context, h KeyHandle, iv, ciphertext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sh, err := p.handle(h, AlgorithmAESGCM, KeyUsageDecrypt, StageDecrypt)
	if err != nil {
		return nil, err
	}
	if len(iv) != sh.aead.NonceSize() {
		richErr := goerrors.New(ErrCodeAuthentication, fmt.Sprintf("IV must be %d bytes, got %d", sh.aead.NonceSize(), len(iv)))
		return nil, fail(ErrAuthentication, StageDecrypt, richErr)
	}
	if len(ciphertext) < sh.aead.Overhead() {
		richErr := goerrors.New(ErrCodeAuthentication, "ciphertext is shorter than the GCM tag")
		return nil, fail(ErrAuthentication, StageDecrypt, richErr)
	}
	plaintext, err := sh.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fail(ErrAuthentication, StageDecrypt, goerrors.Wrap(err, ErrCodeAuthentication, "GCM tag verification failed"))
	}
	return plaintext, nil
}

// Sign implements Provider for ECDSA and HMAC handles.
func (p *SoftwareProvider) Sign(ctx context.Context, h KeyHandle, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	alg := AlgorithmECDSA
	if kh, ok := h.(*softwareHandle); ok && kh != nil && kh.alg == AlgorithmHMAC {
		alg = AlgorithmHMAC
	}
	sh, err := p.handle(h, alg, KeyUsageSign, StageSign)
	if err != nil {
		return nil, err
	}

	if alg == AlgorithmHMAC {
		mac := hmac.New(sha256.New, sh.secret)
		mac.Write(data)
		return mac.Sum(nil), nil
	}

	digest := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(p.rand(), sh.priv, digest[:])
	if err != nil {
		return nil, fail(ErrInvalidArgument, StageSign, goerrors.Wrap(err, ErrCodeRandom, "ECDSA signing failed"))
	}
	sig := make([]byte, SignatureSize)
	r.FillBytes(sig[:p256ScalarSize])
	s.FillBytes(sig[p256ScalarSize:])
	return sig, nil
}

// Verify implements Provider for ECDSA and HMAC handles. Malformed
// signatures verify as false.
func (p *SoftwareProvider) Verify(ctx context.Context, h KeyHandle, data, signature []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	alg := AlgorithmECDSA
	if kh, ok := h.(*softwareHandle); ok && kh != nil && kh.alg == AlgorithmHMAC {
		alg = AlgorithmHMAC
	}
	sh, err := p.handle(h, alg, KeyUsageVerify, StageVerify)
	if err != nil {
		return false, err
	}

	if alg == AlgorithmHMAC {
		mac := hmac.New(sha256.New, sh.secret)
		mac.Write(data)
		return hmac.Equal(mac.Sum(nil), signature), nil
	}

	if len(signature) != SignatureSize {
		return false, nil
	}
	r := new(big.Int).SetBytes(signature[:p256ScalarSize])
	s := new(big.Int).SetBytes(signature[p256ScalarSize:])
	digest := sha256.Sum256(data)
	return ecdsa.Verify(sh.pub, digest[:], r, s), nil
}

// WrapKey implements Provider. The result is the HPKE encapsulated key
// followed by the sealed key bytes.
func (p *SoftwareProvider) WrapKey(ctx context.Context, h KeyHandle, keyBytes []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sh, err := p.handle(h, AlgorithmHPKE, KeyUsageWrap, StageWrap)
	if err != nil {
		return nil, err
	}
	sender, err := wrapSuite.NewSender(sh.wrapPub, wrapInfo)
	if err != nil {
		return nil, fail(ErrInvalidArgument, StageWrap, goerrors.Wrap(err, ErrCodeProvider, "failed to create HPKE sender"))
	}
	enc, sealer, err := sender.Setup(p.rand())
	if err != nil {
		return nil, fail(ErrInvalidArgument, StageWrap, goerrors.Wrap(err, ErrCodeRandom, "failed to set up HPKE context"))
	}
	ct, err := sealer.Seal(keyBytes, nil)
	if err != nil {
		return nil, fail(ErrInvalidArgument, StageWrap, goerrors.Wrap(err, ErrCodeProvider, "failed to seal key"))
	}
	out := make([]byte, 0, len(enc)+len(ct))
	out = append(out, enc...)
	return append(out, ct...), nil
}

// UnwrapKey implements Provider.
func (p *SoftwareProvider) UnwrapKey(ctx context.Context, h KeyHandle, wrapped []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sh, err := p.handle(h, AlgorithmHPKE, KeyUsageUnwrap, StageUnwrap)
	if err != nil {
		return nil, err
	}
	encSize := hpke.KEM_P256_HKDF_SHA256.Scheme().CiphertextSize()
	if len(wrapped) <= encSize {
		richErr := goerrors.New(ErrCodeAuthentication, "wrapped key is truncated")
		return nil, fail(ErrAuthentication, StageUnwrap, richErr)
	}
	receiver, err := wrapSuite.NewReceiver(sh.wrapKey, wrapInfo)
	if err != nil {
		return nil, fail(ErrInvalidArgument, StageUnwrap, goerrors.Wrap(err, ErrCodeProvider, "failed to create HPKE receiver"))
	}
	opener, err := receiver.Setup(wrapped[:encSize])
	if err != nil {
		return nil, fail(ErrAuthentication, StageUnwrap, goerrors.Wrap(err, ErrCodeAuthentication, "invalid encapsulated key"))
	}
	keyBytes, err := opener.Open(wrapped[encSize:], nil)
	if err != nil {
		return nil, fail(ErrAuthentication, StageUnwrap, goerrors.Wrap(err, ErrCodeAuthentication, "wrapped key failed authentication"))
	}
	return keyBytes, nil
}

// Digest implements Provider.
func (p *SoftwareProvider) Digest(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

// GenerateKey implements Provider. Keys are extractable and carry the
// key_ops WebCrypto assigns to the private (or secret) half.
func (p *SoftwareProvider) GenerateKey(ctx context.Context, alg Algorithm) (*JWK, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch alg {
	case AlgorithmAESGCM:
		return p.generateSecret(ctx, KeySize, AlgA256GCM, KeyUsageEncrypt, KeyUsageDecrypt)
	case AlgorithmHMAC:
		return p.generateSecret(ctx, HMACKeySize, AlgHS256, KeyUsageSign, KeyUsageVerify)
	case AlgorithmECDSA:
		return p.generateP256(AlgES256, KeyUsageSign)
	case AlgorithmHPKE:
		return p.generateP256("", KeyUsageUnwrap)
	default:
		richErr := goerrors.New(ErrCodeKeyGeneration, fmt.Sprintf("unsupported algorithm %q", alg))
		return nil, fail(ErrInvalidArgument, StageGenerate, richErr)
	}
}

func (p *SoftwareProvider) generateSecret(ctx context.Context, size int, alg string, ops ...KeyUsage) (*JWK, error) {
	secret, err := p.RandomBytes(ctx, size)
	if err != nil {
		return nil, err
	}
	defer Zeroize(secret)
	key, err := ExportJWK(secret)
	if err != nil {
		return nil, err
	}
	return decorate(key, alg, ops...), nil
}

func (p *SoftwareProvider) generateP256(alg string, ops ...KeyUsage) (*JWK, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), p.rand())
	if err != nil {
		richErr := goerrors.Wrap(err, ErrCodeKeyGeneration, "failed to generate P-256 key")
		return nil, fail(ErrInvalidArgument, StageGenerate, richErr)
	}
	key, err := ExportJWK(priv)
	if err != nil {
		return nil, err
	}
	return decorate(key, alg, ops...), nil
}

// decorate stamps role metadata on exported key material.
func decorate(key *JWK, alg string, ops ...KeyUsage) *JWK {
	key.Alg = alg
	key.Ext = true
	key.KeyOps = make([]string, len(ops))
	for i, op := range ops {
		key.KeyOps[i] = string(op)
	}
	return key
}

// RandomBytes implements Provider.
func (p *SoftwareProvider) RandomBytes(ctx context.Context, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		richErr := goerrors.New(ErrCodeInvalidArgument, fmt.Sprintf("negative length %d", n))
		return nil, fail(ErrInvalidArgument, StageGenerate, richErr)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(p.rand(), b); err != nil {
		return nil, fail(ErrInvalidArgument, StageGenerate, goerrors.Wrap(err, ErrCodeRandom, "failed to read random bytes"))
	}
	return b, nil
}

func importFailure(msg string) error {
	return fail(ErrKeyImport, StageImport, goerrors.New(ErrCodeKeyImport, msg))
}

func capabilityFailure(msg string) error {
	return fail(ErrKeyImport, StageImport, goerrors.New(ErrCodeKeyCapability, msg))
}
