// encryption.go: AES-256-GCM cipher agent and the envelope cipher cluster.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"context"
	"crypto/subtle"

	goerrors "github.com/agilira/go-errors"
)

// DigestField is the member name under which Decrypt returns the digest.
const DigestField = "digest"

// Sealed is the raw output of one AES-GCM encryption.
type Sealed struct {
	IV         []byte
	Ciphertext []byte // includes the GCM tag
}

// Artifact is the transport form of an encrypted resource. All three
// members are unpadded base64url.
type Artifact struct {
	Digest     string `json:"digest" yaml:"digest"`
	Ciphertext string `json:"ciphertext" yaml:"ciphertext"`
	IV         string `json:"iv" yaml:"iv"`
}

// CipherAgent encrypts and decrypts raw bytes under one AES-256-GCM key.
type CipherAgent struct {
	agent
}

// NewCipherAgent starts importing key for encrypt and decrypt.
func NewCipherAgent(key *JWK, opts ...Option) *CipherAgent {
	return newCipherAgent(key, newOptions(opts))
}

func newCipherAgent(key *JWK, o options) *CipherAgent {
	return &CipherAgent{newAgent("cipher", key, AlgorithmAESGCM, []KeyUsage{KeyUsageEncrypt, KeyUsageDecrypt}, o)}
}

// Encrypt seals plaintext under a fresh random 12-byte IV.
func (a *CipherAgent) Encrypt(ctx context.Context, plaintext []byte) (*Sealed, error) {
	h, err := a.handle(ctx)
	if err != nil {
		return nil, err
	}
	iv, err := a.provider.RandomBytes(ctx, IVSize)
	if err != nil {
		return nil, err
	}
	ciphertext, err := a.provider.Encrypt(ctx, h, iv, plaintext)
	if err != nil {
		return nil, err
	}
	return &Sealed{IV: iv, Ciphertext: ciphertext}, nil
}

// Decrypt opens sealed. A tag mismatch, a wrong IV or a wrong key fail with
// ErrAuthentication.
func (a *CipherAgent) Decrypt(ctx context.Context, sealed *Sealed) ([]byte, error) {
	if sealed == nil {
		richErr := goerrors.New(ErrCodeInvalidArgument, "sealed data is nil")
		return nil, fail(ErrInvalidArgument, StageDecrypt, richErr)
	}
	h, err := a.handle(ctx)
	if err != nil {
		return nil, err
	}
	return a.provider.Decrypt(ctx, h, sealed.IV, sealed.Ciphertext)
}

// CipherCluster turns JSON resources into artifacts and back, caching one
// CipherAgent per key-material identity.
type CipherCluster struct {
	opts   options
	agents *agentCache[CipherAgent]
}

// NewCipherCluster creates a cipher cluster with its own agent cache.
func NewCipherCluster(opts ...Option) *CipherCluster {
	o := newOptions(opts)
	return &CipherCluster{
		opts: o,
		agents: newAgentCache("cipher", o, func(key *JWK) *CipherAgent {
			return newCipherAgent(key, o)
		}),
	}
}

// Agent resolves the cached agent for key without running an operation.
func (c *CipherCluster) Agent(key *JWK) (*CipherAgent, error) {
	if key == nil {
		return nil, nilKeyError(StageImport)
	}
	return c.agents.load(key), nil
}

// Encrypt converts a JSON-serializable resource into an artifact.
//
// The resource is serialized to JSON, digested with SHA-256, compressed
// and sealed with AES-256-GCM under a fresh IV. The digest covers the
// uncompressed JSON bytes.
//
// Decrypt only returns resources that serialize to a JSON object, because
// it merges the digest into the result. Arrays, scalars and nil encrypt
// fine but can only be read back with DecryptInto.
//
// Parameters:
//   - ctx: Bounds the wait for the key import and the provider calls
//   - key: Symmetric A256GCM key material
//   - resource: Any value encoding/json can serialize
//
// Returns:
//   - The artifact with digest, ciphertext and IV in base64url
//   - An error wrapping ErrKeyImport, ErrInvalidEncoding or a context error
//
// Example:
//
//	keyset, _ := zeyra.GenerateKeyset(ctx)
//	artifact, err := zeyra.Encrypt(ctx, keyset.SymmetricJWK, map[string]any{"id": "resource-1"})
//	if err != nil {
//		log.Fatal(err)
//	}
func (c *CipherCluster) Encrypt(ctx context.Context, key *JWK, resource any) (*Artifact, error) {
	agent, err := c.Agent(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := FromJSON(resource)
	if err != nil {
		return nil, err
	}
	defer Zeroize(plaintext)

	digest, err := c.opts.provider.Digest(ctx, plaintext)
	if err != nil {
		return nil, err
	}

	compressed, err := c.opts.compressor.Compress(plaintext)
	if err != nil {
		return nil, err
	}
	defer Zeroize(compressed)

	sealed, err := agent.Encrypt(ctx, compressed)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Digest:     ToBase64URLString(digest),
		Ciphertext: ToBase64URLString(sealed.Ciphertext),
		IV:         ToBase64URLString(sealed.IV),
	}, nil
}

// Decrypt reverses Encrypt for resources that are JSON objects.
//
// The returned map holds the resource members plus DigestField set to the
// digest recorded in the artifact. A resource that has its own digest
// member keeps it. Numbers decode as json.Number.
//
// The recorded digest is not recomputed unless the cluster was built with
// WithDigestVerification; the AEAD tag alone guarantees ciphertext
// integrity.
func (c *CipherCluster) Decrypt(ctx context.Context, key *JWK, artifact *Artifact) (map[string]any, error) {
	plaintext, err := c.open(ctx, key, artifact)
	if err != nil {
		return nil, err
	}
	defer Zeroize(plaintext)

	var resource map[string]any
	if err := ToJSON(plaintext, &resource); err != nil {
		return nil, err
	}
	if resource == nil {
		richErr := goerrors.New(ErrCodeDecode, "resource is not a JSON object")
		return nil, fail(ErrInvalidEncoding, StageDecode, richErr)
	}

	out := make(map[string]any, len(resource)+1)
	out[DigestField] = artifact.Digest
	for k, v := range resource {
		out[k] = v
	}
	return out, nil
}

// DecryptInto reverses Encrypt into v, which may be any value encoding/json
// can decode into. The digest is not merged.
func (c *CipherCluster) DecryptInto(ctx context.Context, key *JWK, artifact *Artifact, v any) error {
	plaintext, err := c.open(ctx, key, artifact)
	if err != nil {
		return err
	}
	defer Zeroize(plaintext)
	return ToJSON(plaintext, v)
}

// open decodes, decrypts and decompresses an artifact.
func (c *CipherCluster) open(ctx context.Context, key *JWK, artifact *Artifact) ([]byte, error) {
	if artifact == nil {
		richErr := goerrors.New(ErrCodeInvalidArgument, "artifact is nil")
		return nil, fail(ErrInvalidArgument, StageDecrypt, richErr)
	}
	agent, err := c.Agent(key)
	if err != nil {
		return nil, err
	}

	ciphertext, err := FromBase64URLString(artifact.Ciphertext)
	if err != nil {
		return nil, err
	}
	iv, err := FromBase64URLString(artifact.IV)
	if err != nil {
		return nil, err
	}

	compressed, err := agent.Decrypt(ctx, &Sealed{IV: iv, Ciphertext: ciphertext})
	if err != nil {
		return nil, err
	}
	defer Zeroize(compressed)

	plaintext, err := c.opts.compressor.Decompress(compressed)
	if err != nil {
		return nil, err
	}

	if c.opts.verifyDigest {
		if err := c.checkDigest(ctx, plaintext, artifact.Digest); err != nil {
			Zeroize(plaintext)
			return nil, err
		}
	}
	return plaintext, nil
}

func (c *CipherCluster) checkDigest(ctx context.Context, plaintext []byte, recorded string) error {
	want, err := FromBase64URLString(recorded)
	if err != nil {
		return err
	}
	got, err := c.opts.provider.Digest(ctx, plaintext)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(want, got) != 1 {
		c.opts.log().WithField("role", "cipher").Warn("artifact digest does not match decrypted resource")
		richErr := goerrors.New(ErrCodeAuthentication, "recorded digest does not match resource")
		return fail(ErrAuthentication, StageDecrypt, richErr)
	}
	return nil
}

func nilKeyError(stage Stage) error {
	return fail(ErrInvalidArgument, stage, goerrors.New(ErrCodeInvalidArgument, "key material is nil"))
}
