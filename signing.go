// signing.go: ECDSA P-256 signing and verification agents and clusters.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import "context"

// SigningAgent signs raw bytes with one ECDSA P-256 private key.
// Signatures are raw r||s, SignatureSize bytes.
type SigningAgent struct {
	agent
}

// NewSigningAgent starts importing key for sign. A key without d fails the
// import and every Sign call with ErrKeyImport.
func NewSigningAgent(key *JWK, opts ...Option) *SigningAgent {
	return newSigningAgent(key, newOptions(opts))
}

func newSigningAgent(key *JWK, o options) *SigningAgent {
	return &SigningAgent{newAgent("signing", key, AlgorithmECDSA, []KeyUsage{KeyUsageSign}, o)}
}

// Sign returns the signature of SHA-256(data).
func (a *SigningAgent) Sign(ctx context.Context, data []byte) ([]byte, error) {
	h, err := a.handle(ctx)
	if err != nil {
		return nil, err
	}
	return a.provider.Sign(ctx, h, data)
}

// VerificationAgent checks signatures with one ECDSA P-256 public key.
type VerificationAgent struct {
	agent
}

// NewVerificationAgent starts importing key for verify. Private key
// material is rejected; pass (*JWK).Public() instead.
func NewVerificationAgent(key *JWK, opts ...Option) *VerificationAgent {
	return newVerificationAgent(key, newOptions(opts))
}

func newVerificationAgent(key *JWK, o options) *VerificationAgent {
	return &VerificationAgent{newAgent("verification", key, AlgorithmECDSA, []KeyUsage{KeyUsageVerify}, o)}
}

// Verify reports whether signature is valid for data. Mismatched or
// malformed signatures are false, not errors.
func (a *VerificationAgent) Verify(ctx context.Context, data, signature []byte) (bool, error) {
	h, err := a.handle(ctx)
	if err != nil {
		return false, err
	}
	return a.provider.Verify(ctx, h, data, signature)
}

// SigningCluster signs JSON values and returns base64url signatures.
type SigningCluster struct {
	agents *agentCache[SigningAgent]
}

// NewSigningCluster creates a signing cluster with its own agent cache.
func NewSigningCluster(opts ...Option) *SigningCluster {
	o := newOptions(opts)
	return &SigningCluster{
		agents: newAgentCache("signing", o, func(key *JWK) *SigningAgent {
			return newSigningAgent(key, o)
		}),
	}
}

// Agent resolves the cached agent for key.
func (c *SigningCluster) Agent(key *JWK) (*SigningAgent, error) {
	if key == nil {
		return nil, nilKeyError(StageImport)
	}
	return c.agents.load(key), nil
}

// Sign serializes value to JSON, signs the bytes and returns the signature
// as base64url. Callers that need the signature to verify elsewhere must
// make sure the value serializes identically there.
func (c *SigningCluster) Sign(ctx context.Context, key *JWK, value any) (string, error) {
	agent, err := c.Agent(key)
	if err != nil {
		return "", err
	}
	data, err := FromJSON(value)
	if err != nil {
		return "", err
	}
	sig, err := agent.Sign(ctx, data)
	if err != nil {
		return "", err
	}
	return ToBase64URLString(sig), nil
}

// VerificationCluster verifies base64url signatures over JSON values.
type VerificationCluster struct {
	agents *agentCache[VerificationAgent]
}

// NewVerificationCluster creates a verification cluster with its own agent
// cache.
func NewVerificationCluster(opts ...Option) *VerificationCluster {
	o := newOptions(opts)
	return &VerificationCluster{
		agents: newAgentCache("verification", o, func(key *JWK) *VerificationAgent {
			return newVerificationAgent(key, o)
		}),
	}
}

// Agent resolves the cached agent for key.
func (c *VerificationCluster) Agent(key *JWK) (*VerificationAgent, error) {
	if key == nil {
		return nil, nilKeyError(StageImport)
	}
	return c.agents.load(key), nil
}

// Verify serializes value to JSON and checks signature against it. A
// signature that is not valid base64url fails with ErrInvalidEncoding; a
// well-formed signature that does not match is false.
func (c *VerificationCluster) Verify(ctx context.Context, key *JWK, value any, signature string) (bool, error) {
	agent, err := c.Agent(key)
	if err != nil {
		return false, err
	}
	sig, err := FromBase64URLString(signature)
	if err != nil {
		return false, err
	}
	data, err := FromJSON(value)
	if err != nil {
		return false, err
	}
	return agent.Verify(ctx, data, sig)
}
