// wrapping.go: Key wrapping agents and clusters (HPKE over P-256).
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import "context"

// WrappingAgent wraps key bytes to one P-256 wrap public key.
type WrappingAgent struct {
	agent
}

// NewWrappingAgent starts importing key for wrapKey.
func NewWrappingAgent(key *JWK, opts ...Option) *WrappingAgent {
	return newWrappingAgent(key, newOptions(opts))
}

func newWrappingAgent(key *JWK, o options) *WrappingAgent {
	return &WrappingAgent{newAgent("wrapping", key, AlgorithmHPKE, []KeyUsage{KeyUsageWrap}, o)}
}

// Wrap seals keyBytes for the holder of the matching private key. Every
// call uses a fresh ephemeral key, so wrapping the same bytes twice gives
// different output.
func (a *WrappingAgent) Wrap(ctx context.Context, keyBytes []byte) ([]byte, error) {
	h, err := a.handle(ctx)
	if err != nil {
		return nil, err
	}
	return a.provider.WrapKey(ctx, h, keyBytes)
}

// UnwrappingAgent opens wrapped keys with one P-256 wrap private key.
type UnwrappingAgent struct {
	agent
}

// NewUnwrappingAgent starts importing key for unwrapKey.
func NewUnwrappingAgent(key *JWK, opts ...Option) *UnwrappingAgent {
	return newUnwrappingAgent(key, newOptions(opts))
}

func newUnwrappingAgent(key *JWK, o options) *UnwrappingAgent {
	return &UnwrappingAgent{newAgent("unwrapping", key, AlgorithmHPKE, []KeyUsage{KeyUsageUnwrap}, o)}
}

// Unwrap opens wrapped. Tampered or foreign input fails with
// ErrAuthentication.
func (a *UnwrappingAgent) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	h, err := a.handle(ctx)
	if err != nil {
		return nil, err
	}
	return a.provider.UnwrapKey(ctx, h, wrapped)
}

// WrappingCluster wraps key material as base64url strings.
type WrappingCluster struct {
	agents *agentCache[WrappingAgent]
}

// NewWrappingCluster creates a wrapping cluster with its own agent cache.
func NewWrappingCluster(opts ...Option) *WrappingCluster {
	o := newOptions(opts)
	return &WrappingCluster{
		agents: newAgentCache("wrapping", o, func(key *JWK) *WrappingAgent {
			return newWrappingAgent(key, o)
		}),
	}
}

// Agent resolves the cached agent for wrapKey.
func (c *WrappingCluster) Agent(wrapKey *JWK) (*WrappingAgent, error) {
	if wrapKey == nil {
		return nil, nilKeyError(StageImport)
	}
	return c.agents.load(wrapKey), nil
}

// Wrap serializes key to JSON and wraps it to wrapKey.
func (c *WrappingCluster) Wrap(ctx context.Context, wrapKey, key *JWK) (string, error) {
	agent, err := c.Agent(wrapKey)
	if err != nil {
		return "", err
	}
	if key == nil {
		return "", nilKeyError(StageWrap)
	}
	data, err := FromJSON(key)
	if err != nil {
		return "", err
	}
	defer Zeroize(data)

	wrapped, err := agent.Wrap(ctx, data)
	if err != nil {
		return "", err
	}
	return ToBase64URLString(wrapped), nil
}

// UnwrappingCluster recovers key material wrapped by a WrappingCluster.
type UnwrappingCluster struct {
	agents *agentCache[UnwrappingAgent]
}

// NewUnwrappingCluster creates an unwrapping cluster with its own agent
// cache.
func NewUnwrappingCluster(opts ...Option) *UnwrappingCluster {
	o := newOptions(opts)
	return &UnwrappingCluster{
		agents: newAgentCache("unwrapping", o, func(key *JWK) *UnwrappingAgent {
			return newUnwrappingAgent(key, o)
		}),
	}
}

// Agent resolves the cached agent for unwrapKey.
func (c *UnwrappingCluster) Agent(unwrapKey *JWK) (*UnwrappingAgent, error) {
	if unwrapKey == nil {
		return nil, nilKeyError(StageImport)
	}
	return c.agents.load(unwrapKey), nil
}

// Unwrap decodes wrapped, opens it with unwrapKey and parses the JWK inside.
// Each call returns a new key-material identity.
func (c *UnwrappingCluster) Unwrap(ctx context.Context, unwrapKey *JWK, wrapped string) (*JWK, error) {
	agent, err := c.Agent(unwrapKey)
	if err != nil {
		return nil, err
	}
	raw, err := FromBase64URLString(wrapped)
	if err != nil {
		return nil, err
	}
	data, err := agent.Unwrap(ctx, raw)
	if err != nil {
		return nil, err
	}
	defer Zeroize(data)
	return ParseJWK(data)
}
