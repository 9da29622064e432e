// hmac.go: HMAC-SHA-256 agent and cluster.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import "context"

// HmacAgent computes and checks HMAC-SHA-256 tags under one key.
type HmacAgent struct {
	agent
}

// NewHmacAgent starts importing key for sign and verify.
func NewHmacAgent(key *JWK, opts ...Option) *HmacAgent {
	return newHmacAgent(key, newOptions(opts))
}

func newHmacAgent(key *JWK, o options) *HmacAgent {
	return &HmacAgent{newAgent("hmac", key, AlgorithmHMAC, []KeyUsage{KeyUsageSign, KeyUsageVerify}, o)}
}

// Sign returns the tag for data.
func (a *HmacAgent) Sign(ctx context.Context, data []byte) ([]byte, error) {
	h, err := a.handle(ctx)
	if err != nil {
		return nil, err
	}
	return a.provider.Sign(ctx, h, data)
}

// Verify reports whether tag authenticates data. A mismatch is false.
func (a *HmacAgent) Verify(ctx context.Context, data, tag []byte) (bool, error) {
	h, err := a.handle(ctx)
	if err != nil {
		return false, err
	}
	return a.provider.Verify(ctx, h, data, tag)
}

// HmacCluster signs and verifies JSON values with HMAC keys. Unlike the
// ECDSA clusters it deals in raw tag bytes, not base64url strings.
type HmacCluster struct {
	agents *agentCache[HmacAgent]
}

// NewHmacCluster creates an HMAC cluster with its own agent cache.
func NewHmacCluster(opts ...Option) *HmacCluster {
	o := newOptions(opts)
	return &HmacCluster{
		agents: newAgentCache("hmac", o, func(key *JWK) *HmacAgent {
			return newHmacAgent(key, o)
		}),
	}
}

// Agent resolves the cached agent for key.
func (c *HmacCluster) Agent(key *JWK) (*HmacAgent, error) {
	if key == nil {
		return nil, nilKeyError(StageImport)
	}
	return c.agents.load(key), nil
}

// Sign serializes value to JSON and returns its raw HMAC tag.
func (c *HmacCluster) Sign(ctx context.Context, key *JWK, value any) ([]byte, error) {
	agent, err := c.Agent(key)
	if err != nil {
		return nil, err
	}
	data, err := FromJSON(value)
	if err != nil {
		return nil, err
	}
	return agent.Sign(ctx, data)
}

// Verify serializes value the same way Sign does and checks tag.
func (c *HmacCluster) Verify(ctx context.Context, key *JWK, value any, tag []byte) (bool, error) {
	agent, err := c.Agent(key)
	if err != nil {
		return false, err
	}
	data, err := FromJSON(value)
	if err != nil {
		return false, err
	}
	return agent.Verify(ctx, data, tag)
}
