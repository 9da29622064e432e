// provider_plugin.go: Provider backed by a go-plugins manager
//
// Every call is forwarded to a named plugin as a ProviderRequest. The
// plugin owns the math; this side only validates handles and maps
// ProviderResponse back onto the package error taxonomy.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"context"
	"fmt"
	"slices"

	goerrors "github.com/agilira/go-errors"
	goplugins "github.com/agilira/go-plugins"
)

// PluginProvider implements Provider by executing requests on a plugin.
type PluginProvider struct {
	manager *goplugins.Manager[ProviderRequest, ProviderResponse]
	name    string
}

// NewPluginProvider returns a Provider that forwards to the plugin registered
// under name in manager.
func NewPluginProvider(manager *goplugins.Manager[ProviderRequest, ProviderResponse], name string) *PluginProvider {
	return &PluginProvider{manager: manager, name: name}
}

// pluginHandle keeps a private copy of the key; plugins are stateless.
type pluginHandle struct {
	alg    Algorithm
	usages []KeyUsage
	key    *JWK
}

func (h *pluginHandle) Algorithm() Algorithm { return h.alg }

func (h *pluginHandle) Usages() []KeyUsage { return slices.Clone(h.usages) }

// Name implements Provider.
func (p *PluginProvider) Name() string { return p.name }

// call executes req. Transport failures wrap ErrKeyImport during import and
// ErrInvalidArgument otherwise; a response with Success=false wraps rejected.
func (p *PluginProvider) call(ctx context.Context, stage Stage, rejected error, req ProviderRequest) (ProviderResponse, error) {
	if err := ctx.Err(); err != nil {
		return ProviderResponse{}, err
	}
	resp, err := p.manager.Execute(ctx, p.name, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ProviderResponse{}, ctxErr
		}
		transport := ErrInvalidArgument
		if stage == StageImport {
			transport = ErrKeyImport
		}
		richErr := goerrors.Wrap(err, ErrCodeProvider, fmt.Sprintf("plugin %s failed on %s", p.name, req.Operation))
		return ProviderResponse{}, fail(transport, stage, richErr)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("plugin %s rejected %s", p.name, req.Operation)
		}
		return ProviderResponse{}, fail(rejected, stage, goerrors.New(ErrCodeProvider, msg))
	}
	return resp, nil
}

// keyed validates h and builds the request for a keyed operation.
func (p *PluginProvider) keyed(h KeyHandle, op string, usage KeyUsage, stage Stage, algs ...Algorithm) (ProviderRequest, error) {
	ph, ok := h.(*pluginHandle)
	if !ok || ph == nil {
		richErr := goerrors.New(ErrCodeProvider, fmt.Sprintf("foreign key handle %T", h))
		return ProviderRequest{}, fail(ErrInvalidArgument, stage, richErr)
	}
	if !slices.Contains(algs, ph.alg) {
		richErr := goerrors.New(ErrCodeKeyCapability, fmt.Sprintf("%s key cannot be used for %s", ph.alg, stage))
		return ProviderRequest{}, fail(ErrKeyImport, stage, richErr)
	}
	if !slices.Contains(ph.usages, usage) {
		richErr := goerrors.New(ErrCodeKeyCapability, fmt.Sprintf("key was not imported for %q", usage))
		return ProviderRequest{}, fail(ErrKeyImport, stage, richErr)
	}
	return ProviderRequest{
		Operation: op,
		Algorithm: ph.alg,
		Usages:    []KeyUsage{usage},
		Key:       ph.key,
	}, nil
}

// ImportKey implements Provider. The plugin validates the key; the handle
// holds a clone so the caller's *JWK identity is not retained.
func (p *PluginProvider) ImportKey(ctx context.Context, key *JWK, alg Algorithm, usages []KeyUsage) (KeyHandle, error) {
	if key == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, importFailure("key material is nil")
	}
	if len(usages) == 0 {
		return nil, importFailure("no key usages requested")
	}
	clone := key.Clone()
	_, err := p.call(ctx, StageImport, ErrKeyImport, ProviderRequest{
		Operation: OperationImport,
		Algorithm: alg,
		Usages:    slices.Clone(usages),
		Key:       clone,
	})
	if err != nil {
		return nil, err
	}
	return &pluginHandle{alg: alg, usages: slices.Clone(usages), key: clone}, nil
}

// Encrypt implements Provider.
func (p *PluginProvider) Encrypt(ctx context.Context, h KeyHandle, iv, plaintext []byte) ([]byte, error) {
	req, err := p.keyed(h, OperationEncrypt, KeyUsageEncrypt, StageEncrypt, AlgorithmAESGCM)
	if err != nil {
		return nil, err
	}
	req.IV, req.Data = iv, plaintext
	resp, err := p.call(ctx, StageEncrypt, ErrInvalidArgument, req)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Decrypt implements Provider. A rejection is an authentication failure.
func (p *PluginProvider) Decrypt(ctx context.Context, h KeyHandle, iv, ciphertext []byte) ([]byte, error) {
	req, err := p.keyed(h, OperationDecrypt, KeyUsageDecrypt, StageDecrypt, AlgorithmAESGCM)
	if err != nil {
		return nil, err
	}
	req.IV, req.Data = iv, ciphertext
	resp, err := p.call(ctx, StageDecrypt, ErrAuthentication, req)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Sign implements Provider.
func (p *PluginProvider) Sign(ctx context.Context, h KeyHandle, data []byte) ([]byte, error) {
	req, err := p.keyed(h, OperationSign, KeyUsageSign, StageSign, AlgorithmECDSA, AlgorithmHMAC)
	if err != nil {
		return nil, err
	}
	req.Data = data
	resp, err := p.call(ctx, StageSign, ErrInvalidArgument, req)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Verify implements Provider. The plugin reports a mismatch with
// Success=true and Valid=false.
func (p *PluginProvider) Verify(ctx context.Context, h KeyHandle, data, signature []byte) (bool, error) {
	req, err := p.keyed(h, OperationVerify, KeyUsageVerify, StageVerify, AlgorithmECDSA, AlgorithmHMAC)
	if err != nil {
		return false, err
	}
	req.Data, req.Signature = data, signature
	resp, err := p.call(ctx, StageVerify, ErrInvalidArgument, req)
	if err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// WrapKey implements Provider.
func (p *PluginProvider) WrapKey(ctx context.Context, h KeyHandle, keyBytes []byte) ([]byte, error) {
	req, err := p.keyed(h, OperationWrap, KeyUsageWrap, StageWrap, AlgorithmHPKE)
	if err != nil {
		return nil, err
	}
	req.Data = keyBytes
	resp, err := p.call(ctx, StageWrap, ErrInvalidArgument, req)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// UnwrapKey implements Provider. A rejection is an authentication failure.
func (p *PluginProvider) UnwrapKey(ctx context.Context, h KeyHandle, wrapped []byte) ([]byte, error) {
	req, err := p.keyed(h, OperationUnwrap, KeyUsageUnwrap, StageUnwrap, AlgorithmHPKE)
	if err != nil {
		return nil, err
	}
	req.Data = wrapped
	resp, err := p.call(ctx, StageUnwrap, ErrAuthentication, req)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Digest implements Provider.
func (p *PluginProvider) Digest(ctx context.Context, data []byte) ([]byte, error) {
	resp, err := p.call(ctx, StageEncode, ErrInvalidArgument, ProviderRequest{Operation: OperationDigest, Data: data})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GenerateKey implements Provider.
func (p *PluginProvider) GenerateKey(ctx context.Context, alg Algorithm) (*JWK, error) {
	resp, err := p.call(ctx, StageGenerate, ErrInvalidArgument, ProviderRequest{Operation: OperationGenerate, Algorithm: alg})
	if err != nil {
		return nil, err
	}
	if resp.Key == nil {
		richErr := goerrors.New(ErrCodeKeyGeneration, fmt.Sprintf("plugin %s returned no key", p.name))
		return nil, fail(ErrInvalidArgument, StageGenerate, richErr)
	}
	return resp.Key, nil
}

// RandomBytes implements Provider.
func (p *PluginProvider) RandomBytes(ctx context.Context, n int) ([]byte, error) {
	resp, err := p.call(ctx, StageGenerate, ErrInvalidArgument, ProviderRequest{Operation: OperationRandom, Length: n})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != n {
		richErr := goerrors.New(ErrCodeRandom, fmt.Sprintf("plugin %s returned %d random bytes, want %d", p.name, len(resp.Data), n))
		return nil, fail(ErrInvalidArgument, StageGenerate, richErr)
	}
	return resp.Data, nil
}
