// provider.go: Cryptographic provider interface and registry
//
// Agents never touch cryptographic primitives directly. They import their
// key through a Provider and hand it the resulting KeyHandle on every call.
// Providers are looked up by name in a ProviderRegistry, which can also carry
// a github.com/agilira/go-plugins manager for out-of-process providers.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"context"
	"fmt"
	"sort"
	"sync"

	goerrors "github.com/agilira/go-errors"
	goplugins "github.com/agilira/go-plugins"
)

// Algorithm names the primitive family a key is imported for.
type Algorithm string

const (
	AlgorithmAESGCM Algorithm = "AES-GCM" // AES-256-GCM envelopes
	AlgorithmHMAC   Algorithm = "HMAC"    // HMAC-SHA-256 tags
	AlgorithmECDSA  Algorithm = "ECDSA"   // ECDSA P-256 with SHA-256
	AlgorithmHPKE   Algorithm = "HPKE"    // DHKEM(P-256) key wrapping
)

// KeyUsage mirrors the WebCrypto key_ops vocabulary.
type KeyUsage string

const (
	KeyUsageEncrypt KeyUsage = "encrypt"
	KeyUsageDecrypt KeyUsage = "decrypt"
	KeyUsageSign    KeyUsage = "sign"
	KeyUsageVerify  KeyUsage = "verify"
	KeyUsageWrap    KeyUsage = "wrapKey"
	KeyUsageUnwrap  KeyUsage = "unwrapKey"
)

// KeyHandle is a provider-native imported key. Handles are only meaningful
// to the provider that produced them.
type KeyHandle interface {
	Algorithm() Algorithm
	Usages() []KeyUsage
}

// Provider performs the cryptographic math for agents and clusters.
//
// Implementations must be safe for concurrent use. ImportKey failures must
// wrap ErrKeyImport; authentication failures in Decrypt and UnwrapKey must
// wrap ErrAuthentication. Verify reports a mismatch as false, not as an error.
type Provider interface {
	// Name identifies the provider in logs and in the registry.
	Name() string

	// ImportKey validates key material for alg and the requested usages.
	ImportKey(ctx context.Context, key *JWK, alg Algorithm, usages []KeyUsage) (KeyHandle, error)

	// AES-GCM
	Encrypt(ctx context.Context, h KeyHandle, iv, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, h KeyHandle, iv, ciphertext []byte) ([]byte, error)

	// ECDSA and HMAC
	Sign(ctx context.Context, h KeyHandle, data []byte) ([]byte, error)
	Verify(ctx context.Context, h KeyHandle, data, signature []byte) (bool, error)

	// Key wrapping
	WrapKey(ctx context.Context, h KeyHandle, keyBytes []byte) ([]byte, error)
	UnwrapKey(ctx context.Context, h KeyHandle, wrapped []byte) ([]byte, error)

	// Digest returns the SHA-256 digest of data.
	Digest(ctx context.Context, data []byte) ([]byte, error)

	// GenerateKey creates fresh, extractable key material for alg. For the
	// asymmetric algorithms the private half is returned.
	GenerateKey(ctx context.Context, alg Algorithm) (*JWK, error)

	// RandomBytes returns n cryptographically random bytes.
	RandomBytes(ctx context.Context, n int) ([]byte, error)
}

// HealthChecker is implemented by providers backed by a remote service or
// device. The registry refuses to hand out an unhealthy provider.
type HealthChecker interface {
	IsHealthy() bool
}

// Operations carried in ProviderRequest.Operation.
const (
	OperationImport   = "import"
	OperationEncrypt  = "encrypt"
	OperationDecrypt  = "decrypt"
	OperationSign     = "sign"
	OperationVerify   = "verify"
	OperationWrap     = "wrap"
	OperationUnwrap   = "unwrap"
	OperationDigest   = "digest"
	OperationGenerate = "generate"
	OperationRandom   = "random"
)

// ProviderRequest is the request envelope exchanged with provider plugins.
// Keyed operations carry the key together with the algorithm and the usage
// it was imported for, so plugins can stay stateless.
type ProviderRequest struct {
	Operation string     `json:"operation"`           // one of the Operation* constants
	Algorithm Algorithm  `json:"algorithm,omitempty"` // for keyed operations and generate
	Usages    []KeyUsage `json:"usages,omitempty"`
	Key       *JWK       `json:"key,omitempty"` // key material for the operation
	IV        []byte     `json:"iv,omitempty"`
	Data      []byte     `json:"data,omitempty"`
	Signature []byte     `json:"signature,omitempty"`
	Length    int        `json:"length,omitempty"` // random
}

// ProviderResponse is the response envelope returned by provider plugins.
type ProviderResponse struct {
	Success bool   `json:"success"`
	Data    []byte `json:"data,omitempty"`
	Valid   bool   `json:"valid,omitempty"` // verify result
	Key     *JWK   `json:"key,omitempty"`   // generated key material
	Error   string `json:"error,omitempty"`
}

// Registry errors with codes for auditing
var (
	ErrProviderNotFound  = goerrors.New("ZEYRA_PROVIDER_001", "provider not found")
	ErrProviderUnhealthy = goerrors.New("ZEYRA_PROVIDER_002", "provider health check failed")
	ErrProviderInvalid   = goerrors.New("ZEYRA_PROVIDER_003", "invalid provider registration")
)

// SoftwareProviderName is the registry name of the built-in provider.
const SoftwareProviderName = "software"

// ProviderRegistry holds named providers and a default.
type ProviderRegistry struct {
	mu              sync.RWMutex
	pluginManager   *goplugins.Manager[ProviderRequest, ProviderResponse] // Plugin manager for external providers
	providers       map[string]Provider
	defaultProvider string
}

// NewProviderRegistry creates an empty registry. pluginManager may be nil when
// no plugin-backed providers are used; otherwise names without a registered
// provider resolve to the plugin of the same name.
func NewProviderRegistry(pluginManager *goplugins.Manager[ProviderRequest, ProviderResponse]) *ProviderRegistry {
	return &ProviderRegistry{
		pluginManager: pluginManager,
		providers:     make(map[string]Provider),
	}
}

// DefaultRegistry holds the software provider under SoftwareProviderName.
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry(nil)
	// Registration of a non-nil provider under a fixed name cannot fail.
	_ = r.Register(SoftwareProviderName, NewSoftwareProvider())
	return r
}

// Register adds a provider. The first registered provider becomes the
// default.
func (r *ProviderRegistry) Register(name string, provider Provider) error {
	if provider == nil {
		return fmt.Errorf("%w: provider cannot be nil", ErrProviderInvalid)
	}
	if name == "" {
		return fmt.Errorf("%w: provider name cannot be empty", ErrProviderInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[name] = provider
	if r.defaultProvider == "" {
		r.defaultProvider = name
	}
	return nil
}

// SetDefault selects the provider returned for an empty name.
func (r *ProviderRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("%w: provider %s", ErrProviderNotFound, name)
	}
	r.defaultProvider = name
	return nil
}

// Provider returns a provider by name; the empty name selects the default.
func (r *ProviderRegistry) Provider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultProvider
	}

	provider, exists := r.providers[name]
	if !exists {
		return r.pluginProvider(name)
	}

	// Health check before returning provider
	if hc, ok := provider.(HealthChecker); ok && !hc.IsHealthy() {
		return nil, fmt.Errorf("%w: provider %s", ErrProviderUnhealthy, name)
	}

	return provider, nil
}

// pluginProvider resolves a name the registry does not hold through the
// plugin manager.
func (r *ProviderRegistry) pluginProvider(name string) (Provider, error) {
	if r.pluginManager == nil {
		return nil, fmt.Errorf("%w: provider %s", ErrProviderNotFound, name)
	}
	plugin, err := r.pluginManager.GetPlugin(name)
	if err != nil {
		return nil, fmt.Errorf("%w: provider %s", ErrProviderNotFound, name)
	}
	if health := plugin.Health(context.Background()); health.Status != goplugins.StatusHealthy {
		return nil, fmt.Errorf("%w: plugin %s is %s", ErrProviderUnhealthy, name, health.Status)
	}
	return NewPluginProvider(r.pluginManager, name), nil
}

// Names lists registered provider names and plugin names in sorted order.
func (r *ProviderRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	if r.pluginManager != nil {
		for name := range r.pluginManager.ListPlugins() {
			if _, ok := r.providers[name]; !ok {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// PluginManager returns the plugin manager given at construction, or nil.
func (r *ProviderRegistry) PluginManager() *goplugins.Manager[ProviderRequest, ProviderResponse] {
	return r.pluginManager
}

// LookupProvider resolves a provider from DefaultRegistry.
func LookupProvider(name string) (Provider, error) {
	return DefaultRegistry.Provider(name)
}
