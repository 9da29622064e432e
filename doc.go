// Package zeyra provides per-resource envelope cryptography keyed by JSON Web Keys.
//
// The package offers:
//   - AES-256-GCM envelopes for JSON resources with a SHA-256 content digest
//   - ECDSA P-256 signing and verification of JSON values
//   - HMAC-SHA-256 tags over JSON values
//   - Key wrapping with HPKE (DHKEM P-256, HKDF-SHA256, AES-256-GCM)
//   - Keyset generation, and deterministic derivation from a root secret
//     or a passphrase
//
// # Agents and Clusters
//
// Every role (cipher, hmac, signing, verification, wrapping, unwrapping) has
// two layers. An agent is bound to one *JWK and imports it exactly once, on
// a goroutine started at construction; all operations await that import.
// A cluster is the stateless-looking facade that callers use: it resolves
// the agent for a key from a cache and runs the full pipeline around it.
//
// The cluster cache is keyed by the identity of the *JWK, not its value,
// and holds both sides weakly. Two equal keys in two different *JWK values
// get two agents. Dropping the last reference to a key lets its agent and
// cache entry go.
//
// # Quick Start
//
//	ctx := context.Background()
//	keyset, err := zeyra.GenerateKeyset(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	resource := map[string]any{"id": "resource-1", "kind": "note"}
//	artifact, err := zeyra.Encrypt(ctx, keyset.SymmetricJWK, resource)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// {"digest": artifact.Digest, "id": "resource-1", "kind": "note"}
//	decrypted, err := zeyra.Decrypt(ctx, keyset.SymmetricJWK, artifact)
//
//	sig, _ := zeyra.Sign(ctx, keyset.PrivateJWK, map[string]any{"nonce": 1})
//	ok, _ := zeyra.Verify(ctx, keyset.PublicJWK, map[string]any{"nonce": 1}, sig)
//
// # Artifacts
//
// Encrypt serializes the resource to JSON, digests the JSON bytes with
// SHA-256, compresses them (gzip unless configured otherwise) and seals
// the result with AES-256-GCM under a fresh 12-byte IV. The artifact
// carries digest, ciphertext and IV as unpadded base64url. Decrypt reverses
// each step and returns the resource with the recorded digest merged in.
// The digest is carried, not re-verified, unless the cluster was built
// with WithDigestVerification.
//
// # Error Handling
//
// Every error wraps one of ErrKeyImport, ErrAuthentication,
// ErrInvalidEncoding or ErrInvalidArgument, names the failing stage, and
// carries a github.com/agilira/go-errors code:
//
//	resource, err := zeyra.Decrypt(ctx, key, artifact)
//	if errors.Is(err, zeyra.ErrAuthentication) {
//		// tampered artifact or wrong key
//	}
//
// A signature or tag that does not match is reported as false, never as an
// error. Context errors are returned as is.
//
// # Providers
//
// The cryptographic math lives behind the Provider interface. The built-in
// SoftwareProvider is registered in DefaultRegistry as "software"; other
// providers, including plugin-backed ones managed through
// github.com/agilira/go-plugins, can be registered and selected with
// WithProvider or through Config.
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0
package zeyra
