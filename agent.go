// agent.go: Shared agent machinery and functional options
//
// An agent is bound to one key-material object for its whole life. The key
// import is started on a goroutine when the agent is constructed and its
// result is kept in a single-assignment future; every operation awaits that
// same future and the key is never imported twice.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"context"
	"errors"

	goerrors "github.com/agilira/go-errors"
	"github.com/sirupsen/logrus"
)

// Option configures agents, clusters and keyset generation.
type Option func(*options)

type options struct {
	provider     Provider
	compressor   Compressor
	logger       logrus.FieldLogger
	verifyDigest bool
}

// WithProvider selects the cryptographic provider. Nil is ignored.
func WithProvider(p Provider) Option {
	return func(o *options) {
		if p != nil {
			o.provider = p
		}
	}
}

// WithCompressor selects the envelope compressor. Nil is ignored.
func WithCompressor(c Compressor) Option {
	return func(o *options) {
		if c != nil {
			o.compressor = c
		}
	}
}

// WithLogger sets a logger in place of the package logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDigestVerification makes the cipher cluster recompute the SHA-256
// digest of every decrypted resource and reject artifacts whose recorded
// digest does not match with ErrAuthentication. Off by default: the
// recorded digest is otherwise carried through unchecked.
func WithDigestVerification() Option {
	return func(o *options) {
		o.verifyDigest = true
	}
}

func newOptions(opts []Option) options {
	o := options{compressor: GzipCompressor{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.provider == nil {
		if p, err := LookupProvider(""); err == nil {
			o.provider = p
		} else {
			o.provider = NewSoftwareProvider()
		}
	}
	return o
}

func (o options) log() logrus.FieldLogger {
	if o.logger != nil {
		return o.logger
	}
	return Logger()
}

// keyFuture is the single-assignment result of one key import.
type keyFuture struct {
	done   chan struct{}
	handle KeyHandle
	err    error
}

// await blocks until the import resolved or ctx is done. A resolved future
// wins over a cancelled context.
func (f *keyFuture) await(ctx context.Context) (KeyHandle, error) {
	select {
	case <-f.done:
		return f.handle, f.err
	default:
	}
	select {
	case <-f.done:
		return f.handle, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// agent is embedded by every role agent.
type agent struct {
	role     string
	provider Provider
	key      *keyFuture
}

// newAgent starts importing key. The import runs detached from any caller
// context so one cancelled caller cannot poison the agent for the others.
func newAgent(role string, key *JWK, alg Algorithm, usages []KeyUsage, o options) agent {
	a := agent{
		role:     role,
		provider: o.provider,
		key:      &keyFuture{done: make(chan struct{})},
	}
	log := o.log().WithFields(logrus.Fields{
		"role":     role,
		"provider": o.provider.Name(),
	})

	if key == nil {
		a.key.err = fail(ErrKeyImport, StageImport, goerrors.New(ErrCodeKeyImport, "key material is nil"))
		close(a.key.done)
		return a
	}

	go func(f *keyFuture, provider Provider) {
		defer close(f.done)
		h, err := provider.ImportKey(context.Background(), key, alg, usages)
		if err == nil && h == nil {
			err = goerrors.New(ErrCodeProvider, "provider returned no key handle")
		}
		if err != nil {
			if !errors.Is(err, ErrKeyImport) {
				err = fail(ErrKeyImport, StageImport, goerrors.Wrap(err, ErrCodeKeyImport, "provider rejected key"))
			}
			log.WithError(err).Warn("key import failed")
			f.err = err
			return
		}
		f.handle = h
		log.WithField("fingerprint", KeyFingerprint(key)).Debug("key imported")
	}(a.key, o.provider)

	return a
}

// handle awaits the imported key.
func (a *agent) handle(ctx context.Context) (KeyHandle, error) {
	return a.key.await(ctx)
}

// Err waits for the key import and reports its failure, if any. It lets
// callers surface a bad key before the first operation.
func (a *agent) Err(ctx context.Context) error {
	_, err := a.handle(ctx)
	return err
}
