// cache.go: Identity-keyed weak agent cache
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"runtime"
	"sync"
	"weak"

	"github.com/sirupsen/logrus"
)

// agentCache maps key-material identity to a weakly held agent.
//
// Neither side of an entry is kept alive by the cache: a collected agent is
// rebuilt on the next lookup, and a cleanup attached to the key material
// drops the entry once the key itself is collected. Lookups that miss build
// the agent under the lock, so concurrent first lookups share one agent.
// Agent construction never blocks.
type agentCache[A any] struct {
	mu      sync.Mutex
	entries map[weak.Pointer[JWK]]weak.Pointer[A]
	build   func(*JWK) *A
	role    string
	log     func() logrus.FieldLogger
}

func newAgentCache[A any](role string, o options, build func(*JWK) *A) *agentCache[A] {
	return &agentCache[A]{
		entries: make(map[weak.Pointer[JWK]]weak.Pointer[A]),
		build:   build,
		role:    role,
		log:     o.log,
	}
}

// load returns the live agent for key, building one if there is none.
func (c *agentCache[A]) load(key *JWK) *A {
	wk := weak.Make(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	ref, known := c.entries[wk]
	if known {
		if a := ref.Value(); a != nil {
			return a
		}
	}

	a := c.build(key)
	c.entries[wk] = weak.Make(a)
	if !known {
		runtime.AddCleanup(key, c.evict, wk)
	}
	c.log().WithFields(logrus.Fields{"role": c.role, "rebuilt": known}).Debug("agent created")
	return a
}

// evict runs after the key material has been collected.
func (c *agentCache[A]) evict(wk weak.Pointer[JWK]) {
	c.mu.Lock()
	delete(c.entries, wk)
	c.mu.Unlock()
	c.log().WithField("role", c.role).Debug("agent pruned")
}

// len reports the number of entries, live or not.
func (c *agentCache[A]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
