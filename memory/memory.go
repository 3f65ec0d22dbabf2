// Copyright 2025 the ProtectedVM Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memory defines the contract between the exception machinery and the
// paging subsystem: the Tracker interface the dispatcher delegates to, and
// the Guard through which it is reached from exception context without
// blocking.
package memory

import (
	"errors"
	"sync"
)

// Tracker is the paging subsystem as seen from exception context. It is
// consumed here, not implemented: the runtime that owns the page tables
// registers one with the Guard before enabling exceptions.
//
// Both methods must be callable from exception context: they must not block
// and must not fault outside the region they are repairing.
type Tracker interface {
	// HandleMMIOFault maps the page containing addr iff it lies in a region
	// eligible for demand mapping, and fails otherwise.
	HandleMMIOFault(addr uint64) error
	// HandlePermissionFault marks the already-mapped page containing addr
	// dirty, and fails if the page is not under dirty-bit management.
	HandlePermissionFault(addr uint64) error
}

var (
	// ErrContended is returned by TryAcquire when the guard lock is held.
	ErrContended = errors.New("memory tracker is locked")
	// ErrUninitialized is returned by TryAcquire before SetOnce has run.
	ErrUninitialized = errors.New("memory tracker is not initialized")
	// ErrAlreadySet is returned by SetOnce on its second invocation.
	ErrAlreadySet = errors.New("memory tracker is already initialized")
)

// Guard holds the process-wide Tracker reference. It transitions exactly once
// from empty to initialized, early in boot, and is never reset. Exception
// handlers reach the tracker only through TryAcquire: a handler has no
// scheduler to yield to, so contention is surfaced as an error rather than a
// wait.
type Guard struct {
	mu      sync.Mutex
	tracker Tracker
}

// NewGuard returns an empty Guard.
func NewGuard() *Guard { return &Guard{} }

// SetOnce installs the tracker. Only registration may block on the lock; it
// runs before any exception that could observe the guard. Installing twice,
// or installing nil, is an error.
func (g *Guard) SetOnce(t Tracker) error {
	if t == nil {
		return errors.New("nil memory tracker")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tracker != nil {
		return ErrAlreadySet
	}
	g.tracker = t
	return nil
}

// TryAcquire returns the tracker and a release function, or fails without
// blocking: ErrContended if the lock is held, ErrUninitialized if SetOnce has
// not run. The caller must invoke release when done with the tracker.
func (g *Guard) TryAcquire() (Tracker, func(), error) {
	if !g.mu.TryLock() {
		return nil, nil, ErrContended
	}
	if g.tracker == nil {
		g.mu.Unlock()
		return nil, nil, ErrUninitialized
	}
	return g.tracker, g.mu.Unlock, nil
}
