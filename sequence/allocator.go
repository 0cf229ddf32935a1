// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package sequence owns the agent's ordering truth: the monotonic sequence
// allocator and the persisted agent information record that keeps sequence
// numbers from being reused across restarts.
package sequence

import "sync/atomic"

// Allocator issues strictly increasing 64-bit sequence numbers. Safe for
// concurrent use; there is exactly one allocator per agent.
type Allocator struct {
	last atomic.Uint64
}

// NewAllocator returns an allocator whose next issued sequence is last+1.
func NewAllocator(last uint64) *Allocator {
	a := &Allocator{}
	a.last.Store(last)
	return a
}

// Next issues the next sequence number.
func (a *Allocator) Next() uint64 {
	return a.last.Add(1)
}

// Last returns the most recently issued sequence, or the initial value if
// none has been issued yet.
func (a *Allocator) Last() uint64 {
	return a.last.Load()
}
