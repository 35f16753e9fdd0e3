// Copyright 2024 The rwspinlock Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package rwspinlock implements a slim, unfair reader-writer spin lock for
// very short critical sections.
//
// The entire lock is one signed integer cell of a width chosen at the type
// level (16, 32 or 64 bits):
//
//	state ==  0    unowned
//	state == -1    held exclusively by exactly one holder
//	state ==  k>0  held shared by exactly k holders
//
// Every transition is a single atomic read-modify-write on that cell, so a
// lock can be embedded in arbitrary data structures, or placed in a
// process-shared memory segment, and coordinates its holders without any
// kernel transition on the fast path.
//
// The transition matrix, with U the unowned state, S(k) the shared state
// with k holders and X the exclusive state:
//
//	+-----------------------+-----------+------------------------+
//	| Operation             | From      | To                     |
//	+-----------------------+-----------+------------------------+
//	| TryExclusive          | U         | X                      |
//	| TryShared             | U / S(k)  | S(1) / S(k+1), k < MAX |
//	| TryUpgrade            | S(1)      | X                      |
//	| ReleaseExclusive      | X         | U                      |
//	| ReleaseShared         | S(k)      | S(k-1) or U            |
//	| DowngradeToShared     | X         | S(1)                   |
//	| ForceUnlock           | X         | U                      |
//	+-----------------------+-----------+------------------------+
//
// Waiters make forward progress by retrying the transition against an
// adaptive backoff schedule: a processor-yield hint for the first rounds,
// then cooperative scheduler yields, then ~1ms sleeps. The lock is not
// fair: there is no queue, no FIFO order and no starvation bound. It is not
// reentrant: a holder re-acquiring exclusively deadlocks itself. It is
// meant for many independent locks each protecting a handful of
// instructions, not for one heavily contended lock.
//
// Misuse (releasing without holding, upgrading without holding exactly one
// shared reference, destroying a held lock) is undefined behavior and is
// not detected.
package rwspinlock

import (
	"fmt"
	"time"
)

// Lock state values. Shared holder counts occupy the positive range.
const (
	unowned   = 0
	exclusive = -1
)

// Mutex is a reader-writer spin lock over a state cell of width T.
//
// The zero value is an unlocked mutex. A Mutex must not be copied after
// first use. On 32-bit platforms a Mutex[int64] embedded in a struct must
// be 64-bit aligned.
type Mutex[T Word] struct {
	noCopy noCopy
	state  cell[T]
}

// Fixed-width instantiations. Mutex16 keeps the int16 holder range on a
// 2-byte cell with its atomics emulated on the containing 32-bit word; see
// the cell documentation before placing one in shared memory.
type (
	Mutex16 = Mutex[int16]
	Mutex32 = Mutex[int32]
	Mutex64 = Mutex[int64]
)

// TryExclusive attempts to acquire the mutex exclusively without spinning.
func (m *Mutex[T]) TryExclusive() bool {
	// Cheap short circuit: skip the bus-locked RMW when the lock is
	// visibly taken.
	if m.state.load() != unowned {
		return false
	}
	return m.state.compareAndSwap(unowned, exclusive)
}

// TryShared attempts to acquire one shared reference without spinning.
//
// A false return may be spurious: another reader racing the increment
// fails the CAS even though the lock was acquirable. The spinning
// wrappers retry; callers of TryShared retry on their own terms.
func (m *Mutex[T]) TryShared() bool {
	s := m.state.load()
	if s < unowned || s == maxShared[T]() {
		return false
	}
	return m.state.compareAndSwap(s, s+1)
}

// TryUpgrade attempts to convert a shared acquisition into an exclusive
// one without passing through the unowned state. It succeeds only when the
// caller holds the single shared reference. Calling it while not holding
// exactly one shared reference is a contract violation.
func (m *Mutex[T]) TryUpgrade() bool {
	if m.state.load() != 1 {
		return false
	}
	return m.state.compareAndSwap(1, exclusive)
}

// AcquireExclusive acquires the mutex exclusively, spinning for as long as
// it takes. Returns the number of backoff rounds waited.
func (m *Mutex[T]) AcquireExclusive() (rounds uint32) {
	return m.acquire((*Mutex[T]).TryExclusive, exclusiveYields, exclusiveSleep0s)
}

// AcquireExclusiveTimeout is AcquireExclusive with a deadline. Rounds are
// reported whether or not the acquisition succeeded. A zero timeout fails
// fast: the contested phase is never entered and the call costs at most
// the processor-yield rounds.
func (m *Mutex[T]) AcquireExclusiveTimeout(timeout time.Duration) (rounds uint32, ok bool) {
	return m.acquireTimeout((*Mutex[T]).TryExclusive, exclusiveYields, exclusiveSleep0s, timeout)
}

// AcquireShared acquires one shared reference, spinning for as long as it
// takes. Returns the number of backoff rounds waited.
func (m *Mutex[T]) AcquireShared() (rounds uint32) {
	return m.acquire((*Mutex[T]).TryShared, sharedYields, sharedSleep0s)
}

// AcquireSharedTimeout is AcquireShared with a deadline; see
// AcquireExclusiveTimeout for the timeout semantics.
func (m *Mutex[T]) AcquireSharedTimeout(timeout time.Duration) (rounds uint32, ok bool) {
	return m.acquireTimeout((*Mutex[T]).TryShared, sharedYields, sharedSleep0s, timeout)
}

// UpgradeTimeout spins TryUpgrade against a deadline. There is no
// indefinite upgrade: two holders upgrading indefinitely would deadlock
// each other, so the caller must always be prepared for failure.
func (m *Mutex[T]) UpgradeTimeout(timeout time.Duration) (rounds uint32, ok bool) {
	return m.acquireTimeout((*Mutex[T]).TryUpgrade, upgradeYields, upgradeSleep0s, timeout)
}

// ReleaseExclusive releases the exclusive acquisition. The caller must
// hold the mutex exclusively.
func (m *Mutex[T]) ReleaseExclusive() {
	m.state.swap(unowned)
}

// ReleaseShared releases one shared reference. The caller must hold one.
func (m *Mutex[T]) ReleaseShared() {
	m.state.add(-1)
}

// DowngradeToShared converts the exclusive acquisition into a single
// shared reference without passing through the unowned state. Writes made
// while exclusive are visible to every reader that acquires afterwards.
// The caller must hold the mutex exclusively.
func (m *Mutex[T]) DowngradeToShared() {
	m.state.swap(1)
}

// ForceUnlock clears an exclusive acquisition that will never be released,
// e.g. after the holding process crashed with the lock in shared memory.
// Recovery only: if any live holder exists the lock state is corrupted.
func (m *Mutex[T]) ForceUnlock() {
	m.state.swap(unowned)
}

// IsLocked reports whether the mutex was held at the instant of the
// snapshot. Advisory only: the answer may be stale by the time it returns.
func (m *Mutex[T]) IsLocked() bool {
	return m.state.load() != unowned
}

// IsLockedExclusively reports whether the mutex was held exclusively at
// the instant of the snapshot. Advisory only.
func (m *Mutex[T]) IsLockedExclusively() bool {
	return m.state.load() == exclusive
}

// String renders the advisory snapshot for diagnostics.
func (m *Mutex[T]) String() string {
	switch s := m.state.load(); {
	case s == exclusive:
		return "exclusive"
	case s == unowned:
		return "unlocked"
	default:
		return fmt.Sprintf("shared(%d)", int64(s))
	}
}

// noCopy triggers the go vet copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
