package rwspinlock

import "time"

// Scope guards bind an acquisition to a name so the release cannot be
// forgotten or misplaced. The supported shape is:
//
//	if g := m.ExclusivelyTimeout(50 * time.Millisecond); g.Held() {
//		defer g.Release()
//		// guarded body
//	}
//
// The named binding keeps the guard alive for the whole guarded body; a
// guard is never tested as a temporary. A released guard is inert: every
// method on it is a no-op or returns an inactive result, so deferring
// Release after an early manual Release is harmless.
//
// Guards are single-goroutine objects. Handing one to another goroutine
// transfers responsibility for its release; using one from two goroutines
// at once is a caller bug.

// Exclusive is a guard over an exclusive acquisition.
type Exclusive[T Word] struct {
	m *Mutex[T]
}

// Exclusively acquires m exclusively, spinning for as long as it takes,
// and returns the guard. The guard is always held.
func (m *Mutex[T]) Exclusively() *Exclusive[T] {
	m.AcquireExclusive()
	return &Exclusive[T]{m: m}
}

// ExclusivelyTimeout acquires m exclusively against a deadline. On timeout
// the returned guard reports Held() == false and releases nothing.
func (m *Mutex[T]) ExclusivelyTimeout(timeout time.Duration) *Exclusive[T] {
	if _, ok := m.AcquireExclusiveTimeout(timeout); !ok {
		return &Exclusive[T]{}
	}
	return &Exclusive[T]{m: m}
}

// Held reports whether the guard still owns its acquisition.
func (g *Exclusive[T]) Held() bool {
	return g.m != nil
}

// Release releases the acquisition early and deactivates the guard.
func (g *Exclusive[T]) Release() {
	if g.m != nil {
		g.m.ReleaseExclusive()
		g.m = nil
	}
}

// TemporarilyUnlock releases the mutex immediately and returns a sub-guard
// whose Restore re-acquires it exclusively. The parent guard stays
// responsible for the final release once the sub-scope has restored.
func (g *Exclusive[T]) TemporarilyUnlock() *Unlocked[T] {
	if g.m == nil {
		return &Unlocked[T]{}
	}
	g.m.ReleaseExclusive()
	return &Unlocked[T]{m: g.m, exclusive: true}
}

// Shared is a guard over one shared reference.
type Shared[T Word] struct {
	m *Mutex[T]
}

// Share acquires one shared reference, spinning for as long as it takes,
// and returns the guard. The guard is always held.
func (m *Mutex[T]) Share() *Shared[T] {
	m.AcquireShared()
	return &Shared[T]{m: m}
}

// ShareTimeout acquires one shared reference against a deadline. On
// timeout the returned guard reports Held() == false.
func (m *Mutex[T]) ShareTimeout(timeout time.Duration) *Shared[T] {
	if _, ok := m.AcquireSharedTimeout(timeout); !ok {
		return &Shared[T]{}
	}
	return &Shared[T]{m: m}
}

// Held reports whether the guard still owns its reference.
func (g *Shared[T]) Held() bool {
	return g.m != nil
}

// Release drops the reference early and deactivates the guard.
func (g *Shared[T]) Release() {
	if g.m != nil {
		g.m.ReleaseShared()
		g.m = nil
	}
}

// Clone acquires an additional shared reference, spinning for as long as
// it takes, and returns an independent guard for it. Cloning an inactive
// guard yields an inactive guard.
func (g *Shared[T]) Clone() *Shared[T] {
	if g.m == nil {
		return &Shared[T]{}
	}
	g.m.AcquireShared()
	return &Shared[T]{m: g.m}
}

// Upgrade attempts to convert the reference into an exclusive acquisition
// without blocking. On failure the shared guard remains held and the
// returned guard is inactive. The caller must hold the only shared
// reference for the upgrade to ever succeed.
func (g *Shared[T]) Upgrade() *Upgraded[T] {
	if g.m != nil && g.m.TryUpgrade() {
		return &Upgraded[T]{m: g.m}
	}
	return &Upgraded[T]{}
}

// UpgradeTimeout is Upgrade spinning against a deadline.
func (g *Shared[T]) UpgradeTimeout(timeout time.Duration) *Upgraded[T] {
	if g.m != nil {
		if _, ok := g.m.UpgradeTimeout(timeout); ok {
			return &Upgraded[T]{m: g.m}
		}
	}
	return &Upgraded[T]{}
}

// TemporarilyUnlock drops the reference immediately and returns a
// sub-guard whose Restore re-acquires shared.
func (g *Shared[T]) TemporarilyUnlock() *Unlocked[T] {
	if g.m == nil {
		return &Unlocked[T]{}
	}
	g.m.ReleaseShared()
	return &Unlocked[T]{m: g.m}
}

// Upgraded is a guard over an upgraded acquisition. Releasing it
// downgrades back to shared, restoring the parent guard's single
// reference; the parent remains responsible for the final release.
type Upgraded[T Word] struct {
	m *Mutex[T]
}

// Held reports whether the upgrade succeeded and is still in effect.
func (g *Upgraded[T]) Held() bool {
	return g.m != nil
}

// Release downgrades back to shared early and deactivates the guard.
func (g *Upgraded[T]) Release() {
	if g.m != nil {
		g.m.DowngradeToShared()
		g.m = nil
	}
}

// Unlocked is the sub-guard of a temporarily unlocked scope. It is created
// with the mutex already released; Restore re-acquires in the parent
// guard's mode.
type Unlocked[T Word] struct {
	m         *Mutex[T]
	exclusive bool
	rounds    uint32
}

// Restore re-acquires the mutex, spinning for as long as it takes, and
// returns the rounds waited. Restoring twice, or restoring the inert
// sub-guard of an inactive parent, is a no-op.
func (u *Unlocked[T]) Restore() (rounds uint32) {
	if u.m == nil {
		return u.rounds
	}
	if u.exclusive {
		u.rounds = u.m.AcquireExclusive()
	} else {
		u.rounds = u.m.AcquireShared()
	}
	u.m = nil
	return u.rounds
}

// Rounds reports how many rounds Restore waited. Meaningful only after the
// sub-scope has restored, e.g. after a deferred Restore has run.
func (u *Unlocked[T]) Rounds() uint32 {
	return u.rounds
}
