package rwspinlock

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/tringi/rwspinlock/internal/atomic16"
)

// Word enumerates the supported state widths. The choice is made at the
// type level; the size switches below resolve per instantiation, so width
// selection costs no per-call dispatch.
type Word interface {
	~int16 | ~int32 | ~int64
}

// cell is the entire persistent state of one lock: a single signed counter
// of the chosen width, mutated only through the atomic operations below.
//
// All operations are sequentially consistent, which subsumes the required
// release-on-unlock / acquire-on-lock ordering.
//
// The 32- and 64-bit widths map directly onto sync/atomic and are
// single-instruction atomics on every supported platform, which makes them
// safe to place in process-shared memory on their own. The 16-bit width is
// emulated by masked CAS on the naturally aligned containing 32-bit word
// (see internal/atomic16); placing it in shared memory additionally
// requires that whole word to live inside the segment.
type cell[T Word] struct {
	v T
}

func (c *cell[T]) load() T {
	switch unsafe.Sizeof(c.v) {
	case 2:
		return T(atomic16.Load((*int16)(unsafe.Pointer(&c.v))))
	case 4:
		return T(atomic.LoadInt32((*int32)(unsafe.Pointer(&c.v))))
	default:
		return T(atomic.LoadInt64((*int64)(unsafe.Pointer(&c.v))))
	}
}

func (c *cell[T]) compareAndSwap(old, new T) bool {
	switch unsafe.Sizeof(c.v) {
	case 2:
		return atomic16.CompareAndSwap((*int16)(unsafe.Pointer(&c.v)), int16(old), int16(new))
	case 4:
		return atomic.CompareAndSwapInt32((*int32)(unsafe.Pointer(&c.v)), int32(old), int32(new))
	default:
		return atomic.CompareAndSwapInt64((*int64)(unsafe.Pointer(&c.v)), int64(old), int64(new))
	}
}

func (c *cell[T]) swap(new T) T {
	switch unsafe.Sizeof(c.v) {
	case 2:
		return T(atomic16.Swap((*int16)(unsafe.Pointer(&c.v)), int16(new)))
	case 4:
		return T(atomic.SwapInt32((*int32)(unsafe.Pointer(&c.v)), int32(new)))
	default:
		return T(atomic.SwapInt64((*int64)(unsafe.Pointer(&c.v)), int64(new)))
	}
}

func (c *cell[T]) add(delta T) T {
	switch unsafe.Sizeof(c.v) {
	case 2:
		return T(atomic16.Add((*int16)(unsafe.Pointer(&c.v)), int16(delta)))
	case 4:
		return T(atomic.AddInt32((*int32)(unsafe.Pointer(&c.v)), int32(delta)))
	default:
		return T(atomic.AddInt64((*int64)(unsafe.Pointer(&c.v)), int64(delta)))
	}
}

// maxShared is the largest shared-holder count the width can represent.
func maxShared[T Word]() T {
	var z T
	switch unsafe.Sizeof(z) {
	case 2:
		v := int16(math.MaxInt16)
		return T(v)
	case 4:
		v := int32(math.MaxInt32)
		return T(v)
	default:
		v := int64(math.MaxInt64)
		return T(v)
	}
}
