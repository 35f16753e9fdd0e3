package rwspinlock

import (
	"io"
	"log"
	"math/rand"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

const benchWriteFrac = 0.1
const benchHeavyWriteFrac = 0.5

/* Ensure the values are nondecreasing. Each writer takes a lock at some
 * index and increments all subsequent indices, so a decreasing value means
 * write operations were not serialized. */
func testNonDecreasing(b *testing.B, values []uint32) {
	for i := 1; i < len(values); i++ {
		assert.LessOrEqual(b, values[i-1], values[i], "Nondecreasing value")
	}
}

/* This benchmark simulates `concurrency` actors acting on a bank of
 * values. locks[i] guards values[i]; a writer of a suffix holds every
 * lock of that suffix. */
func benchmarkLocking(b *testing.B, concurrency int, writePerc int) []uint32 {
	l := log.New(os.Stderr, "", 0)
	l.SetOutput(io.Discard)
	barrier := make(chan bool, concurrency)

	/* locks[i] guards values[i] */
	var locks [10]Mutex32
	var values [10]uint32

	/* A writer owns the suffix: it takes locks[offset..9] exclusively, in
	 * ascending order, and increments values[offset..9]. Any two writers
	 * overlap on locks[9], so writes serialize; a reader of values[i]
	 * holds locks[i] shared, which every writer of values[i] holds
	 * exclusively. */
	writer := func(offset int) {
		for i := offset; i < len(locks); i++ {
			locks[i].AcquireExclusive()
			l.Printf("writer -> %d %d\n", i, offset)
		}
		for i := offset; i < len(values); i++ {
			values[i]++
		}
		for i := len(locks) - 1; i >= offset; i-- {
			locks[i].ReleaseExclusive()
			l.Printf("writer <- %d %d\n", i, offset)
		}
		<-barrier
	}

	reader := func(offset int) {
		locks[offset].AcquireShared()
		l.Printf("reader -> %d\n", offset)

		_ = values[offset]

		locks[offset].ReleaseShared()
		l.Printf("reader <- %d\n", offset)
		<-barrier
	}

	/* The upgrader works on the last slot only; its exclusive ownership of
	 * locks[9] is enough there because every writer holds locks[9] too. */
	upgrader := func() {
		last := len(locks) - 1
		g := locks[last].Share()
		if u := g.Upgrade(); u.Held() {
			values[last]++
			u.Release()
		}
		g.Release()
		<-barrier
	}

	for i := 0; i < b.N; i++ {
		rw := rand.Intn(100) < writePerc
		offset := rand.Intn(len(locks))

		barrier <- true
		if rw {
			go writer(offset)
		} else if rand.Intn(10) == 0 {
			go upgrader()
		} else {
			go reader(offset)
		}
	}

	for {
		select {
		case <-barrier:
		default:
			// Every writer holds the last lock, so holding it exclusively
			// quiesces the whole bank for the snapshot.
			last := len(locks) - 1
			locks[last].AcquireExclusive()
			ret := append([]uint32(nil), values[:]...)
			locks[last].ReleaseExclusive()
			return ret
		}
	}
}

func BenchmarkSerial(b *testing.B) {
	ret := benchmarkLocking(b, 1, int(benchWriteFrac*100))
	testNonDecreasing(b, ret)
}

func BenchmarkLowConcurrency(b *testing.B) {
	ret := benchmarkLocking(b, 2, int(benchWriteFrac*100))
	testNonDecreasing(b, ret)
}

func BenchmarkMediumConcurrency(b *testing.B) {
	ret := benchmarkLocking(b, 10, int(benchWriteFrac*100))
	testNonDecreasing(b, ret)
}

func BenchmarkHighConcurrency(b *testing.B) {
	benchmarkLocking(b, 20, int(benchWriteFrac*100))
}

func BenchmarkHighConcurrencyHeavyLocking(b *testing.B) {
	benchmarkLocking(b, 20, int(benchHeavyWriteFrac*100))
}

func BenchmarkUncontendedExclusive(b *testing.B) {
	var m Mutex32
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		m.AcquireExclusive()
		m.ReleaseExclusive()
	}
}

func BenchmarkUncontendedShared(b *testing.B) {
	var m Mutex32
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		m.AcquireShared()
		m.ReleaseShared()
	}
}

func BenchmarkContendedExclusive(b *testing.B) {
	var m Mutex32
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.AcquireExclusive()
			m.ReleaseExclusive()
		}
	})
}

func BenchmarkContendedShared(b *testing.B) {
	var m Mutex32
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.AcquireShared()
			m.ReleaseShared()
		}
	})
}

// Baselines against the standard library for the same shapes.

func BenchmarkRWMutexUncontendedExclusive(b *testing.B) {
	var m sync.RWMutex
	for i := 0; i < b.N; i++ {
		m.Lock()
		m.Unlock()
	}
}

func BenchmarkRWMutexContendedShared(b *testing.B) {
	var m sync.RWMutex
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.RLock()
			m.RUnlock()
		}
	})
}
