//go:build amd64 || arm64

package rwspinlock

// procyield emits the architecture's spin-wait hint (PAUSE on amd64, YIELD
// on arm64) cycles times without involving the scheduler.
func procyield(cycles uint32)
