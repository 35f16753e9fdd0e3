//go:build !amd64 && !arm64

package rwspinlock

// procyield approximates the spin-wait hint with a small busy loop on
// platforms without a dedicated instruction.
func procyield(cycles uint32) {
	for ; cycles > 0; cycles-- {
		spinstep()
	}
}

// spinstep defeats loop elimination.
//
//go:noinline
func spinstep() {}
