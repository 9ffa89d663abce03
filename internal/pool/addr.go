package pool

import "unsafe"

// sliceAddr returns the address of a slice's backing array, used as an
// identity key for the tracked one-off allocation set and for debug-mode
// double-release detection.
func sliceAddr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
