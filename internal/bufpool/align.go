package bufpool

import "unsafe"

// alignOffset returns the index of the first byte of raw aligned to align.
func alignOffset(raw []byte, align int) int {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	if rem := int(addr % uintptr(align)); rem != 0 {
		return align - rem
	}
	return 0
}
