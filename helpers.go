package rhal

/*
this file contains small shared byte/range utilities used by the codec
and the registers/parameters lists.
*/

import "fmt"

// getUint retrieves a little-endian unsigned integer of the given byte
// width from data. width must be between 1 and MaxRegLen.
func getUint(data []byte, width int) uint32 {
	var v uint32
	for i := width - 1; i >= 0; i-- {
		v = v<<8 | uint32(data[i])
	}
	return v
}

// setUint stores v as a little-endian unsigned integer of the given byte
// width into data. Bits beyond width are discarded.
func setUint(data []byte, width int, v uint32) {
	for i := 0; i < width; i++ {
		data[i] = byte(v)
		v >>= 8
	}
}

// maxUintForWidth returns the largest unsigned value representable in
// width bytes.
func maxUintForWidth(width int) uint32 {
	if width >= 4 {
		return 0xFFFFFFFF
	}
	return 1<<(uint(width)*8) - 1
}

// checkAddressRange validates that addr+length fits within AddrSpaceLen.
func checkAddressRange(name string, addr, length int) error {
	if addr < 0 || length <= 0 {
		return OutOfAddressSpaceErrorF("%s: address %d and length %d must be positive", name, addr, length)
	}
	if addr+length > AddrSpaceLen {
		return OutOfAddressSpaceErrorF("%s: address %d + length %d exceeds address space of %d", name, addr, length, AddrSpaceLen)
	}
	return nil
}

// rangesOverlap reports whether [a, a+al) and [b, b+bl) share any byte.
func rangesOverlap(a, al, b, bl int) bool {
	return a < b+bl && b < a+al
}

func fmtRange(addr, length int) string {
	return fmt.Sprintf("[0x%02x, 0x%02x)", addr, addr+length)
}
