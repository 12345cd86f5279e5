//go:build windows

package vmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func osProt(prot Prot) uint32 {
	switch prot {
	case ProtRead:
		return windows.PAGE_READONLY
	case ProtReadWrite:
		return windows.PAGE_READWRITE
	default:
		return windows.PAGE_NOACCESS
	}
}

func osMap(size int, prot Prot) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, osProt(prot))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func osUnmap(data []byte) error {
	return windows.VirtualFree(uintptr(unsafe.Pointer(&data[0])), 0, windows.MEM_RELEASE)
}

func osProtect(data []byte, prot Prot) error {
	var old uint32
	return windows.VirtualProtect(uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)), osProt(prot), &old)
}
