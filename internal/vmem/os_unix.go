//go:build unix

package vmem

import (
	"golang.org/x/sys/unix"
)

func osProt(prot Prot) int {
	switch prot {
	case ProtRead:
		return unix.PROT_READ
	case ProtReadWrite:
		return unix.PROT_READ | unix.PROT_WRITE
	default:
		return unix.PROT_NONE
	}
}

func osMap(size int, prot Prot) ([]byte, error) {
	return unix.Mmap(-1, 0, size, osProt(prot), unix.MAP_ANON|unix.MAP_PRIVATE)
}

func osUnmap(data []byte) error {
	return unix.Munmap(data)
}

func osProtect(data []byte, prot Prot) error {
	return unix.Mprotect(data, osProt(prot))
}
