//go:build unix || darwin || linux
// +build unix darwin linux

package mmap

import (
	"golang.org/x/sys/unix"
)

// mmapFile maps a file descriptor into memory.
// Writable mappings use PROT_READ|PROT_WRITE; read-only mappings use PROT_READ
// so that any store through the returned slice faults.
// MAP_SHARED ensures that changes are carried through to the underlying file.
func mmapFile(fd uintptr, size int, writable bool) ([]byte, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	return unix.Mmap(int(fd), 0, size, prot, unix.MAP_SHARED)
}

// munmapFile unmaps the memory region, freeing the virtual memory space.
func munmapFile(data []byte) error {
	return unix.Munmap(data)
}

// syncFile blocks until dirty pages of the mapping reach the file.
func syncFile(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}

// protectReadOnly drops write permission from an existing mapping.
func protectReadOnly(data []byte) error {
	return unix.Mprotect(data, unix.PROT_READ)
}
