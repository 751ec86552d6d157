// Package mmap provides fixed-width integer arrays backed either by a
// memory-mapped file or by a plain in-memory buffer.
//
// Both backings expose the same API, so code filling or reading an Array
// behaves identically whether the data fits in RAM or must be paged in
// from disk. A file-backed Array starts with a 64-byte Header describing
// the payload, which OpenReadOnly checks before handing out any element.
package mmap

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"unsafe"
)

var (
	// ErrFormat indicates a region file that is malformed or inconsistent with its header.
	ErrFormat = errors.New("mmap: malformed region")
	// ErrIO indicates a filesystem or mapping failure.
	ErrIO = errors.New("mmap: i/o failure")
	// ErrCapacity indicates a region whose byte size is not addressable.
	ErrCapacity = errors.New("mmap: region too large")
	// ErrIndex indicates an element index outside [0, Len()).
	ErrIndex = errors.New("mmap: index out of range")
	// ErrReadOnly indicates a write to a read-only or sealed array.
	ErrReadOnly = errors.New("mmap: array is read-only")
	// ErrClosed indicates use of an array after Close.
	ErrClosed = errors.New("mmap: array is closed")
)

// Integer is the set of element types an Array can hold.
type Integer interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Width returns the byte width of T.
func Width[T Integer]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Array is a fixed-length sequence of T.
//
// Get and Set are bounds-checked. Slice hands out the backing memory
// directly for hot loops, where the caller is responsible for index validity.
// An Array is not safe for concurrent writes to the same index; writes to
// disjoint indices from different goroutines are fine.
type Array[T Integer] struct {
	path     string
	file     *os.File
	data     []byte // full mapping including header; nil for in-memory arrays
	elems    []T
	header   Header
	writable bool
	closed   bool
}

// Create creates (or truncates) the file at path and maps a zero-filled
// region of length elements, writable, with meta written to its header.
func Create[T Integer](path string, length int, meta Meta) (*Array[T], error) {
	width := Width[T]()
	size, err := regionSize(length, width)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create region dir: %w", ErrIO, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: failed to size %s: %w", ErrIO, path, err)
	}

	data, err := mmapFile(file.Fd(), size, true)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: failed to map %s: %w", ErrIO, path, err)
	}

	hdr := Header{Meta: meta, Width: uint8(width), Length: uint64(length)}
	hdr.encode(data[:HeaderSize])

	return &Array[T]{
		path:     path,
		file:     file,
		data:     data,
		elems:    castSlice[T](data[HeaderSize:], length),
		header:   hdr,
		writable: true,
	}, nil
}

// NewInMemory returns a zero-filled, writable, RAM-resident array.
func NewInMemory[T Integer](length int, meta Meta) (*Array[T], error) {
	width := Width[T]()
	if _, err := regionSize(length, width); err != nil {
		return nil, err
	}
	return &Array[T]{
		elems:    make([]T, length),
		header:   Header{Meta: meta, Width: uint8(width), Length: uint64(length)},
		writable: true,
	}, nil
}

// OpenReadOnly maps an existing region read-only after validating its
// header against T and the file size.
func OpenReadOnly[T Integer](path string) (*Array[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if info.Size() < HeaderSize {
		file.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes, shorter than a header", ErrFormat, path, info.Size())
	}
	if uint64(info.Size()) > math.MaxInt {
		file.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrCapacity, path, info.Size())
	}
	size := int(info.Size())

	data, err := mmapFile(file.Fd(), size, false)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: failed to map %s: %w", ErrIO, path, err)
	}

	fail := func(err error) (*Array[T], error) {
		_ = munmapFile(data)
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	hdr, err := decodeHeader(data[:HeaderSize])
	if err != nil {
		return fail(err)
	}

	width := Width[T]()
	if !hdr.Sealed {
		return fail(fmt.Errorf("%w: region was never sealed by its writer", ErrFormat))
	}
	if int(hdr.Width) != width {
		return fail(fmt.Errorf("%w: element width %d, expected %d", ErrFormat, hdr.Width, width))
	}
	payload := uint64(size - HeaderSize)
	if hdr.Length > payload/uint64(width) || hdr.Length*uint64(width) != payload {
		return fail(fmt.Errorf("%w: header declares %d elements, file holds %d payload bytes", ErrFormat, hdr.Length, payload))
	}

	return &Array[T]{
		path:   path,
		file:   file,
		data:   data,
		elems:  castSlice[T](data[HeaderSize:], int(hdr.Length)),
		header: hdr,
	}, nil
}

// Len returns the number of elements.
func (a *Array[T]) Len() int { return len(a.elems) }

// Header returns the region header.
func (a *Array[T]) Header() Header { return a.header }

// Path returns the backing file path, or "" for in-memory arrays.
func (a *Array[T]) Path() string { return a.path }

// Mapped reports whether the array is file-backed.
func (a *Array[T]) Mapped() bool { return a.data != nil }

// Writable reports whether Set is allowed.
func (a *Array[T]) Writable() bool { return a.writable }

// Get returns the element at index i.
func (a *Array[T]) Get(i int) (T, error) {
	if a.closed {
		return 0, ErrClosed
	}
	if i < 0 || i >= len(a.elems) {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrIndex, i, len(a.elems))
	}
	return a.elems[i], nil
}

// Set stores v at index i.
func (a *Array[T]) Set(i int, v T) error {
	if a.closed {
		return ErrClosed
	}
	if !a.writable {
		return ErrReadOnly
	}
	if i < 0 || i >= len(a.elems) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndex, i, len(a.elems))
	}
	a.elems[i] = v
	return nil
}

// Slice returns the backing elements without copying.
// Writing through the slice of a read-only file-backed array faults.
func (a *Array[T]) Slice() []T { return a.elems }

// Flush writes dirty pages back to the file. It is a no-op for in-memory
// and read-only arrays.
func (a *Array[T]) Flush() error {
	if a.closed {
		return ErrClosed
	}
	if a.data == nil || !a.writable {
		return nil
	}
	if err := syncFile(a.data); err != nil {
		return fmt.Errorf("%w: failed to sync %s: %w", ErrIO, a.path, err)
	}
	return nil
}

// Seal marks the region complete, flushes it and makes it read-only for
// the rest of its life. File-backed arrays are re-protected so that stray
// writes fault. Only sealed regions can be opened with OpenReadOnly.
func (a *Array[T]) Seal() error {
	if a.closed {
		return ErrClosed
	}
	if !a.writable {
		return nil
	}
	a.header.Sealed = true
	if a.data != nil {
		a.header.encode(a.data[:HeaderSize])
	}
	if err := a.Flush(); err != nil {
		return err
	}
	if a.data != nil {
		if err := protectReadOnly(a.data); err != nil {
			return fmt.Errorf("%w: failed to protect %s: %w", ErrIO, a.path, err)
		}
	}
	a.writable = false
	return nil
}

// Close unmaps the region and closes the file. Dirty pages of a writable
// mapping are still written back by the kernel, but Close does not wait
// for them; call Flush first when durability matters. Calling Close more
// than once is allowed.
func (a *Array[T]) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	a.elems = nil

	if a.data == nil {
		return nil
	}

	var firstErr error
	if err := munmapFile(a.data); err != nil {
		firstErr = fmt.Errorf("%w: failed to unmap %s: %w", ErrIO, a.path, err)
	}
	a.data = nil
	if err := a.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: %w", ErrIO, err)
	}
	return firstErr
}

// regionSize returns the byte size of a file holding length elements of
// the given width plus the header.
func regionSize(length, width int) (int, error) {
	if length < 0 {
		return 0, fmt.Errorf("%w: negative length %d", ErrCapacity, length)
	}
	if length > (math.MaxInt-HeaderSize)/width {
		return 0, fmt.Errorf("%w: %d elements of %d bytes", ErrCapacity, length, width)
	}
	return HeaderSize + length*width, nil
}

// castSlice reinterprets b as a slice of n elements of T without copying.
func castSlice[T Integer](b []byte, n int) []T {
	if n == 0 || len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}
