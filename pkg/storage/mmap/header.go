package mmap

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/google/uuid"
)

const (
	// Magic identifies a region file ("CSRG").
	Magic = 0x47525343
	// Version is the current region format version.
	Version = 1
	// HeaderSize is the fixed size of the region header. It keeps the
	// element payload 8-byte aligned inside a page-aligned mapping.
	HeaderSize = 64

	byteOrderMark = 0xFEFF
)

// Kind tags what a region holds so that files cannot be swapped by mistake.
type Kind uint8

const (
	KindRaw Kind = iota
	KindOffsets
	KindTargets
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindOffsets:
		return "offsets"
	case KindTargets:
		return "targets"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Meta is the caller-defined part of a region header.
type Meta struct {
	Kind     Kind
	Vertices uint64
	Edges    uint64
	BuildID  uuid.UUID
}

// Header describes a region: its metadata plus the element layout.
//
// On-disk layout (64 bytes):
//
//	[0:4]   magic "CSRG"
//	[4:6]   version
//	[6:8]   byte order mark, host order
//	[8]     kind
//	[9]     element width in bytes
//	[10]    sealed flag, set once the payload is complete
//	[11:16] reserved
//	[16:24] vertices
//	[24:32] edges
//	[32:40] element count
//	[40:56] build id
//	[56:60] reserved
//	[60:64] CRC32 (IEEE) of bytes [0:60]
type Header struct {
	Meta
	Width  uint8
	Length uint64
	// Sealed is false while the region is still being written. Regions
	// left unsealed by an aborted writer are rejected on open.
	Sealed bool
}

func (h Header) encode(b []byte) {
	_ = b[HeaderSize-1]
	clear(b[:HeaderSize])

	binary.LittleEndian.PutUint32(b[0:4], Magic)
	binary.LittleEndian.PutUint16(b[4:6], Version)
	// Elements are stored in host order; the mark lets a reader on a
	// different architecture refuse the file instead of misreading it.
	binary.NativeEndian.PutUint16(b[6:8], byteOrderMark)
	b[8] = byte(h.Kind)
	b[9] = h.Width
	if h.Sealed {
		b[10] = 1
	}
	binary.LittleEndian.PutUint64(b[16:24], h.Vertices)
	binary.LittleEndian.PutUint64(b[24:32], h.Edges)
	binary.LittleEndian.PutUint64(b[32:40], h.Length)
	copy(b[40:56], h.BuildID[:])
	binary.LittleEndian.PutUint32(b[60:64], crc32.ChecksumIEEE(b[:60]))
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header truncated (%d bytes)", ErrFormat, len(b))
	}
	if magic := binary.LittleEndian.Uint32(b[0:4]); magic != Magic {
		return Header{}, fmt.Errorf("%w: magic mismatch (0x%08x)", ErrFormat, magic)
	}
	if version := binary.LittleEndian.Uint16(b[4:6]); version != Version {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrFormat, version)
	}
	if crc := binary.LittleEndian.Uint32(b[60:64]); crc != crc32.ChecksumIEEE(b[:60]) {
		return Header{}, fmt.Errorf("%w: header checksum mismatch", ErrFormat)
	}
	if binary.NativeEndian.Uint16(b[6:8]) != byteOrderMark {
		return Header{}, fmt.Errorf("%w: byte order differs from host", ErrFormat)
	}

	var h Header
	h.Kind = Kind(b[8])
	h.Width = b[9]
	h.Sealed = b[10] == 1
	h.Vertices = binary.LittleEndian.Uint64(b[16:24])
	h.Edges = binary.LittleEndian.Uint64(b[24:32])
	h.Length = binary.LittleEndian.Uint64(b[32:40])
	copy(h.BuildID[:], b[40:56])
	return h, nil
}
