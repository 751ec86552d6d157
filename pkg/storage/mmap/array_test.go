package mmap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestCreateWriteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "region.bin")
	meta := Meta{Kind: KindTargets, Vertices: 10, Edges: 4, BuildID: uuid.New()}

	arr, err := Create[uint32](path, 4, meta)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for i, v := range arr.Slice() {
		if v != 0 {
			t.Fatalf("element %d not zero-filled: %d", i, v)
		}
	}
	for i := 0; i < 4; i++ {
		if err := arr.Set(i, uint32(i*10+1)); err != nil {
			t.Fatalf("Set(%d) failed: %v", i, err)
		}
	}
	if err := arr.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := arr.Seal(); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if err := arr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != HeaderSize+4*4 {
		t.Errorf("file size = %d, want %d", info.Size(), HeaderSize+4*4)
	}

	ro, err := OpenReadOnly[uint32](path)
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer ro.Close()

	hdr := ro.Header()
	if hdr.Meta != meta {
		t.Errorf("meta mismatch: got %+v, want %+v", hdr.Meta, meta)
	}
	if hdr.Width != 4 || hdr.Length != 4 {
		t.Errorf("layout mismatch: width %d length %d", hdr.Width, hdr.Length)
	}
	want := []uint32{1, 11, 21, 31}
	for i, w := range want {
		got, err := ro.Get(i)
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", i, err)
		}
		if got != w {
			t.Errorf("Get(%d) = %d, want %d", i, got, w)
		}
	}
	if err := ro.Set(0, 5); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Set on read-only array: got %v, want ErrReadOnly", err)
	}
}

func TestBoundsChecked(t *testing.T) {
	arr, err := NewInMemory[uint16](3, Meta{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := arr.Get(3); !errors.Is(err, ErrIndex) {
		t.Errorf("Get(3): got %v, want ErrIndex", err)
	}
	if _, err := arr.Get(-1); !errors.Is(err, ErrIndex) {
		t.Errorf("Get(-1): got %v, want ErrIndex", err)
	}
	if err := arr.Set(7, 1); !errors.Is(err, ErrIndex) {
		t.Errorf("Set(7): got %v, want ErrIndex", err)
	}
	if arr.Mapped() {
		t.Error("in-memory array reports Mapped")
	}
	if err := arr.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := arr.Get(0); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close: got %v, want ErrClosed", err)
	}
	if err := arr.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSeal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sealed.bin")
	arr, err := Create[uint64](path, 2, Meta{Kind: KindOffsets})
	if err != nil {
		t.Fatal(err)
	}
	defer arr.Close()

	if err := arr.Set(1, 42); err != nil {
		t.Fatal(err)
	}
	if err := arr.Seal(); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if arr.Writable() {
		t.Error("sealed array still writable")
	}
	if err := arr.Set(0, 1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Set after Seal: got %v, want ErrReadOnly", err)
	}
	if v, _ := arr.Get(1); v != 42 {
		t.Errorf("Get(1) = %d after Seal", v)
	}
}

func TestEmptyRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	arr, err := Create[uint8](path, 0, Meta{Kind: KindTargets})
	if err != nil {
		t.Fatal(err)
	}
	if err := arr.Seal(); err != nil {
		t.Fatal(err)
	}
	if err := arr.Close(); err != nil {
		t.Fatal(err)
	}
	ro, err := OpenReadOnly[uint8](path)
	if err != nil {
		t.Fatalf("OpenReadOnly on empty region: %v", err)
	}
	defer ro.Close()
	if ro.Len() != 0 {
		t.Errorf("Len = %d, want 0", ro.Len())
	}
}

func TestCapacity(t *testing.T) {
	if _, err := NewInMemory[uint64](-1, Meta{}); !errors.Is(err, ErrCapacity) {
		t.Errorf("negative length: got %v, want ErrCapacity", err)
	}
	path := filepath.Join(t.TempDir(), "huge.bin")
	if _, err := Create[uint64](path, int(^uint(0)>>1), Meta{}); !errors.Is(err, ErrCapacity) {
		t.Errorf("overflowing length: got %v, want ErrCapacity", err)
	}
}

func TestOpenRejectsMalformed(t *testing.T) {
	dir := t.TempDir()

	writeRegion := func(name string, length int) string {
		path := filepath.Join(dir, name)
		arr, err := Create[uint32](path, length, Meta{Kind: KindTargets})
		if err != nil {
			t.Fatal(err)
		}
		if err := arr.Seal(); err != nil {
			t.Fatal(err)
		}
		if err := arr.Close(); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name   string
		mutate func(path string)
	}{
		{"short file", func(path string) {
			if err := os.WriteFile(path, []byte("CSRG"), 0644); err != nil {
				t.Fatal(err)
			}
		}},
		{"bad magic", func(path string) {
			patchByte(t, path, 0, 'X')
		}},
		{"bad checksum", func(path string) {
			patchByte(t, path, 20, 0xFF)
		}},
		{"truncated payload", func(path string) {
			if err := os.Truncate(path, HeaderSize+6); err != nil {
				t.Fatal(err)
			}
		}},
		{"trailing bytes", func(path string) {
			f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				t.Fatal(err)
			}
			f.Write([]byte{0, 0, 0, 0})
			f.Close()
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeRegion(tc.name+".bin", 3)
			tc.mutate(path)
			if _, err := OpenReadOnly[uint32](path); !errors.Is(err, ErrFormat) {
				t.Errorf("got %v, want ErrFormat", err)
			}
		})
	}

	t.Run("width mismatch", func(t *testing.T) {
		path := writeRegion("width.bin", 2)
		if _, err := OpenReadOnly[uint64](path); !errors.Is(err, ErrFormat) {
			t.Errorf("got %v, want ErrFormat", err)
		}
	})

	t.Run("unsealed", func(t *testing.T) {
		path := filepath.Join(dir, "unsealed.bin")
		arr, err := Create[uint32](path, 2, Meta{Kind: KindTargets})
		if err != nil {
			t.Fatal(err)
		}
		if err := arr.Flush(); err != nil {
			t.Fatal(err)
		}
		if err := arr.Close(); err != nil {
			t.Fatal(err)
		}
		if _, err := OpenReadOnly[uint32](path); !errors.Is(err, ErrFormat) {
			t.Errorf("got %v, want ErrFormat", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := OpenReadOnly[uint32](filepath.Join(dir, "nope.bin")); !errors.Is(err, ErrIO) {
			t.Errorf("got %v, want ErrIO", err)
		}
	})
}

func patchByte(t *testing.T, path string, off int64, b byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteAt([]byte{b}, off); err != nil {
		t.Fatal(err)
	}
}
