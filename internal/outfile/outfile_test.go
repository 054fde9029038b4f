package outfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tanq16/swarm/internal/chunk"
)

func TestPreallocate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	f, err := Preallocate(path, 4096)
	if err != nil {
		t.Fatalf("Preallocate: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 4096 || f.Size() != 4096 {
		t.Errorf("expected 4096 bytes, got %d", info.Size())
	}

	// preallocating again truncates stale content
	os.WriteFile(path, bytes.Repeat([]byte{1}, 10000), 0644)
	if _, err := Preallocate(path, 100); err != nil {
		t.Fatalf("Preallocate: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !bytes.Equal(data, make([]byte, 100)) {
		t.Error("expected a zeroed 100 byte file")
	}
}

func TestWriteChunkOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	src := make([]byte, 1000)
	for i := range src {
		src[i] = byte(i % 251)
	}
	f, err := Preallocate(path, int64(len(src)))
	if err != nil {
		t.Fatalf("Preallocate: %v", err)
	}
	chunks, _ := chunk.Partition(int64(len(src)), 128)

	var wg sync.WaitGroup
	for i := len(chunks) - 1; i >= 0; i-- {
		c := chunks[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.WriteChunk(c, src[c.Start:c.End+1]); err != nil {
				t.Errorf("WriteChunk(%d): %v", c.Index, err)
			}
		}()
	}
	wg.Wait()

	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, src) {
		t.Fatal("output does not match source")
	}

	// rewriting a chunk with the same bytes leaves the file identical
	c := chunks[3]
	if err := f.WriteChunk(c, src[c.Start:c.End+1]); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	got, _ = os.ReadFile(path)
	if !bytes.Equal(got, src) {
		t.Fatal("rewrite changed the output")
	}
}

func TestWriteChunkRejectsBadWrites(t *testing.T) {
	f, err := Preallocate(filepath.Join(t.TempDir(), "out.bin"), 100)
	if err != nil {
		t.Fatalf("Preallocate: %v", err)
	}
	tests := []struct {
		name  string
		chunk chunk.Chunk
		data  []byte
		want  error
	}{
		{"past end", chunk.Chunk{Index: 9, Start: 90, End: 109}, make([]byte, 20), ErrOutOfRange},
		{"negative start", chunk.Chunk{Start: -1, End: 5}, make([]byte, 7), ErrOutOfRange},
		{"short data", chunk.Chunk{Start: 0, End: 9}, make([]byte, 5), ErrShortWrite},
		{"long data", chunk.Chunk{Start: 0, End: 9}, make([]byte, 11), ErrShortWrite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.WriteChunk(tt.chunk, tt.data); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
