package chunk

import (
	"errors"
	"testing"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		size      int64
		chunkSize int64
		wantSizes []int64
	}{
		{"even split", 51200, 10240, []int64{10240, 10240, 10240, 10240, 10240}},
		{"truncated tail", 25, 10, []int64{10, 10, 5}},
		{"chunk larger than file", 7, 100, []int64{7}},
		{"single byte chunks", 3, 1, []int64{1, 1, 1}},
		{"empty file", 0, 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Partition(tt.size, tt.chunkSize)
			if err != nil {
				t.Fatalf("Partition: %v", err)
			}
			if len(chunks) != len(tt.wantSizes) {
				t.Fatalf("expected %d chunks, got %d", len(tt.wantSizes), len(chunks))
			}
			for i, c := range chunks {
				if c.Index != i {
					t.Errorf("chunk %d has index %d", i, c.Index)
				}
				if c.Size() != tt.wantSizes[i] {
					t.Errorf("chunk %d size = %d, want %d", i, c.Size(), tt.wantSizes[i])
				}
			}
		})
	}
}

func TestPartitionCoversRange(t *testing.T) {
	for _, size := range []int64{1, 2, 99, 100, 101, 1000, 4097, 65536} {
		for _, chunkSize := range []int64{1, 3, 7, 100, 4096} {
			chunks, err := Partition(size, chunkSize)
			if err != nil {
				t.Fatalf("Partition(%d, %d): %v", size, chunkSize, err)
			}
			next := int64(0)
			for _, c := range chunks {
				if c.Start != next {
					t.Fatalf("Partition(%d, %d): chunk %d starts at %d, expected %d", size, chunkSize, c.Index, c.Start, next)
				}
				if c.End < c.Start {
					t.Fatalf("Partition(%d, %d): chunk %d is empty", size, chunkSize, c.Index)
				}
				next = c.End + 1
			}
			if next != size {
				t.Fatalf("Partition(%d, %d): chunks cover [0, %d), expected [0, %d)", size, chunkSize, next, size)
			}
			last := chunks[len(chunks)-1].Size()
			want := size % chunkSize
			if want == 0 {
				want = chunkSize
			}
			if last != want {
				t.Fatalf("Partition(%d, %d): last chunk is %d bytes, expected %d", size, chunkSize, last, want)
			}
		}
	}
}

func TestPartitionInvalid(t *testing.T) {
	if _, err := Partition(100, 0); !errors.Is(err, ErrInvalidChunkSize) {
		t.Errorf("expected ErrInvalidChunkSize, got %v", err)
	}
	if _, err := Partition(-1, 10); err == nil {
		t.Error("expected error for negative size")
	}
}

func TestRangeHeader(t *testing.T) {
	c := Chunk{Index: 2, Start: 20480, End: 30719}
	if got := c.RangeHeader(); got != "bytes=20480-30719" {
		t.Errorf("RangeHeader() = %s", got)
	}
}
