package chunk

import (
	"errors"
	"fmt"
)

var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Chunk is an inclusive byte range [Start, End] of the target file.
type Chunk struct {
	Index int
	Start int64
	End   int64
}

func (c Chunk) Size() int64 {
	return c.End - c.Start + 1
}

func (c Chunk) RangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", c.Start, c.End)
}

// Partition splits [0, size) into chunks of chunkSize bytes; the last one is truncated.
func Partition(size, chunkSize int64) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if size < 0 {
		return nil, fmt.Errorf("invalid file size %d", size)
	}
	chunks := make([]Chunk, 0, (size+chunkSize-1)/chunkSize)
	for start := int64(0); start < size; start += chunkSize {
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			End:   min(start+chunkSize, size) - 1,
		})
	}
	return chunks, nil
}
