package outfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tanq16/swarm/internal/chunk"
)

var (
	ErrOutOfRange = errors.New("chunk lies outside the output file")
	ErrShortWrite = errors.New("data length does not match chunk size")
)

// Writer persists a completed chunk at its absolute offset.
type Writer interface {
	WriteChunk(c chunk.Chunk, data []byte) error
}

// File is the shared output file. Writes from all workers go through one gate.
type File struct {
	path string
	size int64
	mu   sync.Mutex
}

// Preallocate creates (or truncates) path and sizes it to size bytes. The file is sparse where supported.
func Preallocate(path string, size int64) (*File, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid file size %d", size)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("error creating output file: %w", err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		return nil, fmt.Errorf("error preallocating output file: %w", err)
	}
	return &File{path: path, size: size}, nil
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Size() int64 {
	return f.size
}

// WriteChunk opens, seeks, writes and closes as one critical section.
func (f *File) WriteChunk(c chunk.Chunk, data []byte) error {
	if c.Start < 0 || c.End >= f.size || c.End < c.Start {
		return fmt.Errorf("%w: chunk %d [%d, %d] in file of %d bytes", ErrOutOfRange, c.Index, c.Start, c.End, f.size)
	}
	if int64(len(data)) != c.Size() {
		return fmt.Errorf("%w: chunk %d expects %d bytes, got %d", ErrShortWrite, c.Index, c.Size(), len(data))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out, err := os.OpenFile(f.path, os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error opening output file: %w", err)
	}
	if _, err := out.Seek(c.Start, io.SeekStart); err != nil {
		out.Close()
		return fmt.Errorf("error seeking output file: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return fmt.Errorf("error writing chunk %d: %w", c.Index, err)
	}
	return out.Close()
}
