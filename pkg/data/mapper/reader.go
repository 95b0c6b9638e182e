package mapper

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"unsafe"

	"golang.org/x/exp/mmap"
)

var (
	ErrEof          = errors.New("EOF")
	ErrInvalidEntry = errors.New("invalid entry size")
	ErrNotOpen      = errors.New("data source not open")
)

// Reader maps a file of fixed-width entries of type T. T must have no
// padding and no pointers.
type Reader[T any] struct {
	dataSourceName string
	reader         *mmap.ReaderAt
	entrySize      int64
	entries        int64
	bufferPool     *sync.Pool
}

func NewReader[T any](dataSourceName string) *Reader[T] {
	entrySize := int64(unsafe.Sizeof(*new(T)))
	return &Reader[T]{
		dataSourceName: dataSourceName,
		entrySize:      entrySize,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buffer := make([]byte, entrySize)
				return &buffer
			},
		},
	}
}

// Open maps the file and checks that it holds whole entries.
func (r *Reader[T]) Open() error {
	if r.entrySize == 0 {
		return fmt.Errorf("%w: size of T is zero", ErrInvalidEntry)
	}
	reader, err := mmap.Open(r.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open data source %q: %w", r.dataSourceName, err)
	}
	size := int64(reader.Len())
	if size%r.entrySize != 0 {
		_ = reader.Close()
		return fmt.Errorf("%w: file size %d is not a multiple of %d", ErrInvalidEntry, size, r.entrySize)
	}
	r.reader = reader
	r.entries = size / r.entrySize
	return nil
}

func (r *Reader[T]) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
		r.reader = nil
	}
}

// EntryCount is the number of entries in the mapped file.
func (r *Reader[T]) EntryCount() (int64, error) {
	if r.reader == nil {
		return 0, ErrNotOpen
	}
	return r.entries, nil
}

func (r *Reader[T]) Read(index int64, data *T) error {
	if r.reader == nil {
		return ErrNotOpen
	}
	if index < 0 || index >= r.entries {
		return ErrEof
	}

	buffer := r.bufferPool.Get().(*[]byte)
	defer r.bufferPool.Put(buffer)

	n, err := r.reader.ReadAt(*buffer, index*r.entrySize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("unable to read entry %d: %w", index, err)
	}
	if n < len(*buffer) {
		return ErrEof
	}

	*data = *(*T)(unsafe.Pointer(&(*buffer)[0]))
	return nil
}

// All yields every entry in file order and stops at the first error.
func (r *Reader[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var entry T
		for i := int64(0); i < r.entries; i++ {
			err := r.Read(i, &entry)
			if !yield(entry, err) || err != nil {
				return
			}
		}
	}
}
