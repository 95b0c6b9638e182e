package mapper

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// Writer appends fixed-width entries in native byte order, the layout Reader
// maps back.
type Writer[T any] struct {
	file   *os.File
	buffer *bufio.Writer
}

func NewWriter[T any](dataSourceName string) (*Writer[T], error) {
	f, err := os.Create(dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("unable to create data source %q: %w", dataSourceName, err)
	}
	return &Writer[T]{file: f, buffer: bufio.NewWriter(f)}, nil
}

func (w *Writer[T]) Write(entry T) error {
	if err := binary.Write(w.buffer, binary.NativeEndian, &entry); err != nil {
		return fmt.Errorf("unable to write entry: %w", err)
	}
	return nil
}

func (w *Writer[T]) Close() error {
	if err := w.buffer.Flush(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("unable to flush: %w", err)
	}
	return w.file.Close()
}
