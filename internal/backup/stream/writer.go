// Package stream reads and writes JSON Lines entries inside zip archives.
package stream

import (
	"archive/zip"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Writer appends one JSON document per line to a single zip entry.
type Writer struct {
	enc   *jsoniter.Encoder
	count int
}

// NewWriter creates the entry at path and returns a writer for it. The
// entry stays open until the next Create on zw or zw.Close.
func NewWriter(zw *zip.Writer, path string) (*Writer, error) {
	w, err := zw.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{enc: json.NewEncoder(w)}, nil
}

// Write encodes v followed by a newline.
func (w *Writer) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of lines written.
func (w *Writer) Count() int {
	return w.count
}

// WriteAll writes every element of items and returns how many were written.
func WriteAll[T any](zw *zip.Writer, path string, items []T) (int, error) {
	w, err := NewWriter(zw, path)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		if err := w.Write(item); err != nil {
			return w.Count(), err
		}
	}
	return w.Count(), nil
}
