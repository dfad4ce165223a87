package stream

import (
	"archive/zip"
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
)

// maxLine bounds a single JSON line.
const maxLine = 4 << 20

// ErrFileNotFound indicates a missing archive entry.
var ErrFileNotFound = errors.New("file not found in archive")

// OpenFile opens the entry named path.
func OpenFile(zr *zip.Reader, path string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == path {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
}

// Reader decodes JSON Lines into values of type T.
type Reader[T any] struct {
	rc      io.ReadCloser
	scanner *bufio.Scanner
	line    int
}

// NewReader wraps rc. The reader closes rc once iteration ends.
func NewReader[T any](rc io.ReadCloser) *Reader[T] {
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader[T]{rc: rc, scanner: sc}
}

// All yields every decoded line. A malformed line yields an error naming
// its line number and iteration continues with the next line.
func (r *Reader[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer r.rc.Close()

		var zero T
		for r.scanner.Scan() {
			r.line++
			raw := r.scanner.Bytes()
			if len(raw) == 0 {
				continue
			}

			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				if !yield(zero, fmt.Errorf("line %d: %w", r.line, err)) {
					return
				}
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := r.scanner.Err(); err != nil {
			yield(zero, err)
		}
	}
}

// ReadAll opens path and decodes every line, stopping at the first error.
func ReadAll[T any](zr *zip.Reader, path string) ([]T, error) {
	rc, err := OpenFile(zr, path)
	if err != nil {
		return nil, err
	}

	var out []T
	for v, err := range NewReader[T](rc).All() {
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, v)
	}
	return out, nil
}
