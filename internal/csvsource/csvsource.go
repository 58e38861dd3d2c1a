// Package csvsource reads import rows from delimited text.
//
// The first record of every source is a header and is never returned.
// Records shorter than RowWidth are padded with empty cells so callers can
// index title, type, value and category positions directly.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// RowWidth is the number of cells an import row carries: title, type, value, category.
const RowWidth = 4

type reader struct {
	r          *csv.Reader
	headerDone bool
}

func newReader(r io.Reader) reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	// a stray quote in one title must not end the whole import
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	return reader{r: cr}
}

// Next returns the next data record, or io.EOF once the stream is exhausted.
func (rd *reader) Next() ([]string, error) {
	if !rd.headerDone {
		rd.headerDone = true
		if _, err := rd.r.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read header: %w", err)
		}
	}

	rec, err := rd.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	for len(rec) < RowWidth {
		rec = append(rec, "")
	}
	return rec, nil
}

// FileSource reads an uploaded file. Release closes and removes it.
type FileSource struct {
	reader
	f    *os.File
	path string
}

func Open(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	return &FileSource{reader: newReader(f), f: f, path: path}, nil
}

func (s *FileSource) Release() error {
	closeErr := s.f.Close()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove import file: %w", err)
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return fmt.Errorf("close import file: %w", closeErr)
	}
	return nil
}

// ReaderSource reads from a caller-owned stream; Release does nothing.
type ReaderSource struct {
	reader
}

func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{reader: newReader(r)}
}

func (s *ReaderSource) Release() error { return nil }
