package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// rowSource yields the header row followed by data rows in file order.
type rowSource interface {
	Header() ([]string, error)
	Next() ([]string, error)
	Close() error
}

func openSource(path string) (rowSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", "":
		return openCSV(path)
	case ".xlsx":
		return openXLSX(path)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func wrapOpenErr(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrParseFailure, err)
}

type csvSource struct {
	file   *os.File
	reader *csv.Reader
}

func openCSV(path string) (*csvSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapOpenErr(err)
	}
	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true
	return &csvSource{file: f, reader: r}, nil
}

func (s *csvSource) Header() ([]string, error) {
	row, err := s.reader.Read()
	if err != nil {
		return nil, err
	}
	return normalizeHeader(row), nil
}

func (s *csvSource) Next() ([]string, error) {
	return s.reader.Read()
}

func (s *csvSource) Close() error { return s.file.Close() }

type xlsxSource struct {
	book *excelize.File
	rows *excelize.Rows
}

func openXLSX(path string) (*xlsxSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, wrapOpenErr(err)
	}
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	sheet := book.GetSheetName(0)
	rows, err := book.Rows(sheet)
	if err != nil {
		_ = book.Close()
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	return &xlsxSource{book: book, rows: rows}, nil
}

func (s *xlsxSource) Header() ([]string, error) {
	row, err := s.Next()
	if err != nil {
		return nil, err
	}
	return normalizeHeader(row), nil
}

func (s *xlsxSource) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return s.rows.Columns()
}

func (s *xlsxSource) Close() error {
	rowsErr := s.rows.Close()
	if err := s.book.Close(); err != nil {
		return err
	}
	return rowsErr
}

// normalizeHeader strips a UTF-8 BOM and surrounding blanks from header cells.
func normalizeHeader(row []string) []string {
	out := make([]string, len(row))
	for i, h := range row {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}
