package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVFile reads one export file, mapping cells by canonicalised header name
// so column order and header casing in the spreadsheet do not matter.
type CSVFile struct {
	file   *os.File
	reader *csv.Reader
	cols   map[string]int
}

func OpenCSV(path string) (*CSVFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[canonicalHeader(h)] = i
	}
	return &CSVFile{file: file, reader: reader, cols: cols}, nil
}

func (c *CSVFile) Next() (Row, bool, error) {
	record, err := c.reader.Read()
	if errors.Is(err, io.EOF) {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, err
	}
	return Row{cols: c.cols, record: record}, true, nil
}

func (c *CSVFile) Close() {
	_ = c.file.Close()
}

type Row struct {
	cols   map[string]int
	record []string
}

// Get returns the cell under the canonicalised header, empty when the column
// is absent or the row is short.
func (r Row) Get(key string) string {
	i, ok := r.cols[key]
	if !ok || i >= len(r.record) {
		return ""
	}
	return r.record[i]
}

func canonicalHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}
