package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders Dataset records into CSV bytes and reads them back.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse reads CSV bytes whose first record is the header row. Every header
// listed in required must be present; extra columns are kept.
func (e *CSVExporter) Parse(raw []byte, required ...string) (Dataset, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Dataset{}, fmt.Errorf("csv is empty")
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("read csv headers: %w", err)
	}
	for i, header := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
	}
	for _, name := range required {
		if !containsHeader(headers, name) {
			return Dataset{}, fmt.Errorf("csv is missing column %q", name)
		}
	}

	data := Dataset{Headers: headers}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("read csv row: %w", err)
		}
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			row[header] = record[i]
		}
		data.Rows = append(data.Rows, row)
	}
	return data, nil
}

func containsHeader(headers []string, name string) bool {
	for _, header := range headers {
		if header == name {
			return true
		}
	}
	return false
}
