package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Table is a loaded product feed: a header and string-valued rows.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Loader reads a product feed from a CSV or Parquet file.
type Loader struct {
	path      string
	delimiter rune
}

// NewLoader creates a loader for the given feed file. delimiter applies
// to CSV input only; zero means comma. Retail feeds are frequently
// pipe-delimited.
func NewLoader(path string, delimiter rune) *Loader {
	if delimiter == 0 {
		delimiter = ','
	}
	return &Loader{path: path, delimiter: delimiter}
}

// Load reads the feed, choosing the parser by file extension.
func (l *Loader) Load() (*Table, error) {
	ext := strings.ToLower(filepath.Ext(l.path))

	switch ext {
	case ".csv":
		return l.loadCSV()
	case ".parquet":
		return l.loadParquet()
	default:
		return nil, fmt.Errorf("unsupported feed format: %s (supported: .csv, .parquet)", ext)
	}
}

// loadCSV reads the feed as delimited text with a header row.
func (l *Loader) loadCSV() (*Table, error) {
	slog.Debug("Opening CSV feed", "path", l.path, "delimiter", string(l.delimiter))

	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = l.delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("feed file is empty: %s", l.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feed header: %w", err)
	}

	table := &Table{Columns: header}

	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse feed at line %d: %w", lineNum+1, err)
		}
		lineNum++

		// Pad short rows so every row matches the header width.
		for len(record) < len(header) {
			record = append(record, "")
		}
		table.Rows = append(table.Rows, record[:len(header)])

		if lineNum%1000 == 0 {
			slog.Debug("Reading CSV feed", "rows_read", lineNum-1)
		}
	}

	slog.Debug("Finished reading CSV feed", "rows", len(table.Rows), "columns", len(table.Columns))

	return table, nil
}

// loadParquet reads the feed from a Parquet file, rendering every leaf
// column value as a string.
func (l *Loader) loadParquet() (*Table, error) {
	slog.Debug("Opening Parquet feed", "path", l.path)

	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet feed opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	fields := pf.Schema().Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name()
	}

	table := &Table{Columns: columns}
	buf := make([]parquet.Row, 128)

	for _, group := range pf.RowGroups() {
		rows := group.Rows()

		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				record := make([]string, len(columns))
				for _, value := range row {
					col := value.Column()
					if col < 0 || col >= len(record) || value.IsNull() {
						continue
					}
					record[col] = value.String()
				}
				table.Rows = append(table.Rows, record)
			}
			if err != nil {
				break
			}
		}

		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("failed to close parquet row reader: %w", err)
		}
	}

	slog.Debug("Finished reading Parquet feed", "rows", len(table.Rows), "columns", len(table.Columns))

	return table, nil
}
