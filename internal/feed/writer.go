package feed

import (
	"encoding/csv"
	"fmt"
	"os"

	"mediabatch/internal/pipeline"
)

// Result column names appended to the output feed.
const (
	ColumnCDNURL    = "scaleflex_cdn_url"
	ColumnPresetURL = "scaleflex_preset_url"
	ColumnStatus    = "scaleflex_status"
)

// AppendResults returns a copy of the table with the three result
// columns appended. results[i] must correspond to table.Rows[i]; rows
// beyond the processed range (row limit) get empty result cells.
func AppendResults(table *Table, summary *pipeline.Summary) *Table {
	out := &Table{
		Columns: append(append([]string{}, table.Columns...), ColumnCDNURL, ColumnPresetURL, ColumnStatus),
		Rows:    make([][]string, 0, len(table.Rows)),
	}

	for i, row := range table.Rows {
		cdnURL, presetURL, status := "", "", ""
		if i < len(summary.Results) {
			r := summary.Results[i]
			cdnURL = r.Output
			presetURL = r.PresetOutput
			status = string(r.Status)
			// Failed rows carry the cause where the URL would go, so
			// the output feed is diagnosable on its own.
			if r.Status == pipeline.StatusFailed && cdnURL == "" {
				cdnURL = r.Detail
			}
		}
		out.Rows = append(out.Rows, append(append([]string{}, row...), cdnURL, presetURL, status))
	}

	return out
}

// WriteCSV writes the table to path in one pass after the run
// completes. A run aborted mid-way leaves no partial output file.
func WriteCSV(path string, table *Table, delimiter rune) error {
	if delimiter == 0 {
		delimiter = ','
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = delimiter

	if err := writer.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	return nil
}
