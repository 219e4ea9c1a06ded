package pipeline

import "context"

// Status classifies the outcome of processing a single work item.
type Status string

const (
	StatusSuccess      Status = "success"
	StatusFailed       Status = "failed"
	StatusSkippedEmpty Status = "skipped_empty_source"
)

// WorkItem is one unit of input: a feed row or an image file.
// Items are built once from the input collection and never mutated.
type WorkItem struct {
	// ID identifies the item in results (row index or file name).
	ID string
	// Source is the image URL (upload pipeline) or local file path
	// (transform pipeline). An empty source skips the item.
	Source string
	// Meta holds optional per-item metadata fields. Absent fields are
	// absent from the map, never present as empty strings.
	Meta map[string]string
}

// ItemResult records the outcome of processing one WorkItem.
type ItemResult struct {
	ItemID string
	Status Status
	// Output is the primary output reference: the CDN delivery URL for
	// uploads, the written file path for transforms.
	Output string
	// PresetOutput is the preset-decorated delivery URL, when a preset
	// is configured (upload pipeline only).
	PresetOutput string
	// Detail carries a human-readable cause for failed items.
	Detail string
}

// Summary is the ordered collection of results for a run.
// Results[i] always corresponds to the i-th input item.
type Summary struct {
	Results   []ItemResult
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
}

// Add appends a result and updates the aggregate counts.
func (s *Summary) Add(r ItemResult) {
	s.Results = append(s.Results, r)
	s.Processed++
	switch r.Status {
	case StatusSuccess:
		s.Succeeded++
	case StatusSkippedEmpty:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Processor converts one WorkItem into an ItemResult. Implementations
// report expected per-item failures (bad URL, HTTP error, unreadable
// file) as a failed ItemResult with a nil error; a non-nil error is a
// safety net that the runner converts into a failed result so the run
// never aborts on a single item.
type Processor interface {
	Process(ctx context.Context, item WorkItem) (ItemResult, error)
}
