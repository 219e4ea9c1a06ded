package feed

import (
	"fmt"
	"strconv"
	"strings"

	"mediabatch/internal/pipeline"
)

// ColumnMap names the feed columns the upload pipeline reads. Source is
// required; the metadata columns are optional and omitted when empty.
type ColumnMap struct {
	Source      string
	Brand       string
	Title       string
	Description string
	EAN         string
	GTIN        string
	ProductID   string
}

// ResolvedColumns holds column indexes after validation against a
// concrete table.
type ResolvedColumns struct {
	Source int
	// Meta maps the backend metadata key (brand, title, ...) to the
	// feed column index it is read from.
	Meta map[string]int
}

// Resolve validates the configured column names against the table
// header. A configured name that is not present is a configuration
// error reported with the full list of available columns, before any
// item is processed.
func (c ColumnMap) Resolve(table *Table) (*ResolvedColumns, error) {
	index := make(map[string]int, len(table.Columns))
	for i, name := range table.Columns {
		index[name] = i
	}

	if c.Source == "" {
		return nil, fmt.Errorf("source column name is required")
	}

	resolved := &ResolvedColumns{Source: -1, Meta: make(map[string]int)}

	var missing []string
	lookup := func(name, metaKey string) {
		if name == "" {
			return
		}
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
			return
		}
		if metaKey == "" {
			resolved.Source = i
		} else {
			resolved.Meta[metaKey] = i
		}
	}

	lookup(c.Source, "")
	lookup(c.Brand, "brand")
	lookup(c.Title, "title")
	lookup(c.Description, "description")
	lookup(c.EAN, "ean")
	lookup(c.GTIN, "gtin")
	lookup(c.ProductID, "product_id")

	if len(missing) > 0 {
		return nil, fmt.Errorf("column(s) %s not found in feed (available columns: %s)",
			strings.Join(missing, ", "), strings.Join(table.Columns, ", "))
	}

	return resolved, nil
}

// BuildItems converts feed rows into work items. The row index is the
// item ID. limit > 0 caps the number of items, mirroring the feed's
// row-limit option. Empty metadata cells never appear in Meta.
func BuildItems(table *Table, cols *ResolvedColumns, limit int) []pipeline.WorkItem {
	n := len(table.Rows)
	if limit > 0 && limit < n {
		n = limit
	}

	items := make([]pipeline.WorkItem, 0, n)
	for i := 0; i < n; i++ {
		row := table.Rows[i]

		item := pipeline.WorkItem{
			ID:     strconv.Itoa(i),
			Source: strings.TrimSpace(row[cols.Source]),
		}

		for key, col := range cols.Meta {
			if value := strings.TrimSpace(row[col]); value != "" {
				if item.Meta == nil {
					item.Meta = make(map[string]string)
				}
				item.Meta[key] = value
			}
		}

		items = append(items, item)
	}

	return items
}
