package feed

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mediabatch/internal/pipeline"
)

// imageExtensions are the input formats the transform pipeline accepts.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// ListImages builds one work item per supported image file in dir,
// sorted by file name. The file name is the item ID and the full path
// is the source.
func ListImages(dir string) ([]pipeline.WorkItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var items []pipeline.WorkItem
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		items = append(items, pipeline.WorkItem{
			ID:     entry.Name(),
			Source: filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items, nil
}
