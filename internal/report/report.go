// Package report writes a YAML record of each run next to the run's
// output artifact, so results can be audited without re-running.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"mediabatch/internal/pipeline"
)

// Config captures the run configuration as executed.
type Config struct {
	Pipeline  string `yaml:"pipeline"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Preset    string `yaml:"preset,omitempty"`
	Sandbox   bool   `yaml:"sandbox"`
	RunID     string `yaml:"runid"`
	Timestamp string `yaml:"timestamp"`
}

// Counts mirrors the run summary aggregates.
type Counts struct {
	Processed int `yaml:"processed"`
	Succeeded int `yaml:"succeeded"`
	Failed    int `yaml:"failed"`
	Skipped   int `yaml:"skipped"`
}

// Result is one item's outcome as serialized to the report.
type Result struct {
	Item   string `yaml:"item"`
	Status string `yaml:"status"`
	Output string `yaml:"output,omitempty"`
	Preset string `yaml:"presetoutput,omitempty"`
	Detail string `yaml:"detail,omitempty"`
}

// RunReport is the complete YAML document for one run.
type RunReport struct {
	Config  Config   `yaml:"config"`
	Counts  Counts   `yaml:"counts"`
	Results []Result `yaml:"results"`
}

// New builds a report from a completed run summary.
func New(pipelineName, endpoint, preset string, sandbox bool, summary *pipeline.Summary) *RunReport {
	rep := &RunReport{
		Config: Config{
			Pipeline:  pipelineName,
			Endpoint:  endpoint,
			Preset:    preset,
			Sandbox:   sandbox,
			RunID:     uuid.New().String(),
			Timestamp: time.Now().Format("2006-01-02_15-04-05"),
		},
		Counts: Counts{
			Processed: summary.Processed,
			Succeeded: summary.Succeeded,
			Failed:    summary.Failed,
			Skipped:   summary.Skipped,
		},
		Results: make([]Result, 0, len(summary.Results)),
	}

	for _, r := range summary.Results {
		rep.Results = append(rep.Results, Result{
			Item:   r.ItemID,
			Status: string(r.Status),
			Output: r.Output,
			Preset: r.PresetOutput,
			Detail: r.Detail,
		})
	}

	return rep
}

// Save writes the report to dir as <pipeline>-<timestamp>.yaml and
// returns the written path. Written once, after the run completes.
func (r *RunReport) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", r.Config.Pipeline, r.Config.Timestamp))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}
