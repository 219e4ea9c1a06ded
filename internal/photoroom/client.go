package photoroom

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mediabatch/internal/pipeline"
)

// Endpoint URLs for the two API plans.
const (
	V1BaseURL = "https://sdk.photoroom.com/v1/segment"
	V2BaseURL = "https://image-api.photoroom.com/v2/edit"
)

// sandboxPrefix marks a credential as a sandbox key. Unlike the upload
// pipeline's local short-circuit, sandbox calls here still reach the
// live endpoint and count against sandbox quota server-side.
const sandboxPrefix = "sandbox_"

// outputSuffix is appended to the input file stem when naming results.
const outputSuffix = "_processed"

// Options configures the background-removal pipeline. Resolved once
// per run and validated before any item is processed.
type Options struct {
	// APIKey is sent as the x-api-key header, prefixed with sandbox_
	// when Sandbox is set.
	APIKey string
	// Sandbox routes calls through the server-side sandbox by key
	// convention. No local short-circuit.
	Sandbox bool
	// UseV2 targets the v2/edit endpoint (Plus plan, custom
	// dimensions) instead of v1/segment.
	UseV2 bool

	// Format is the output image format: png, jpg or webp.
	Format string
	// BGColor is a hex or HTML background color; empty keeps the
	// background transparent.
	BGColor string
	// Crop trims the output to the cutout border.
	Crop bool

	// Size is the v1 output size: preview, medium, hd or full.
	Size string
	// Despill removes green-screen color reflections (v1 only).
	Despill bool

	// OutputSize is the v2 custom dimension spec, e.g. "2000x2000",
	// "auto", "originalImage" or "croppedSubject".
	OutputSize string
	// MaxWidth and MaxHeight cap v2 output dimensions while keeping
	// the aspect ratio.
	MaxWidth  int
	MaxHeight int
	// Padding is the v2 padding around the subject, 0-0.49. Amazon's
	// 85% fill rule corresponds to roughly 0.075.
	Padding float64

	// OutputDir receives the processed images.
	OutputDir string
}

var validFormats = map[string]bool{"png": true, "jpg": true, "webp": true}
var validSizes = map[string]bool{"": true, "preview": true, "medium": true, "hd": true, "full": true}

// Validate reports configuration errors before any item is processed.
// Requesting v2-only fields on the v1 endpoint (or the reverse) is a
// configuration error, not a per-item failure.
func (o Options) Validate() error {
	if o.APIKey == "" {
		return fmt.Errorf("photoroom API key is required (set PHOTOROOM_API_KEY or use --api-key)")
	}
	if o.Format != "" && !validFormats[o.Format] {
		return fmt.Errorf("unsupported output format %q (supported: png, jpg, webp)", o.Format)
	}
	if o.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}

	if o.UseV2 {
		if o.Size != "" && o.Size != "full" {
			return fmt.Errorf("--size is a v1 option; use --output-size with --v2")
		}
		if o.Despill {
			return fmt.Errorf("--despill is a v1 option and has no effect on the v2 endpoint")
		}
	} else {
		if !validSizes[o.Size] {
			return fmt.Errorf("unsupported size %q (supported: preview, medium, hd, full)", o.Size)
		}
		if o.OutputSize != "" {
			return fmt.Errorf("--output-size requires the v2 endpoint (--v2)")
		}
		if o.MaxWidth > 0 || o.MaxHeight > 0 {
			return fmt.Errorf("--max-width/--max-height require the v2 endpoint (--v2)")
		}
		if o.Padding > 0 {
			return fmt.Errorf("--padding requires the v2 endpoint (--v2)")
		}
	}

	if o.Padding < 0 || o.Padding > 0.49 {
		return fmt.Errorf("padding must be between 0 and 0.49, got %g", o.Padding)
	}

	return nil
}

// apiKey returns the credential as sent on the wire.
func (o Options) apiKey() string {
	if o.Sandbox {
		return sandboxPrefix + o.APIKey
	}
	return o.APIKey
}

// format returns the effective output format.
func (o Options) format() string {
	if o.Format == "" {
		return "png"
	}
	return o.Format
}

// Client removes image backgrounds through the Photoroom API.
type Client struct {
	opts       Options
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a transform client from validated options.
func NewClient(opts Options) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	baseURL := V1BaseURL
	if opts.UseV2 {
		baseURL = V2BaseURL
	}
	return &Client{
		opts:    opts,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// OutputPath returns the path a processed input file is written to:
// the input stem plus a fixed suffix and the configured extension.
func (c *Client) OutputPath(inputPath string) string {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(c.opts.OutputDir, stem+outputSuffix+"."+c.opts.format())
}

// Process sends one image through the API and writes the processed
// bytes to the output directory. Implements pipeline.Processor.
func (c *Client) Process(ctx context.Context, item pipeline.WorkItem) (pipeline.ItemResult, error) {
	imageData, err := os.ReadFile(item.Source)
	if err != nil {
		return pipeline.ItemResult{
			ItemID: item.ID,
			Status: pipeline.StatusFailed,
			Detail: fmt.Sprintf("failed to read input file: %v", err),
		}, nil
	}
	if len(imageData) == 0 {
		return pipeline.ItemResult{
			ItemID: item.ID,
			Status: pipeline.StatusFailed,
			Detail: "input file is empty",
		}, nil
	}

	body, contentType, err := c.buildRequestBody(filepath.Base(item.Source), imageData)
	if err != nil {
		return pipeline.ItemResult{}, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, body)
	if err != nil {
		return pipeline.ItemResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-api-key", c.opts.apiKey())

	slog.Debug("Removing background", "file", item.ID, "endpoint", c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pipeline.ItemResult{
			ItemID: item.ID,
			Status: pipeline.StatusFailed,
			Detail: fmt.Sprintf("request failed: %v", err),
		}, nil
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipeline.ItemResult{
			ItemID: item.ID,
			Status: pipeline.StatusFailed,
			Detail: fmt.Sprintf("failed to read response: %v", err),
		}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return pipeline.ItemResult{
			ItemID: item.ID,
			Status: pipeline.StatusFailed,
			Detail: fmt.Sprintf("API returned status %d: %s", resp.StatusCode, bodySnippet(payload)),
		}, nil
	}

	outputPath := c.OutputPath(item.Source)
	if err := os.WriteFile(outputPath, payload, 0644); err != nil {
		return pipeline.ItemResult{
			ItemID: item.ID,
			Status: pipeline.StatusFailed,
			Detail: fmt.Sprintf("failed to write output file: %v", err),
		}, nil
	}

	return pipeline.ItemResult{
		ItemID: item.ID,
		Status: pipeline.StatusSuccess,
		Output: outputPath,
	}, nil
}

// buildRequestBody assembles the multipart form for the configured
// endpoint variant, mapping options to each variant's field names.
func (c *Client) buildRequestBody(fileName string, imageData []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	imageField := "image_file"
	if c.opts.UseV2 {
		imageField = "imageFile"
	}
	part, err := writer.CreateFormFile(imageField, fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, "", err
	}

	fields := map[string]string{}
	if c.opts.UseV2 {
		fields["export.format"] = c.opts.format()
		fields["removeBackground"] = "true"
		if c.opts.OutputSize != "" {
			fields["outputSize"] = c.opts.OutputSize
		}
		if c.opts.MaxWidth > 0 {
			fields["maxWidth"] = strconv.Itoa(c.opts.MaxWidth)
		}
		if c.opts.MaxHeight > 0 {
			fields["maxHeight"] = strconv.Itoa(c.opts.MaxHeight)
		}
		if c.opts.Crop {
			fields["outputSize"] = "croppedSubject"
		}
		if c.opts.Padding > 0 {
			fields["padding"] = strconv.FormatFloat(c.opts.Padding, 'g', -1, 64)
		}
		if c.opts.BGColor != "" {
			fields["background.color"] = c.opts.BGColor
		}
	} else {
		fields["format"] = c.opts.format()
		size := c.opts.Size
		if size == "" {
			size = "full"
		}
		fields["size"] = size
		fields["crop"] = strconv.FormatBool(c.opts.Crop)
		fields["despill"] = strconv.FormatBool(c.opts.Despill)
		if c.opts.BGColor != "" {
			fields["bg_color"] = c.opts.BGColor
		}
	}

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}

// bodySnippet extracts error detail from a response body for messages.
func bodySnippet(payload []byte) string {
	const max = 500
	s := strings.TrimSpace(string(payload))
	if len(s) > max {
		return s[:max] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
