package scaleflex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"mediabatch/internal/pipeline"
)

// DefaultBaseURL is the Filerobot API root. The project token is
// interpolated into the request path.
const DefaultBaseURL = "https://api.filerobot.com"

// errorCodeAssetExists is returned by the upload endpoint when the same
// asset is already in the DAM; the existing file is reused instead of
// treating the row as failed.
const errorCodeAssetExists = "SAME_ASSET_EXISTS_SKIP_UPLOAD"

// Options configures the upload pipeline. Resolved once per run.
type Options struct {
	// APIKey is sent as the X-Filerobot-Key header.
	APIKey string
	// ProjectToken is the Filerobot project token in the API path and
	// the CDN hostname.
	ProjectToken string
	// Folder is the destination folder in the DAM.
	Folder string
	// Preset, when set, derives a second delivery URL with ?p=<preset>.
	Preset string
	// Sandbox short-circuits every upload locally: no network call is
	// made and a deterministic placeholder result is returned. Used to
	// validate feeds and output formatting without consuming quota.
	Sandbox bool
}

// Validate reports configuration errors before any item is processed.
func (o Options) Validate() error {
	if o.Sandbox {
		return nil
	}
	if o.APIKey == "" {
		return fmt.Errorf("scaleflex API key is required (set SCALEFLEX_API_KEY or use --api-key, or run with --sandbox)")
	}
	if o.ProjectToken == "" {
		return fmt.Errorf("scaleflex project token is required (set SCALEFLEX_PROJECT_TOKEN or use --project-token, or run with --sandbox)")
	}
	return nil
}

// Client uploads images to the Scaleflex DAM by URL.
type Client struct {
	opts       Options
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an upload client from validated options.
func NewClient(opts Options) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		opts:    opts,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// uploadResponse is the subset of the upload/file-details response the
// pipeline depends on. Additive backend fields are ignored; a missing
// CDN URL fails closed.
type uploadResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Msg    string `json:"msg"`
	Hint   string `json:"hint"`

	ExistingFileUUID string `json:"existing_file_uuid"`

	File struct {
		UUID string `json:"uuid"`
		Name string `json:"name"`
		URL  struct {
			CDN string `json:"cdn"`
		} `json:"url"`
	} `json:"file"`
}

// Process uploads one feed row's image by URL and returns the delivery
// URL(s). Implements pipeline.Processor.
func (c *Client) Process(ctx context.Context, item pipeline.WorkItem) (pipeline.ItemResult, error) {
	source := strings.TrimSpace(item.Source)

	if _, err := parseSourceURL(source); err != nil {
		return pipeline.ItemResult{
			ItemID: item.ID,
			Status: pipeline.StatusFailed,
			Detail: fmt.Sprintf("invalid source URL %q: %v", source, err),
		}, nil
	}

	if c.opts.Sandbox {
		return c.sandboxResult(item, source), nil
	}

	resp, err := c.upload(ctx, source, item.Meta)
	if err != nil {
		return pipeline.ItemResult{
			ItemID: item.ID,
			Status: pipeline.StatusFailed,
			Detail: err.Error(),
		}, nil
	}

	cdnURL := resp.File.URL.CDN
	if cdnURL == "" {
		return pipeline.ItemResult{
			ItemID: item.ID,
			Status: pipeline.StatusFailed,
			Detail: "upload response missing CDN URL",
		}, nil
	}

	result := pipeline.ItemResult{
		ItemID: item.ID,
		Status: pipeline.StatusSuccess,
		Output: cdnURL,
	}
	if c.opts.Preset != "" {
		result.PresetOutput = AddPreset(cdnURL, c.opts.Preset)
	}
	return result, nil
}

// upload posts the upload-by-URL request and resolves the
// already-exists case by fetching the existing file's details.
func (c *Client) upload(ctx context.Context, source string, meta map[string]string) (*uploadResponse, error) {
	type fileURL struct {
		URL  string            `json:"url"`
		Meta map[string]string `json:"meta,omitempty"`
	}
	payload := struct {
		FilesURLs []fileURL `json:"files_urls"`
	}{
		FilesURLs: []fileURL{{URL: source, Meta: meta}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/v5/files?folder=%s&upload_beta=true",
		c.baseURL, c.opts.ProjectToken, url.QueryEscape(c.opts.Folder))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Filerobot-Key", c.opts.APIKey)

	slog.Debug("Uploading image by URL", "url", source)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}

	var resp uploadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("invalid JSON from upload API (status %d): %s", httpResp.StatusCode, snippet(raw))
	}

	if resp.Status == "error" {
		// The DAM deduplicates by content; reuse the existing asset
		// instead of failing the row.
		if resp.Code == errorCodeAssetExists && resp.ExistingFileUUID != "" {
			slog.Info("Asset already exists, reusing", "url", source, "uuid", resp.ExistingFileUUID)
			return c.fileDetails(ctx, resp.ExistingFileUUID)
		}
		detail := resp.Msg
		if resp.Hint != "" {
			detail += " (" + resp.Hint + ")"
		}
		return nil, fmt.Errorf("upload failed: %s: %s", resp.Code, detail)
	}

	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("upload API returned status %d: %s", httpResp.StatusCode, snippet(raw))
	}

	if resp.Status != "success" {
		return nil, fmt.Errorf("unexpected upload response status %q: %s", resp.Status, snippet(raw))
	}

	return &resp, nil
}

// fileDetails fetches an existing file by UUID.
func (c *Client) fileDetails(ctx context.Context, uuid string) (*uploadResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/v5/files/%s", c.baseURL, c.opts.ProjectToken, url.PathEscape(uuid))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create file details request: %w", err)
	}
	req.Header.Set("X-Filerobot-Key", c.opts.APIKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("file details request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file details response: %w", err)
	}

	var resp uploadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("invalid JSON from file details API (status %d): %s", httpResp.StatusCode, snippet(raw))
	}

	if httpResp.StatusCode != http.StatusOK || resp.Status != "success" {
		return nil, fmt.Errorf("file details for %s returned status %d: %s", uuid, httpResp.StatusCode, snippet(raw))
	}

	return &resp, nil
}

// sandboxResult synthesizes a deterministic placeholder delivery URL
// from the source file name, without any network call.
func (c *Client) sandboxResult(item pipeline.WorkItem, source string) pipeline.ItemResult {
	token := c.opts.ProjectToken
	if token == "" {
		token = "sandbox"
	}
	name := path.Base(source)
	cdnURL := fmt.Sprintf("https://%s.filerobot.com%s/%s?vh=sandbox", token, c.opts.Folder, name)

	result := pipeline.ItemResult{
		ItemID: item.ID,
		Status: pipeline.StatusSuccess,
		Output: cdnURL,
	}
	if c.opts.Preset != "" {
		result.PresetOutput = AddPreset(cdnURL, c.opts.Preset)
	}
	return result
}

// AddPreset appends the named server-side transformation preset to a
// delivery URL as a query parameter. Pure string manipulation.
func AddPreset(cdnURL, preset string) string {
	separator := "?"
	if strings.Contains(cdnURL, "?") {
		separator = "&"
	}
	return cdnURL + separator + "p=" + preset
}

// parseSourceURL validates that source is an absolute http(s) URL.
func parseSourceURL(source string) (*url.URL, error) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("not an absolute http(s) URL")
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}

// snippet truncates a response body for error messages.
func snippet(raw []byte) string {
	const max = 500
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
