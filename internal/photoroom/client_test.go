package photoroom

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediabatch/internal/pipeline"
)

func writeTestImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("fake image bytes"), 0644); err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	return path
}

func newTestClient(t *testing.T, opts Options, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	client, err := NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	client.baseURL = server.URL
	return client
}

func TestProcessV1Success(t *testing.T) {
	var gotKey string
	var gotForm map[string]string
	var gotImageField string

	client := newTestClient(t, Options{
		APIKey:  "key",
		Format:  "jpg",
		Size:    "hd",
		BGColor: "FFFFFF",
		Despill: true,
	}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}
		gotForm = map[string]string{}
		for name, values := range r.MultipartForm.Value {
			gotForm[name] = values[0]
		}
		for name := range r.MultipartForm.File {
			gotImageField = name
		}
		w.Write([]byte("processed image bytes"))
	}))

	input := writeTestImage(t, "hero.jpg")
	result, err := client.Process(context.Background(), pipeline.WorkItem{ID: "hero.jpg", Source: input})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if result.Status != pipeline.StatusSuccess {
		t.Fatalf("Expected success, got %s (%s)", result.Status, result.Detail)
	}
	if gotKey != "key" {
		t.Errorf("Expected plain API key, got %q", gotKey)
	}
	if gotImageField != "image_file" {
		t.Errorf("Expected v1 image_file field, got %q", gotImageField)
	}
	expected := map[string]string{
		"format":   "jpg",
		"size":     "hd",
		"crop":     "false",
		"despill":  "true",
		"bg_color": "FFFFFF",
	}
	for name, want := range expected {
		if gotForm[name] != want {
			t.Errorf("Form field %s: expected %q, got %q", name, want, gotForm[name])
		}
	}

	want := filepath.Join(client.opts.OutputDir, "hero_processed.jpg")
	if result.Output != want {
		t.Errorf("Expected output path %s, got %s", want, result.Output)
	}
	data, err := os.ReadFile(result.Output)
	if err != nil {
		t.Fatalf("Output file not written: %v", err)
	}
	if string(data) != "processed image bytes" {
		t.Errorf("Output file has wrong contents: %q", data)
	}
}

func TestProcessV2FieldMapping(t *testing.T) {
	var gotForm map[string]string
	var gotImageField string

	client := newTestClient(t, Options{
		APIKey:     "key",
		UseV2:      true,
		Format:     "jpg",
		BGColor:    "FFFFFF",
		OutputSize: "2000x2000",
		Padding:    0.075,
	}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}
		gotForm = map[string]string{}
		for name, values := range r.MultipartForm.Value {
			gotForm[name] = values[0]
		}
		for name := range r.MultipartForm.File {
			gotImageField = name
		}
		w.Write([]byte("ok"))
	}))

	input := writeTestImage(t, "hero.png")
	result, err := client.Process(context.Background(), pipeline.WorkItem{ID: "hero.png", Source: input})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if result.Status != pipeline.StatusSuccess {
		t.Fatalf("Expected success, got %s (%s)", result.Status, result.Detail)
	}

	if gotImageField != "imageFile" {
		t.Errorf("Expected v2 imageFile field, got %q", gotImageField)
	}
	expected := map[string]string{
		"export.format":    "jpg",
		"removeBackground": "true",
		"outputSize":       "2000x2000",
		"padding":          "0.075",
		"background.color": "FFFFFF",
	}
	for name, want := range expected {
		if gotForm[name] != want {
			t.Errorf("Form field %s: expected %q, got %q", name, want, gotForm[name])
		}
	}
	if _, ok := gotForm["despill"]; ok {
		t.Error("v1 field despill must not be sent to the v2 endpoint")
	}
}

func TestProcessV2CropOverridesOutputSize(t *testing.T) {
	var gotForm map[string]string
	client := newTestClient(t, Options{
		APIKey:     "key",
		UseV2:      true,
		OutputSize: "2000x2000",
		Crop:       true,
	}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		gotForm = map[string]string{}
		for name, values := range r.MultipartForm.Value {
			gotForm[name] = values[0]
		}
		w.Write([]byte("ok"))
	}))

	input := writeTestImage(t, "a.jpg")
	if _, err := client.Process(context.Background(), pipeline.WorkItem{ID: "a.jpg", Source: input}); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if gotForm["outputSize"] != "croppedSubject" {
		t.Errorf("Crop should map to outputSize=croppedSubject, got %q", gotForm["outputSize"])
	}
}

func TestProcessSandboxPrefixesKey(t *testing.T) {
	var gotKey string
	var calls int
	client := newTestClient(t, Options{
		APIKey:  "key",
		Sandbox: true,
	}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotKey = r.Header.Get("x-api-key")
		w.Write([]byte("ok"))
	}))

	input := writeTestImage(t, "a.jpg")
	if _, err := client.Process(context.Background(), pipeline.WorkItem{ID: "a.jpg", Source: input}); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	// Sandbox is a credential convention here, not a local
	// short-circuit: the call still goes out.
	if calls != 1 {
		t.Fatalf("Expected 1 network call in sandbox mode, got %d", calls)
	}
	if gotKey != "sandbox_key" {
		t.Errorf("Expected sandbox_ prefixed key, got %q", gotKey)
	}
}

func TestProcessHTTPError(t *testing.T) {
	client := newTestClient(t, Options{APIKey: "key"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"detail":"quota exceeded"}`))
	}))

	input := writeTestImage(t, "a.jpg")
	result, err := client.Process(context.Background(), pipeline.WorkItem{ID: "a.jpg", Source: input})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if result.Status != pipeline.StatusFailed {
		t.Fatalf("Expected failed, got %s", result.Status)
	}
	if !strings.Contains(result.Detail, "402") || !strings.Contains(result.Detail, "quota exceeded") {
		t.Errorf("Detail should carry status and body: %q", result.Detail)
	}
}

func TestProcessUnreadableFileNoNetworkCall(t *testing.T) {
	var calls int
	client := newTestClient(t, Options{APIKey: "key"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	tests := []struct {
		name   string
		source func(t *testing.T) string
	}{
		{
			name:   "missing file",
			source: func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.jpg") },
		},
		{
			name: "empty file",
			source: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "empty.jpg")
				if err := os.WriteFile(path, nil, 0644); err != nil {
					t.Fatalf("Failed to create empty file: %v", err)
				}
				return path
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := client.Process(context.Background(), pipeline.WorkItem{ID: tt.name, Source: tt.source(t)})
			if err != nil {
				t.Fatalf("Process returned error: %v", err)
			}
			if result.Status != pipeline.StatusFailed {
				t.Errorf("Expected failed, got %s", result.Status)
			}
		})
	}

	if calls != 0 {
		t.Errorf("Expected no network calls for unreadable files, got %d", calls)
	}
}

func TestValidateOptionCombinations(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{
			name:    "missing API key",
			opts:    Options{OutputDir: "out"},
			wantErr: "API key",
		},
		{
			name:    "missing output dir",
			opts:    Options{APIKey: "k"},
			wantErr: "output directory",
		},
		{
			name:    "bad format",
			opts:    Options{APIKey: "k", OutputDir: "out", Format: "gif"},
			wantErr: "format",
		},
		{
			name:    "v2 field on v1 endpoint",
			opts:    Options{APIKey: "k", OutputDir: "out", OutputSize: "2000x2000"},
			wantErr: "--v2",
		},
		{
			name:    "max dimensions on v1 endpoint",
			opts:    Options{APIKey: "k", OutputDir: "out", MaxWidth: 500},
			wantErr: "--v2",
		},
		{
			name:    "padding on v1 endpoint",
			opts:    Options{APIKey: "k", OutputDir: "out", Padding: 0.075},
			wantErr: "--v2",
		},
		{
			name:    "v1 size on v2 endpoint",
			opts:    Options{APIKey: "k", OutputDir: "out", UseV2: true, Size: "hd"},
			wantErr: "v1 option",
		},
		{
			name:    "despill on v2 endpoint",
			opts:    Options{APIKey: "k", OutputDir: "out", UseV2: true, Despill: true},
			wantErr: "v1 option",
		},
		{
			name:    "padding out of range",
			opts:    Options{APIKey: "k", OutputDir: "out", UseV2: true, Padding: 0.8},
			wantErr: "padding",
		},
		{
			name: "valid v1",
			opts: Options{APIKey: "k", OutputDir: "out", Size: "hd", Despill: true},
		},
		{
			name: "valid v2",
			opts: Options{APIKey: "k", OutputDir: "out", UseV2: true, OutputSize: "2000x2000", Padding: 0.075},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid options, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	client := &Client{opts: Options{OutputDir: "/out", Format: "png"}}

	got := client.OutputPath("/in/photo shoot.jpeg")
	want := filepath.Join("/out", "photo shoot_processed.png")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}
