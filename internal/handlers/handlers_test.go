package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lehigh-university-libraries/docscan/internal/capture"
	"github.com/lehigh-university-libraries/docscan/internal/config"
	"github.com/lehigh-university-libraries/docscan/internal/handoff"
	"github.com/lehigh-university-libraries/docscan/internal/models"
	"github.com/lehigh-university-libraries/docscan/internal/raster"
)

func testPNG(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: shade + uint8(x), G: shade, B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	outputDir := t.TempDir()
	return newTestServerWithSink(t, outputDir, handoff.NewDirectorySink(outputDir)), outputDir
}

func newTestServerWithSink(t *testing.T, outputDir string, sink handoff.Sink) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		OutputDir:      outputDir,
		MaxUploadBytes: 1024 * 1024,
		EnhanceWorkers: 2,
		Enhancement:    raster.DefaultOptions(),
	}
	server := httptest.NewServer(New(cfg, sink).Routes())
	t.Cleanup(server.Close)
	return server
}

// flakySink fails the first failures deliveries and then hands off to the directory sink
type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    int
	next     handoff.Sink
}

func (f *flakySink) Deliver(ctx context.Context, sessionID string, result *capture.Result) (*handoff.Manifest, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return nil, errors.New("archive unavailable")
	}
	return f.next.Deliver(ctx, sessionID, result)
}

func createSession(t *testing.T, baseURL string) models.CaptureSession {
	t.Helper()
	resp, err := http.Post(baseURL+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var session models.CaptureSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	return session
}

func uploadFiles(t *testing.T, url string, files map[string][]byte, order []string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range order {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		_, _ = part.Write(files[name])
	}
	_ = mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	return resp
}

func getSession(t *testing.T, url string) models.CaptureSession {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get session failed: %v", err)
	}
	defer resp.Body.Close()
	var session models.CaptureSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	return session
}

// doChunkedRequest sends body without a Content-Length
func doChunkedRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, io.NopCloser(strings.NewReader(body)))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func doRequest(t *testing.T, method, url string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func TestCaptureSessionFlow(t *testing.T) {
	server, outputDir := newTestServer(t)
	session := createSession(t, server.URL)
	sessionURL := server.URL + "/api/sessions/" + session.ID

	files := map[string][]byte{
		"a.png": testPNG(t, 20, 10, 10),
		"b.png": testPNG(t, 12, 18, 60),
		"c.png": testPNG(t, 16, 16, 110),
	}
	resp := uploadFiles(t, sessionURL+"/captures?wait=true", files, []string{"a.png", "b.png", "c.png"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}

	detail := getSession(t, sessionURL)
	if len(detail.Pages) != 3 {
		t.Fatalf("Expected 3 pages, got %d", len(detail.Pages))
	}
	for i, want := range []string{"a.png", "b.png", "c.png"} {
		if detail.Pages[i].Source != want || detail.Pages[i].Ordinal != i+1 {
			t.Errorf("Expected page %d to be %s with ordinal %d, got %s/%d", i, want, i+1, detail.Pages[i].Source, detail.Pages[i].Ordinal)
		}
		if !detail.Pages[i].Enhanced {
			t.Errorf("Expected page %d to be enhanced", i)
		}
	}

	previewURL := server.URL + detail.Pages[1].PreviewURL
	previewResp, err := http.Get(previewURL)
	if err != nil {
		t.Fatalf("preview request failed: %v", err)
	}
	previewResp.Body.Close()
	if previewResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected preview 200, got %d", previewResp.StatusCode)
	}

	resp = doRequest(t, http.MethodDelete, sessionURL+"/captures/1", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected remove 200, got %d", resp.StatusCode)
	}

	previewResp, err = http.Get(previewURL)
	if err != nil {
		t.Fatalf("preview request failed: %v", err)
	}
	previewResp.Body.Close()
	if previewResp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected released preview to 404, got %d", previewResp.StatusCode)
	}

	resp = doRequest(t, http.MethodPost, sessionURL+"/finalize", []byte(`{"merge_into_one": true}`))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected finalize 200, got %d", resp.StatusCode)
	}
	var manifest handoff.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		t.Fatalf("failed to decode manifest: %v", err)
	}
	if !manifest.MergeIntoOne || len(manifest.Pages) != 2 {
		t.Fatalf("Expected 2 merged pages, got %d merge=%v", len(manifest.Pages), manifest.MergeIntoOne)
	}
	if manifest.Pages[0].Source != "a.png" || manifest.Pages[1].Source != "c.png" {
		t.Errorf("Expected [a.png c.png], got [%s %s]", manifest.Pages[0].Source, manifest.Pages[1].Source)
	}
	if _, err := os.Stat(filepath.Join(outputDir, session.ID, "page-002.jpg")); err != nil {
		t.Errorf("Expected delivered page file: %v", err)
	}

	resp = doRequest(t, http.MethodPost, sessionURL+"/finalize", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected second finalize to conflict, got %d", resp.StatusCode)
	}
}

func TestFinalizeSinglePageIgnoresMerge(t *testing.T) {
	server, _ := newTestServer(t)
	session := createSession(t, server.URL)
	sessionURL := server.URL + "/api/sessions/" + session.ID

	resp := uploadFiles(t, sessionURL+"/captures", map[string][]byte{"only.png": testPNG(t, 8, 8, 30)}, []string{"only.png"})
	resp.Body.Close()

	resp = doRequest(t, http.MethodPost, sessionURL+"/finalize", []byte(`{"merge_into_one": true}`))
	defer resp.Body.Close()
	var manifest handoff.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		t.Fatalf("failed to decode manifest: %v", err)
	}
	if manifest.MergeIntoOne {
		t.Error("Expected merge to be false for a single page")
	}
}

func TestChunkedRequestBodies(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doChunkedRequest(t, http.MethodPost, server.URL+"/api/sessions", `{"grayscale": true, "sharpen": false, "auto_adjust": false}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var session models.CaptureSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	want := raster.Options{Grayscale: true}
	if session.Options != want {
		t.Fatalf("Expected options %+v from chunked body, got %+v", want, session.Options)
	}

	sessionURL := server.URL + "/api/sessions/" + session.ID
	files := map[string][]byte{
		"a.png": testPNG(t, 8, 8, 20),
		"b.png": testPNG(t, 8, 8, 80),
	}
	upload := uploadFiles(t, sessionURL+"/captures?wait=true", files, []string{"a.png", "b.png"})
	upload.Body.Close()

	final := doChunkedRequest(t, http.MethodPost, sessionURL+"/finalize", `{"merge_into_one": true}`)
	defer final.Body.Close()
	if final.StatusCode != http.StatusOK {
		t.Fatalf("Expected finalize 200, got %d", final.StatusCode)
	}
	var manifest handoff.Manifest
	if err := json.NewDecoder(final.Body).Decode(&manifest); err != nil {
		t.Fatalf("failed to decode manifest: %v", err)
	}
	if !manifest.MergeIntoOne || len(manifest.Pages) != 2 {
		t.Errorf("Expected 2 merged pages, got %d merge=%v", len(manifest.Pages), manifest.MergeIntoOne)
	}

	bad := doChunkedRequest(t, http.MethodPost, server.URL+"/api/sessions", `{"grayscale":`)
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected truncated JSON to be rejected with 400, got %d", bad.StatusCode)
	}
}

func TestFinalizeRetriesFailedDelivery(t *testing.T) {
	outputDir := t.TempDir()
	sink := &flakySink{failures: 1, next: handoff.NewDirectorySink(outputDir)}
	server := newTestServerWithSink(t, outputDir, sink)
	session := createSession(t, server.URL)
	sessionURL := server.URL + "/api/sessions/" + session.ID

	files := map[string][]byte{
		"a.png": testPNG(t, 8, 8, 20),
		"b.png": testPNG(t, 8, 8, 80),
	}
	upload := uploadFiles(t, sessionURL+"/captures?wait=true", files, []string{"a.png", "b.png"})
	upload.Body.Close()

	resp := doRequest(t, http.MethodPost, sessionURL+"/finalize", []byte(`{"merge_into_one": true}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("Expected failed delivery to return 502, got %d", resp.StatusCode)
	}
	if detail := getSession(t, sessionURL); detail.State != capture.StateCompleted {
		t.Errorf("Expected session to stay completed, got %s", detail.State)
	}

	// The retry ignores its own body and delivers what was finalized.
	resp = doRequest(t, http.MethodPost, sessionURL+"/finalize", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected retried delivery 200, got %d", resp.StatusCode)
	}
	var manifest handoff.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		t.Fatalf("failed to decode manifest: %v", err)
	}
	if !manifest.MergeIntoOne || len(manifest.Pages) != 2 {
		t.Fatalf("Expected 2 merged pages, got %d merge=%v", len(manifest.Pages), manifest.MergeIntoOne)
	}
	if manifest.Pages[0].Source != "a.png" || manifest.Pages[1].Source != "b.png" {
		t.Errorf("Expected [a.png b.png], got [%s %s]", manifest.Pages[0].Source, manifest.Pages[1].Source)
	}
	if _, err := os.Stat(filepath.Join(outputDir, session.ID, "manifest.yaml")); err != nil {
		t.Errorf("Expected delivered manifest: %v", err)
	}

	again := doRequest(t, http.MethodPost, sessionURL+"/finalize", nil)
	again.Body.Close()
	if again.StatusCode != http.StatusConflict {
		t.Errorf("Expected finalize after delivery to conflict, got %d", again.StatusCode)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.calls != 2 {
		t.Errorf("Expected 2 delivery attempts, got %d", sink.calls)
	}
}

func TestFinalizeEmptySessionConflicts(t *testing.T) {
	server, _ := newTestServer(t)
	session := createSession(t, server.URL)

	resp := doRequest(t, http.MethodPost, server.URL+"/api/sessions/"+session.ID+"/finalize", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409, got %d", resp.StatusCode)
	}
}

func TestURLCaptureAndOptions(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(testPNG(t, 10, 10, 90))
	}))
	defer source.Close()

	server, _ := newTestServer(t)
	session := createSession(t, server.URL)
	sessionURL := server.URL + "/api/sessions/" + session.ID

	resp := doRequest(t, http.MethodPut, sessionURL+"/options", []byte(`{"grayscale": true, "sharpen": false, "auto_adjust": false}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected options 200, got %d", resp.StatusCode)
	}

	body := []byte(fmt.Sprintf(`{"image_url": %q}`, source.URL+"/scan.png"))
	resp = doRequest(t, http.MethodPost, sessionURL+"/captures?wait=true", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}

	detail := getSession(t, sessionURL+"?classify=true")
	if !detail.Options.Grayscale || detail.Options.Sharpen || detail.Options.AutoAdjust {
		t.Errorf("Expected grayscale-only options, got %+v", detail.Options)
	}
	if len(detail.Pages) != 1 || detail.Pages[0].Source != "scan.png" {
		t.Fatalf("Expected one page from scan.png, got %+v", detail.Pages)
	}
	if detail.Pages[0].Document == nil {
		t.Error("Expected classification to be reported")
	}
}

func TestResetAndDelete(t *testing.T) {
	server, _ := newTestServer(t)
	session := createSession(t, server.URL)
	sessionURL := server.URL + "/api/sessions/" + session.ID

	resp := uploadFiles(t, sessionURL+"/captures?wait=true", map[string][]byte{"x.png": testPNG(t, 8, 8, 5)}, []string{"x.png"})
	resp.Body.Close()

	resp = doRequest(t, http.MethodPost, sessionURL+"/reset", nil)
	resp.Body.Close()
	if detail := getSession(t, sessionURL); len(detail.Pages) != 0 || detail.State.String() != "empty" {
		t.Errorf("Expected empty session after reset, got %d pages in state %s", len(detail.Pages), detail.State)
	}

	resp = uploadFiles(t, sessionURL+"/captures?wait=true", map[string][]byte{"y.png": testPNG(t, 8, 8, 9)}, []string{"y.png"})
	resp.Body.Close()
	previewURL := server.URL + getSession(t, sessionURL).Pages[0].PreviewURL

	resp = doRequest(t, http.MethodDelete, sessionURL, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, sessionURL, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, previewURL, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected preview of deleted session to 404, got %d", resp.StatusCode)
	}
}

func TestRemoveCaptureErrors(t *testing.T) {
	server, _ := newTestServer(t)
	session := createSession(t, server.URL)
	sessionURL := server.URL + "/api/sessions/" + session.ID

	tests := []struct {
		path string
		code int
	}{
		{path: "/captures/0", code: http.StatusNotFound},
		{path: "/captures/abc", code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp := doRequest(t, http.MethodDelete, sessionURL+tt.path, nil)
		resp.Body.Close()
		if resp.StatusCode != tt.code {
			t.Errorf("DELETE %s: expected %d, got %d", tt.path, tt.code, resp.StatusCode)
		}
	}

	resp := doRequest(t, http.MethodDelete, server.URL+"/api/sessions/missing/captures/0", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", resp.StatusCode)
	}
}
