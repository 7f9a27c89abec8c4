package compreface

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-scanner/internal/config"
)

func newTestClient(t *testing.T, serverURL string, maxConcurrent int, minInterval time.Duration) *Client {
	t.Helper()
	c, err := New(
		config.CompreFaceConfig{URL: serverURL, APIKey: "test-key"},
		config.GatewayDefaults{
			MinInterval:   minInterval,
			MaxConcurrent: maxConcurrent,
			Timeout:       5 * time.Second,
		},
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.jpg")
	if err := os.WriteFile(path, []byte("fake image bytes"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRecognize_ParsesMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("expected multipart upload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"result": [
				{
					"box": {"x_min": 10, "y_min": 20, "x_max": 110, "y_max": 120, "probability": 0.99},
					"subjects": [
						{"subject": "jan-novak", "similarity": 0.97},
						{"subject": "someone-else", "similarity": 0.41}
					]
				},
				{
					"box": {"x_min": 200, "y_min": 20, "x_max": 300, "y_max": 120, "probability": 0.95},
					"subjects": []
				}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 1, 0)
	result, err := client.Recognize(context.Background(), writeTestImage(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.FacesDetected != 2 {
		t.Errorf("expected 2 faces detected, got %d", result.FacesDetected)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("expected 1 match (best subject per face), got %d", len(result.Matches))
	}
	m := result.Matches[0]
	if m.Subject != "jan-novak" {
		t.Errorf("expected best subject jan-novak, got %s", m.Subject)
	}
	if m.Similarity != 0.97 {
		t.Errorf("expected similarity 0.97, got %f", m.Similarity)
	}
	if m.Box.XMin != 10 || m.Box.YMax != 120 {
		t.Errorf("unexpected box: %+v", m.Box)
	}
	if m.FaceID == "" {
		t.Error("expected a face identifier")
	}
}

func TestRecognize_NoFaceIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "No face is found in the given image", "code": 28}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 1, 0)
	result, err := client.Recognize(context.Background(), writeTestImage(t))
	if err != nil {
		t.Fatalf("no-face outcome must not be an error, got: %v", err)
	}
	if len(result.Matches) != 0 || result.FacesDetected != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestRecognize_ServiceErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Missing header: x-api-key", "code": 9}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 1, 0)
	_, err := client.Recognize(context.Background(), writeTestImage(t))
	if err == nil {
		t.Fatal("expected error for auth failure")
	}
}

func TestRecognize_MissingImage(t *testing.T) {
	client := newTestClient(t, "http://localhost:1", 1, 0)
	_, err := client.Recognize(context.Background(), "/does/not/exist.jpg")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRecognize_ConcurrencyCeiling(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()

		w.Write([]byte(`{"result": []}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2, 0)
	path := writeTestImage(t)

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.Recognize(context.Background(), path)
		}()
	}
	wg.Wait()

	if maxInFlight > 2 {
		t.Errorf("concurrency ceiling exceeded: %d requests in flight", maxInFlight)
	}
}

func TestRecognize_MinInterval(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": []}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5, 30*time.Millisecond)
	path := writeTestImage(t)

	start := time.Now()
	for range 3 {
		if _, err := client.Recognize(context.Background(), path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Three calls with a 30ms floor between starts need at least 60ms.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("calls not spaced by minimum interval, elapsed %v", elapsed)
	}
}

func TestDownscaleIfNeeded(t *testing.T) {
	// Encode a 100x50 JPEG.
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	original := buf.Bytes()

	// Within bounds: unchanged.
	if got := DownscaleIfNeeded(original, 200); !bytes.Equal(got, original) {
		t.Error("image within bounds must pass through unchanged")
	}

	// Over bounds: resized with aspect ratio kept.
	resized := DownscaleIfNeeded(original, 40)
	decoded, _, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("failed to decode resized image: %v", err)
	}
	if decoded.Bounds().Dx() != 40 || decoded.Bounds().Dy() != 20 {
		t.Errorf("expected 40x20, got %dx%d", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}

	// Undecodable data passes through.
	junk := []byte("not an image")
	if got := DownscaleIfNeeded(junk, 40); !bytes.Equal(got, junk) {
		t.Error("undecodable data must pass through unchanged")
	}
}
