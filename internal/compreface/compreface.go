// Package compreface is a client for a CompreFace-style face recognition
// service. The service is the only source of raw matches; this client owns
// the service's rate contract (minimum call interval, max concurrency) so
// callers never have to think about it.
package compreface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kozaktomas/face-scanner/internal/config"
)

// noFaceErrorCode is the service error code for "No face is found in the
// given image". An expected, common outcome, not a failure.
const noFaceErrorCode = 28

// Box is a face bounding box in pixel coordinates.
type Box struct {
	XMin        float64 `json:"x_min"`
	YMin        float64 `json:"y_min"`
	XMax        float64 `json:"x_max"`
	YMax        float64 `json:"y_max"`
	Probability float64 `json:"probability"`
}

// Match is one recognized subject on one detected face.
type Match struct {
	Subject    string  // subject name as trained in the service
	Similarity float64 // 0-1
	FaceID     string
	Box        Box
}

// RecognizeResult is the outcome of one recognition call.
type RecognizeResult struct {
	Matches       []Match
	FacesDetected int // faces found, including faces without a known subject
}

// Client talks to one CompreFace recognition service.
type Client struct {
	baseURL      *url.URL
	apiKey       string
	httpClient   *http.Client
	maxImageSize int

	// Rate limiting: a concurrency ceiling plus a minimum interval between
	// request starts.
	sem         chan struct{}
	minInterval time.Duration
	mu          sync.Mutex
	nextSlot    time.Time
}

// New creates a recognition client. The gateway defaults carry the rate
// contract and image size limit shipped with the binary.
func New(cfg config.CompreFaceConfig, defaults config.GatewayDefaults) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("COMPREFACE_URL not set")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("COMPREFACE_API_KEY not set")
	}

	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid CompreFace URL: %w", err)
	}

	maxConcurrent := defaults.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	timeout := defaults.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:      parsed,
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: timeout},
		maxImageSize: defaults.MaxImageSize,
		sem:          make(chan struct{}, maxConcurrent),
		minInterval:  defaults.MinInterval,
	}, nil
}

// throttle blocks until a request may start: one concurrency slot plus the
// minimum interval since the previous request start.
func (c *Client) throttle(ctx context.Context) (release func(), err error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	now := time.Now()
	wait := c.nextSlot.Sub(now)
	if wait < 0 {
		wait = 0
	}
	c.nextSlot = now.Add(wait + c.minInterval)
	c.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			<-c.sem
			return nil, ctx.Err()
		}
	}

	return func() { <-c.sem }, nil
}

// serviceError is the CompreFace error envelope.
type serviceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// recognizeResponse mirrors the service's recognize payload. Each result
// entry is one detected face with its candidate subjects, best first.
type recognizeResponse struct {
	Result []struct {
		Box      Box    `json:"box"`
		FaceID   string `json:"face_id,omitempty"`
		Subjects []struct {
			Subject    string  `json:"subject"`
			Similarity float64 `json:"similarity"`
		} `json:"subjects"`
	} `json:"result"`
}

// Recognize uploads an image and returns the subjects recognized on it.
// "No face found" is reported as an empty result, not an error; anything
// else (transport, auth, service failure) is an error.
func (c *Client) Recognize(ctx context.Context, imagePath string) (*RecognizeResult, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", imagePath, err)
	}

	if c.maxImageSize > 0 {
		data = DownscaleIfNeeded(data, c.maxImageSize)
	}

	release, err := c.throttle(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("could not create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("could not write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("could not finalize form: %w", err)
	}

	endpoint := c.baseURL.JoinPath("api/v1/recognition/recognize")
	endpoint.RawQuery = "prediction_count=1"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), &body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var svcErr serviceError
		if json.Unmarshal(respBody, &svcErr) == nil && svcErr.Code == noFaceErrorCode {
			return &RecognizeResult{}, nil
		}
		return nil, fmt.Errorf("recognition failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed recognizeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}

	result := &RecognizeResult{FacesDetected: len(parsed.Result)}
	for i, face := range parsed.Result {
		if len(face.Subjects) == 0 {
			continue
		}
		faceID := face.FaceID
		if faceID == "" {
			faceID = fmt.Sprintf("face-%d", i)
		}
		best := face.Subjects[0]
		result.Matches = append(result.Matches, Match{
			Subject:    best.Subject,
			Similarity: best.Similarity,
			FaceID:     faceID,
			Box:        face.Box,
		})
	}
	return result, nil
}
