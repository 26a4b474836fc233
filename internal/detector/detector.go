package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/codewithmutahir/timeclock/internal/config"
	"github.com/codewithmutahir/timeclock/internal/facematch"
)

// Detection is the result of running the face detector on a single frame.
// Score is the detector's confidence for the best face found in the frame.
type Detection struct {
	Score      float64
	Descriptor []float32
}

// FaceDetector finds a single face in an encoded image frame and computes
// its descriptor. Implementations return (nil, nil) when no face scored
// above the configured threshold - absence of a face is not an error.
type FaceDetector interface {
	Detect(ctx context.Context, frame []byte) (*Detection, error)
}

// HTTPDetector talks to the face detection service over HTTP.
type HTTPDetector struct {
	baseURL        string
	inputSize      int
	scoreThreshold float64
	client         *http.Client
}

// NewHTTPDetector creates a detector client for the configured service.
func NewHTTPDetector(cfg *config.DetectorConfig) *HTTPDetector {
	return &HTTPDetector{
		baseURL:        strings.TrimSuffix(cfg.URL, "/"),
		inputSize:      cfg.InputSize,
		scoreThreshold: cfg.ScoreThreshold,
		client:         &http.Client{Timeout: cfg.Timeout},
	}
}

// detectResponse represents the response from the detection service.
type detectResponse struct {
	Faces []struct {
		Score      float64   `json:"score"`
		Descriptor []float32 `json:"descriptor"`
	} `json:"faces"`
}

// Detect posts the frame to the detection service and returns the best face,
// or nil when the service found none above the score threshold. Frames are
// downscaled before upload so kiosk cameras can push full-resolution images.
func (d *HTTPDetector) Detect(ctx context.Context, frame []byte) (*Detection, error) {
	scaled, err := ResizeFrame(frame, d.inputSize)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare frame: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("frame", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(scaled); err != nil {
		return nil, fmt.Errorf("failed to write frame data: %w", err)
	}
	if err := writer.WriteField("score_threshold", fmt.Sprintf("%g", d.scoreThreshold)); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/detect", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector error (status %d): %s", resp.StatusCode, string(body))
	}

	var detResp detectResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var best *Detection
	for _, face := range detResp.Faces {
		if face.Score < d.scoreThreshold {
			continue
		}
		if len(face.Descriptor) != facematch.DescriptorLength {
			return nil, fmt.Errorf("detector returned descriptor of length %d, expected %d",
				len(face.Descriptor), facematch.DescriptorLength)
		}
		if best == nil || face.Score > best.Score {
			best = &Detection{Score: face.Score, Descriptor: face.Descriptor}
		}
	}
	return best, nil
}
