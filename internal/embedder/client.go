// Package embedder talks to the external face-embedding provider. The core
// never inspects raw image bytes; it hands a base64 image to the provider
// and gets back a fixed-length encoding vector or a validation failure.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrServiceUnavailable wraps transport or server-side failures of the
// embedding provider. These are terminal for the request; the core never
// retries them.
var ErrServiceUnavailable = errors.New("embedding service unavailable")

// ValidationError is a quality or detection failure reported by the
// provider (no face, multiple faces, face too small, off-center). It is a
// negative result about the image, not a service fault.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "image rejected: " + e.Reason
}

// Encoder produces a face encoding from a base64 image.
type Encoder interface {
	Encode(ctx context.Context, image string) ([]float32, error)
	Validate(ctx context.Context, image string) error
}

// Client calls the embedding sidecar over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Dim     int
	Skip    bool
}

var _ Encoder = (*Client)(nil)

// New creates a client. With skip set, Encode returns a deterministic
// mock vector so the service runs without the sidecar in dev.
func New(baseURL string, dim int, skip bool) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Dim:     dim,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face detection can take a while
		},
	}
}

// Encode extracts the face encoding from a base64 image.
func (c *Client) Encode(ctx context.Context, image string) ([]float32, error) {
	if c.Skip {
		enc := make([]float32, c.Dim)
		for i := range enc {
			enc[i] = float32(i%7) * 0.01
		}
		return enc, nil
	}
	if image == "" {
		return nil, &ValidationError{Reason: "empty image"}
	}

	var out struct {
		Success  bool      `json:"success"`
		Encoding []float32 `json:"encoding"`
		Message  string    `json:"message"`
	}
	if err := c.post(ctx, "/encode", map[string]string{"image": image}, &out); err != nil {
		return nil, err
	}
	if !out.Success || len(out.Encoding) == 0 {
		reason := out.Message
		if reason == "" {
			reason = "no face detected in the image"
		}
		return nil, &ValidationError{Reason: reason}
	}
	return out.Encoding, nil
}

// Validate asks the provider whether the image is usable for recognition
// (single face, large enough, not clipped at the edges).
func (c *Client) Validate(ctx context.Context, image string) error {
	if c.Skip {
		return nil
	}

	var out struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message"`
	}
	if err := c.post(ctx, "/validate", map[string]string{"image": image}, &out); err != nil {
		return err
	}
	if !out.Valid {
		return &ValidationError{Reason: out.Message}
	}
	return nil
}

// Health checks provider availability.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %s", ErrServiceUnavailable, resp.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s: %s", ErrServiceUnavailable, resp.Status, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrServiceUnavailable, err)
	}
	return nil
}
