package tsdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of a rejected response is read for the message.
const maxErrorBody = 4 << 10

// Write posts body to writeURL.
//
// writeURL is the complete endpoint, org, bucket and precision included.
// Any transport error or non-2xx status is returned wrapped in
// ErrWriteFailed; a non-2xx status is a *StatusError.
//
// Parameters:
//   - ctx: Context for cancellation
//   - writeURL: Full /api/v2/write URL
//   - token: API token, sent as "Token <token>" when not empty
//   - body: Newline-terminated line protocol
func (c *Client) Write(ctx context.Context, writeURL, token string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, writeURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Content-Encoding", "identity")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)
	return &StatusError{Code: resp.StatusCode, Message: errorMessage(raw)}
}

// errorMessage extracts the message from an InfluxDB JSON error body.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(raw))
}
