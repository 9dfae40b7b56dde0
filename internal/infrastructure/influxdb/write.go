package influxdb

import (
	"context"
	"fmt"
	"strings"
)

// Write sends pre-rendered line protocol to org and bucket and waits for
// the server's answer.
//
// Parameters:
//   - ctx: Context for cancellation
//   - org: Organisation name
//   - bucket: Bucket name
//   - body: Newline-separated line protocol with second timestamps
//
// Returns:
//   - error: ErrNotConnected after Close, otherwise ErrWriteFailed wrapping the cause
func (c *Client) Write(ctx context.Context, org, bucket string, body []byte) error {
	w, err := c.writer(org, bucket)
	if err != nil {
		return err
	}

	lines := splitLines(body)
	if len(lines) == 0 {
		return nil
	}

	if err := w.WriteRecord(ctx, lines...); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// splitLines breaks body into non-empty records without their newlines.
func splitLines(body []byte) []string {
	parts := strings.Split(string(body), "\n")
	lines := parts[:0]
	for _, p := range parts {
		if p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}
