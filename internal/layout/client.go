// Package layout queries the optional layout-understanding sidecar for
// document region hints. The service is strictly best effort: when it is
// unconfigured, unreachable, or slow, callers proceed with no hints.
package layout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Region is one labeled area the service found on a page.
type Region struct {
	Label string  `json:"label"` // e.g. "header", "invoice_number", "item_table"
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Client talks to the layout service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a layout client. An empty baseURL disables the client;
// Hints then always returns no hints.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Enabled reports whether a service endpoint is configured.
func (c *Client) Enabled() bool { return c.baseURL != "" }

// Hints analyzes a page image and renders the discovered regions as prompt
// guidance. Every failure path returns empty hints and logs at debug level;
// the tier above decides nothing based on layout errors.
func (c *Client) Hints(ctx context.Context, imagePNG []byte) string {
	if !c.Enabled() || len(imagePNG) == 0 {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/analyze", bytes.NewReader(imagePNG))
	if err != nil {
		c.logger.Debug("layout request build failed", zap.Error(err))
		return ""
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("layout service unreachable", zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("layout service error", zap.Int("status", resp.StatusCode))
		return ""
	}

	var body struct {
		Regions []Region `json:"regions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Debug("layout response unreadable", zap.Error(err))
		return ""
	}
	return renderHints(body.Regions)
}

// renderHints formats regions for prompt inclusion in document order.
func renderHints(regions []Region) string {
	var b strings.Builder
	for _, r := range regions {
		if r.Label == "" || r.Text == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", r.Label, r.Text)
	}
	return b.String()
}
