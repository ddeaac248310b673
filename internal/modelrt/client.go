package modelrt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// #region client-struct

// Client is an HTTP client for the inference runtime. The controller never
// inspects model internals; everything it needs crosses this boundary.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a runtime client. timeout bounds every request; the
// optimizer and validator calls are the only controller operations allowed to
// take this long.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// #endregion client-struct

// #region infer

// Infer runs a single generation and returns the output plus structural
// telemetry for this request.
func (c *Client) Infer(ctx context.Context, text string) (InferResult, error) {
	var result InferResult
	err := c.post(ctx, "/v1/infer", map[string]string{"text": text}, &result)
	if err != nil {
		return InferResult{}, fmt.Errorf("infer: %w", err)
	}
	return result, nil
}

// #endregion infer

// #region embed

// Embed returns the runtime's embedding vector for text. Satisfies
// drift.Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	var result struct {
		Embedding []float64 `json:"embedding"`
	}
	err := c.post(ctx, "/v1/embed", map[string]string{"text": text}, &result)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return result.Embedding, nil
}

// #endregion embed

// #region recompile

// Recompile asks the runtime's optimizer to build a new candidate version
// with the given blocks pruned. Returns the diff and the new version id.
func (c *Client) Recompile(ctx context.Context, pruneBlocks []string) (ArchitectureDiff, string, error) {
	var result struct {
		Diff      ArchitectureDiff `json:"diff"`
		VersionID string           `json:"version_id"`
	}
	err := c.post(ctx, "/v1/recompile", map[string][]string{"prune_blocks": pruneBlocks}, &result)
	if err != nil {
		return ArchitectureDiff{}, "", fmt.Errorf("recompile: %w", err)
	}
	if result.VersionID == "" {
		result.VersionID = result.Diff.VersionID
	}
	return result.Diff, result.VersionID, nil
}

// #endregion recompile

// #region validate

// Validate runs the sandbox suite against a candidate version.
func (c *Client) Validate(ctx context.Context, versionID string) (ValidationReport, error) {
	var report ValidationReport
	err := c.post(ctx, "/v1/validate", map[string]string{"version_id": versionID}, &report)
	if err != nil {
		return ValidationReport{}, fmt.Errorf("validate: %w", err)
	}
	return report, nil
}

// #endregion validate

// #region health

// Health checks runtime liveness.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("runtime returned status %d", resp.StatusCode)
	}
	return nil
}

// #endregion health

// #region post-helper

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("runtime returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// #endregion post-helper
