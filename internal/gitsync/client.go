package gitsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go_gitsync/internal/config"
)

// TaskClient queues git tasks on the remote worker. The worker executes them
// asynchronously and posts results to the callback endpoint.
type TaskClient interface {
	Queue(ctx context.Context, req *GitCommandRequest) error
}

// HTTPTaskClient is the production TaskClient.
type HTTPTaskClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewHTTPTaskClient creates an HTTPTaskClient
func NewHTTPTaskClient(cfg config.GitTaskConfig) *HTTPTaskClient {
	return &HTTPTaskClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: cfg.WorkerURL,
		token:   cfg.WorkerToken,
	}
}

type queueResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Queue posts a task to the worker's queue endpoint. A non-zero response
// code means the worker rejected the task.
func (c *HTTPTaskClient) Queue(ctx context.Context, req *GitCommandRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal git task request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/git-tasks", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create git task request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("X-Worker-Token", c.token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach git worker: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read git worker response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("git worker returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp queueResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("failed to parse git worker response: %w", err)
	}
	if resp.Code != 0 {
		return fmt.Errorf("git worker rejected task (code %d): %s", resp.Code, resp.Message)
	}
	return nil
}
