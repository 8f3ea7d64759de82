package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// client wraps http.Client with the base URL and the editor token.
type client struct {
	http    *http.Client
	baseURL string
	token   string
}

func newClient(baseURL, token string, timeout time.Duration) *client {
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
	}
}

func (c *client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

// getJSON performs a GET and decodes a 200 response into v.
func (c *client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// post submits an entry. The outcome is "created", "duplicate" or "failed".
func (c *client) post(ctx context.Context, e entry) (string, ackResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/events", e)
	if err != nil {
		return "failed", ackResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "failed", ackResponse{}, err
	}
	var ack ackResponse
	switch resp.StatusCode {
	case http.StatusCreated:
		if err := json.Unmarshal(body, &ack); err != nil {
			return "failed", ack, err
		}
		return "created", ack, nil
	case http.StatusOK:
		if err := json.Unmarshal(body, &ack); err != nil {
			return "failed", ack, err
		}
		return "duplicate", ack, nil
	default:
		return "failed", ack, fmt.Errorf("POST /events: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
}
