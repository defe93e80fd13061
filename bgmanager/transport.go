// ABOUTME: HTTP transport that opens a generation stream on the sitegen server.
// ABOUTME: Non-2xx responses are decoded from the server's JSON error body into *StatusError.
package bgmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/2389-research/sitegen/pipeline"
)

// StatusError is a non-2xx response from the sitegen API.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("request failed (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
}

// HTTPTransport POSTs generation requests to BaseURL with a bearer token.
type HTTPTransport struct {
	BaseURL string
	Token   string
	// Client defaults to a client without a timeout, since streams are long-lived.
	Client *http.Client
}

type generateRequest struct {
	ProjectID string          `json:"projectId"`
	Config    pipeline.Config `json:"config"`
}

// Open starts a generation and returns the event stream body.
func (t *HTTPTransport) Open(ctx context.Context, projectID string, cfg pipeline.Config) (io.ReadCloser, error) {
	data, err := json.Marshal(generateRequest{ProjectID: projectID, Config: cfg})
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	endpoint := strings.TrimRight(t.BaseURL, "/") + "/api/projects/" + url.PathEscape(projectID) + "/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}

	client := t.Client
	if client == nil {
		client = &http.Client{}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, DecodeStatusError(resp)
	}
	return resp.Body, nil
}

// DecodeStatusError reads a sitegen API error body from a non-2xx response.
func DecodeStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	se := &StatusError{StatusCode: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		se.Message, se.Code = payload.Error, payload.Code
		return se
	}
	se.Message = strings.TrimSpace(string(body))
	if se.Message == "" {
		se.Message = http.StatusText(resp.StatusCode)
	}
	return se
}
