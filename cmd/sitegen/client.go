// ABOUTME: Minimal JSON client for the sitegen API used by the project and edit commands.
// ABOUTME: Errors come back as *bgmanager.StatusError decoded from the server's error body.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389-research/sitegen/bgmanager"
	"github.com/2389-research/sitegen/config"
)

// clientFlags locate the server and authenticate against it.
type clientFlags struct {
	server string
	token  string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", "", "sitegen server URL (default: config publicBaseURL)")
	cmd.Flags().StringVar(&f.token, "token", "", "API token (default: $SITEGEN_TOKEN)")
}

// resolve fills unset flags from the environment and configuration.
func (f *clientFlags) resolve(cfg *config.Config) error {
	if f.server == "" {
		f.server = cfg.PublicBaseURL
	}
	if f.token == "" {
		f.token = os.Getenv("SITEGEN_TOKEN")
	}
	if f.token == "" {
		return fmt.Errorf("no API token: pass --token or set SITEGEN_TOKEN")
	}
	return nil
}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(f *clientFlags) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(f.server, "/"),
		token:   f.token,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// do sends body as JSON and decodes a 2xx response into out when non-nil.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return bgmanager.DecodeStatusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
