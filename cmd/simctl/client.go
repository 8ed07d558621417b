package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

// apiClient talks to the dashboard's /api/simulate routes.
type apiClient struct {
	client *resty.Client
}

func newAPIClient(cmd *cobra.Command) *apiClient {
	server, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &apiClient{
		client: resty.New().
			SetBaseURL(strings.TrimRight(server, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "simctl"),
	}
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	StatusCode int
	Message    string
	RetryAfter string
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	if e.RetryAfter != "" {
		msg += fmt.Sprintf(" (retry after %ss)", e.RetryAfter)
	}
	return msg
}

func (c *apiClient) do(cmd *cobra.Command, method, path string, out interface{}) error {
	resp, err := c.client.R().
		SetContext(cmd.Context()).
		Execute(method, path)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}

	if !resp.IsSuccess() {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(resp.Body(), &body)
		if body.Error == "" {
			body.Error = strings.TrimSpace(resp.String())
		}
		return &apiError{
			StatusCode: resp.StatusCode(),
			Message:    body.Error,
			RetryAfter: resp.Header().Get("Retry-After"),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
