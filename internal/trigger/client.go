// Package trigger calls the remote simulate endpoint and normalizes its
// outcome.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultDetail = "Failed to simulate data"

// Kind tags a trigger failure.
type Kind string

const (
	// KindNetwork means no response was obtained.
	KindNetwork Kind = "network"
	// KindRemote means a response arrived but reported failure or lacked a filename.
	KindRemote Kind = "remote"
)

// Error is a normalized trigger failure.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindNetwork {
		return "Network error: " + e.Message
	}
	return "Error: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// IsNetwork reports whether err is a transport-level trigger failure.
func IsNetwork(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindNetwork
}

// IsRemote reports whether err is a failure reported by the remote side.
func IsRemote(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindRemote
}

// Result is a successful trigger outcome.
type Result struct {
	Filename string `json:"filename"`
}

type responseBody struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Detail   string `json:"detail"`
}

// Client performs the single simulate request.
type Client struct {
	client *resty.Client
	path   string
}

// NewClient creates a trigger client posting to baseURL+path.
func NewClient(baseURL, path string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "energy-pipeline-scheduler")
	return &Client{client: client, path: path}
}

// Trigger sends one simulate request and waits for its response.
func (c *Client) Trigger(ctx context.Context) (Result, error) {
	resp, err := c.client.R().SetContext(ctx).Post(c.path)
	if err != nil {
		return Result{}, &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	}

	var body responseBody
	// Any body shape is accepted; a non-JSON body simply yields no fields.
	_ = json.Unmarshal(resp.Body(), &body)

	if !resp.IsSuccess() {
		detail := body.Detail
		if detail == "" {
			detail = defaultDetail
		}
		return Result{}, &Error{Kind: KindRemote, Message: detail, StatusCode: resp.StatusCode()}
	}

	if body.Filename == "" {
		return Result{}, &Error{
			Kind:       KindRemote,
			Message:    fmt.Sprintf("response missing filename (HTTP %d)", resp.StatusCode()),
			StatusCode: resp.StatusCode(),
		}
	}

	return Result{Filename: body.Filename}, nil
}
