package trigger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost || r.URL.Path != "/simulatedata" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTriggerSuccess(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"status":"success","filename":"energy_data_1.json"}`)
	c := NewClient(srv.URL+"/", "/simulatedata", time.Second)

	res, err := c.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "energy_data_1.json", res.Filename)
	assert.Equal(t, 1, *calls)
}

func TestTriggerRemoteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"detail", http.StatusInternalServerError, `{"detail":"bucket unavailable"}`, "Error: bucket unavailable"},
		{"no detail", http.StatusBadGateway, `{}`, "Error: Failed to simulate data"},
		{"non-json", http.StatusServiceUnavailable, `<html>down</html>`, "Error: Failed to simulate data"},
		{"missing filename", http.StatusOK, `{"status":"success","filename":null}`, "Error: response missing filename (HTTP 200)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.status, tt.body)
			c := NewClient(srv.URL, "/simulatedata", time.Second)

			_, err := c.Trigger(context.Background())
			require.Error(t, err)
			assert.True(t, IsRemote(err))
			assert.False(t, IsNetwork(err))
			assert.Equal(t, tt.message, err.Error())

			var te *Error
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.status, te.StatusCode)
		})
	}
}

func TestTriggerNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, "/simulatedata", time.Second)
	_, err := c.Trigger(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.True(t, strings.HasPrefix(err.Error(), "Network error: "))
}

func TestTriggerTimeoutIsNetworkError(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, "/simulatedata", 50*time.Millisecond)
	_, err := c.Trigger(context.Background())
	assert.True(t, IsNetwork(err))
}
