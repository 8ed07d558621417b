package objstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutGet(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "files")
	s, err := NewLocal(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "energy_data_1.json", []byte(`[{"site_id":"site_alpha"}]`)))
	require.NoError(t, s.Put(ctx, "energy_data_1.json", []byte(`[]`)))

	data, err := s.Get(ctx, "energy_data_1.json")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestLocalStoreNotFound(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "missing.json")
	assert.True(t, errdefs.IsNotFound(err))
}

func TestLocalStoreRejectsPathNames(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../etc/passwd", `dir\file.json`, "a/b.json"} {
		_, err := s.Get(ctx, name)
		assert.True(t, errdefs.IsInvalidArgument(err), "get %q", name)
		assert.True(t, errdefs.IsInvalidArgument(s.Put(ctx, name, nil)), "put %q", name)
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		in       string
		useSSL   bool
		endpoint string
		secure   bool
	}{
		{"https://s3.amazonaws.com", false, "s3.amazonaws.com", true},
		{"http://localhost:9000/", true, "localhost:9000", false},
		{"minio:9000", false, "minio:9000", false},
		{"minio:9000", true, "minio:9000", true},
	}
	for _, tt := range tests {
		endpoint, secure := splitEndpoint(tt.in, tt.useSSL)
		assert.Equal(t, tt.endpoint, endpoint, tt.in)
		assert.Equal(t, tt.secure, secure, tt.in)
	}
}

func TestNewMinioDoesNotDial(t *testing.T) {
	s, err := NewMinio(MinioConfig{
		Endpoint:  "http://127.0.0.1:1",
		Bucket:    "energy",
		Region:    "us-east-1",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "../escape")
	assert.True(t, errdefs.IsInvalidArgument(err))
}
