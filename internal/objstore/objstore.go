// Package objstore stores simulated data files in a local directory or an
// S3-compatible bucket.
package objstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/containerd/errdefs"
)

// FileStore reads and writes named data files.
type FileStore interface {
	// Put stores data under name, replacing any existing file.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the file stored under name. Missing files yield an error
	// matching errdefs.IsNotFound.
	Get(ctx context.Context, name string) ([]byte, error)
}

// validateName rejects names that could escape the store's namespace.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid file name %q: %w", name, errdefs.ErrInvalidArgument)
	}
	return nil
}

func notFound(name string) error {
	return fmt.Errorf("file %q: %w", name, errdefs.ErrNotFound)
}
