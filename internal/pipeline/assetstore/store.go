// Package assetstore makes rendered artifacts publicly reachable, either in
// the remote object bucket or in a local static directory served by the API.
package assetstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/artisan-backend/internal/pipeline"
)

type Mode string

const (
	ModeGCS   Mode = "gcs"
	ModeLocal Mode = "local"
)

// Store persists one artifact under a key derived from the product id and
// returns its public URL. Persisting the same id again replaces the previous
// artifact.
type Store interface {
	Persist(ctx context.Context, artifactPath, productID string) (string, error)
	Mode() Mode
}

var errUnsafeProductID = errors.New("product id is not usable as an object name")

// ObjectKey is the remote key for productID.
func ObjectKey(productID string) string {
	return "products/" + FileName(productID)
}

// FileName is the artifact name used by both backends.
func FileName(productID string) string {
	return productID + pipeline.ArtifactExt
}

func validateProductID(productID string) error {
	id := strings.TrimSpace(productID)
	if id == "" || id != productID {
		return fmt.Errorf("%w: %q", errUnsafeProductID, productID)
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", errUnsafeProductID, productID)
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: %q", errUnsafeProductID, productID)
		}
	}
	return nil
}
