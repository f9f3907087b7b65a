package assetstore

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/artisan-backend/internal/pipeline"
	"github.com/yungbote/artisan-backend/internal/platform/gcp"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

const assetCacheControl = "public, max-age=31536000"

type gcsStore struct {
	log    *logger.Logger
	bucket gcp.BucketService
}

func NewGCSStore(log *logger.Logger, bucket gcp.BucketService) Store {
	return &gcsStore{log: log.With("service", "GCSAssetStore"), bucket: bucket}
}

func (s *gcsStore) Mode() Mode { return ModeGCS }

func (s *gcsStore) Persist(ctx context.Context, artifactPath, productID string) (string, error) {
	key := ObjectKey(productID)
	if err := validateProductID(productID); err != nil {
		return "", &pipeline.StoreError{Backend: string(ModeGCS), Key: key, Err: err}
	}
	f, err := os.Open(artifactPath)
	if err != nil {
		return "", &pipeline.StoreError{Backend: string(ModeGCS), Key: key, Err: fmt.Errorf("open artifact: %w", err)}
	}
	defer f.Close()

	opts := gcp.UploadOptions{
		ContentType:  pipeline.ArtifactContentType,
		CacheControl: assetCacheControl,
	}
	if err := s.bucket.UploadFile(ctx, key, f, opts); err != nil {
		return "", &pipeline.StoreError{Backend: string(ModeGCS), Key: key, Err: err}
	}
	url := s.bucket.GetPublicURL(key)
	s.log.Info("Artifact uploaded", "bucket", s.bucket.BucketName(), "key", key, "url", url)
	return url, nil
}
