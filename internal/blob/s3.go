package blob

import (
	"context"

	infraS3 "sbomcore/internal/infra/blob/s3"
)

// S3Config configures the S3 driver.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// OpenS3FromEnv constructs an S3 store using environment variables:
//
//	SBOMCORE_BLOB_S3_BUCKET (required), SBOMCORE_BLOB_S3_REGION (default us-east-1),
//	SBOMCORE_BLOB_S3_ENDPOINT (optional, MinIO), SBOMCORE_BLOB_S3_PATH_STYLE=true|false.
func OpenS3FromEnv(ctx context.Context) (Store, error) {
	return infraS3.OpenFromEnv(ctx)
}

// NewMockS3ForTests exposes the in-process S3 fake for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
