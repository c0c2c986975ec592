package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Values of storage.driver.
const (
	DriverS3    = "s3"
	DriverMinIO = "minio"
	DriverGCS   = "gcs"
)

var ErrUnknownDriver = errors.New("storage: unknown driver")

// FactoryOptions carries the settings of every driver; only the selected
// driver's block is read.
type FactoryOptions struct {
	S3    S3Options
	MinIO MinIOOptions
	GCS   GCSOptions
}

// NewFromDriver opens the bucket client the allow-list is loaded through.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMinIO:
		return NewMinIO(opts.MinIO)
	case DriverGCS:
		return NewGCS(ctx, opts.GCS)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
