// Package wsstore implements the workspace object store: the CSR
// bundle directory layout (meta/, in_edges/, out_edges/, vdata/,
// localid2globalid/, result/) read and written against either local
// disk or a Tencent COS bucket, so a partitioned graph can live in
// object storage and be fetched onto local disk for csrio to read.
// It is grounded on the teacher's internal/storage package (the
// Storage interface and its Local/COS implementations), generalized
// from single-object upload/download calls to whole-workspace
// fetch/push operations over the five-directory bundle tree.
package wsstore

import (
	"context"
	"fmt"
	"io"

	"github.com/graphine/graphine/pkg/engconfig"
)

// Store is the object storage abstraction a workspace is read from and
// written to.
type Store interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	UploadFile(ctx context.Context, key string, localPath string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	DownloadFile(ctx context.Context, key string, localPath string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetURL(key string) string
}

// New builds a Store from cfg, matching the teacher's NewStorage
// factory's type switch.
func New(cfg engconfig.StorageConfig) (Store, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case "cos":
		return NewCOSStore(COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	default:
		return NewLocalStore(cfg.LocalPath)
	}
}

// ValidateConfig validates the storage configuration the same way the
// teacher's ValidateConfig did, generalized to engconfig's field names.
func ValidateConfig(cfg engconfig.StorageConfig) error {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "local"
	}
	if storageType != "cos" && storageType != "local" {
		return fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	if storageType == "cos" {
		if cfg.Bucket == "" {
			return fmt.Errorf("COS bucket is required")
		}
		if cfg.Region == "" {
			return fmt.Errorf("COS region is required")
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return fmt.Errorf("COS credentials are required")
		}
	}
	if storageType == "local" && cfg.LocalPath == "" {
		return fmt.Errorf("local storage path is required")
	}
	return nil
}
