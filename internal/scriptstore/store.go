package scriptstore

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"db-relay/internal/errs"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config reaches the object store used for s3:// targets.
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Secure    bool   `mapstructure:"secure"`
	Region    string `mapstructure:"region"`
}

const contentType = "application/sql"

// Save writes script to target: s3://bucket/key uploads to the object
// store, anything else is a local path.
func Save(ctx context.Context, target string, script []byte, cfg Config) error {
	if bucket, key, ok := parseS3(target); ok {
		return upload(ctx, bucket, key, script, cfg)
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrapf(errs.ErrKindInvalidInput, err, "cannot create the directory of %s", target)
		}
	}
	if err := os.WriteFile(target, script, 0o644); err != nil {
		return errs.Wrapf(errs.ErrKindInvalidInput, err, "cannot write the script %s", target)
	}
	return nil
}

// parseS3 splits s3://bucket/key.
func parseS3(target string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(target, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

func upload(ctx context.Context, bucket, key string, script []byte, cfg Config) error {
	if cfg.Endpoint == "" {
		return errs.Newf(errs.ErrKindInvalidInput, "no object store endpoint configured for s3://%s/%s", bucket, key)
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "failed to create the object store client", err)
	}
	_, err = client.PutObject(ctx, bucket, key, bytes.NewReader(script), int64(len(script)),
		miniogo.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return mapError(err, "failed to upload the script s3://"+bucket+"/"+key)
	}
	return nil
}

func mapError(err error, msg string) *errs.Error {
	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		switch {
		case resp.StatusCode == http.StatusNotFound, resp.Code == "NoSuchBucket":
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case resp.StatusCode == http.StatusBadRequest, resp.Code == "InvalidBucketName", resp.Code == "InvalidObjectName":
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		}
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
