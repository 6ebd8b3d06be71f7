package storage

import (
	"context"
	"os"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MeshContentType is the content type tagged meshes are mirrored with.
const MeshContentType = "model/obj"

// Mirror copies finished artifacts to shared object storage.
type Mirror interface {
	Upload(ctx context.Context, key, localPath string) error
	Remove(ctx context.Context, key string) error
}

// NopMirror is used when no object storage is configured.
type NopMirror struct{}

func (NopMirror) Upload(context.Context, string, string) error { return nil }
func (NopMirror) Remove(context.Context, string) error         { return nil }

// MirrorKey returns the object key a file's tagged mesh is stored under.
func MirrorKey(fileID, stem string) string {
	return path.Join("meshes", fileID, stem+".obj")
}

// MinioOptions configures a MinioMirror.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioMirror uploads tagged meshes to a MinIO bucket.
type MinioMirror struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewMinioMirror initializes a MinIO client and ensures the bucket exists.
func NewMinioMirror(ctx context.Context, opts MinioOptions, logger *zap.Logger) (*MinioMirror, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "check bucket")
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: ""}); err != nil {
			return nil, errors.Wrap(err, "create bucket")
		}
		logger.Info("created bucket", zap.String("bucket", opts.Bucket))
	}
	return &MinioMirror{client: client, bucket: opts.Bucket, logger: logger}, nil
}

// Upload puts the file at localPath under key.
func (m *MinioMirror) Upload(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", localPath)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", localPath)
	}

	info, err := m.client.PutObject(ctx, m.bucket, key, f, stat.Size(), minio.PutObjectOptions{
		ContentType: MeshContentType,
	})
	if err != nil {
		return errors.Wrapf(err, "upload %s", key)
	}
	m.logger.Debug("mirrored artifact",
		zap.String("bucket", m.bucket),
		zap.String("key", key),
		zap.Int64("size", info.Size))
	return nil
}

// Remove deletes key from the bucket. Missing objects are not an error.
func (m *MinioMirror) Remove(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, "remove %s", key)
	}
	return nil
}
