package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/pkg/errors"
)

const jsonContentType = "application/json"

// SetRepository stores encoded document sets as objects in one bucket.
type SetRepository struct {
	client *MinIOClient
	logger logging.Logger
}

var _ annotation.SetStore = (*SetRepository)(nil)

// NewSetRepository returns a SetStore over client.
func NewSetRepository(client *MinIOClient, log logging.Logger) *SetRepository {
	return &SetRepository{client: client, logger: logging.OrNop(log)}
}

func (r *SetRepository) objectKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if r.client.config.Prefix == "" {
		return key
	}
	return path.Join(r.client.config.Prefix, key)
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

// Read downloads the object stored under key.
func (r *SetRepository) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := r.client.api.GetObject(ctx, r.client.Bucket(), r.objectKey(key))
	if err != nil {
		return nil, r.readError(err, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, r.readError(err, key)
	}
	return data, nil
}

func (r *SetRepository) readError(err error, key string) error {
	if isNotFound(err) {
		return errors.Wrap(err, errors.ErrCodeDocumentSetNotFound, "document set not found").WithDetail(key)
	}
	return errors.Wrap(err, errors.ErrCodeStorageError, "download failed").WithDetail(key)
}

// Write uploads data under key, replacing any previous object.
func (r *SetRepository) Write(ctx context.Context, key string, data []byte) error {
	objectKey := r.objectKey(key)
	if err := r.client.api.PutObject(ctx, r.client.Bucket(), objectKey, bytes.NewReader(data), int64(len(data)), jsonContentType); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "upload failed").WithDetail(key)
	}
	r.logger.Debug("document set uploaded",
		logging.String(logging.FieldPath, objectKey),
		logging.Int("bytes", len(data)),
	)
	return nil
}

// Exists reports whether an object is stored under key.
func (r *SetRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, err := r.client.api.StatObject(ctx, r.client.Bucket(), r.objectKey(key))
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeStorageError, "stat failed").WithDetail(key)
}

// List returns the keys under prefix in ascending order, relative to the
// configured object prefix.
func (r *SetRepository) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	base := r.client.config.Prefix
	for obj := range r.client.api.ListObjects(ctx, r.client.Bucket(), r.objectKey(prefix)) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "list failed").WithDetail(prefix)
		}
		k := obj.Key
		if base != "" {
			k = strings.TrimPrefix(strings.TrimPrefix(k, base), "/")
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

//Personal.AI order the ending
