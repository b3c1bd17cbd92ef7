package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"eduops/internal/models"
)

const sha256MetadataKey = "sha256"

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds connection settings for the S3 backend.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint overrides the service URL (MinIO, LocalStack).
	Endpoint     string
	UsePathStyle bool
	Prefix       string
}

// S3Store keeps blobs in an S3 bucket. Each appended chunk is its own object
// under <prefix>partial/<id>/; Finalize concatenates them into
// <prefix>objects/<id> and removes the chunks.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	locks  idLocks
}

// NewS3Store builds a client from the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return NewS3StoreWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// NewS3StoreWithClient wraps a pre-configured client.
func NewS3StoreWithClient(client S3API, cfg S3Config) *S3Store {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: prefix}
}

func (s *S3Store) Backend() string { return BackendS3 }

// Append stores chunk as the next numbered part of id.
func (s *S3Store) Append(ctx context.Context, id string, chunk []byte) (models.Blob, error) {
	if err := ValidateID(id); err != nil {
		return models.Blob{}, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	if _, found, err := s.head(ctx, s.objectKey(id)); err != nil {
		return models.Blob{}, err
	} else if found {
		return models.Blob{}, fmt.Errorf("%w: %s", ErrFinalized, id)
	}

	parts, err := s.listObjects(ctx, s.partialPrefix(id))
	if err != nil {
		return models.Blob{}, err
	}
	key := fmt.Sprintf("%s%08d", s.partialPrefix(id), len(parts))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(chunk),
		ContentLength: aws.Int64(int64(len(chunk))),
	})
	if err != nil {
		return models.Blob{}, fmt.Errorf("put chunk %s: %w", key, err)
	}

	var size int64
	for _, part := range parts {
		size += aws.ToInt64(part.Size)
	}
	return models.Blob{
		ID:             id,
		State:          models.BlobStateAccumulating,
		SizeBytes:      size + int64(len(chunk)),
		StorageBackend: BackendS3,
		ModifiedAt:     time.Now().UTC(),
	}, nil
}

// Finalize concatenates the parts of id in arrival order once their total
// length matches declaredSize.
func (s *S3Store) Finalize(ctx context.Context, id string, declaredSize int64) (models.Blob, error) {
	if err := ValidateID(id); err != nil {
		return models.Blob{}, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	parts, err := s.listObjects(ctx, s.partialPrefix(id))
	if err != nil {
		return models.Blob{}, err
	}
	if len(parts) == 0 {
		return s.refinalize(ctx, id, declaredSize)
	}

	var total int64
	for _, part := range parts {
		total += aws.ToInt64(part.Size)
	}
	if total != declaredSize {
		return models.Blob{}, sizeMismatch(id, total, declaredSize)
	}

	var buf bytes.Buffer
	buf.Grow(int(total))
	h := sha256.New()
	for _, part := range parts {
		if err := s.copyObject(ctx, aws.ToString(part.Key), io.MultiWriter(&buf, h)); err != nil {
			return models.Blob{}, err
		}
	}
	digest := hex.EncodeToString(h.Sum(nil))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(id)),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(total),
		Metadata:      map[string]string{sha256MetadataKey: digest},
	})
	if err != nil {
		return models.Blob{}, fmt.Errorf("put object %s: %w", id, err)
	}
	if err := s.deleteKeys(ctx, parts); err != nil {
		return models.Blob{}, err
	}

	return models.Blob{
		ID:             id,
		State:          models.BlobStateFinalized,
		SHA256:         digest,
		SizeBytes:      total,
		StorageBackend: BackendS3,
		ModifiedAt:     time.Now().UTC(),
	}, nil
}

func (s *S3Store) refinalize(ctx context.Context, id string, declaredSize int64) (models.Blob, error) {
	head, found, err := s.head(ctx, s.objectKey(id))
	if err != nil {
		return models.Blob{}, err
	}
	if !found {
		return models.Blob{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	blob := s.blobFromHead(id, head)
	if blob.SizeBytes != declaredSize {
		return models.Blob{}, sizeMismatch(id, blob.SizeBytes, declaredSize)
	}
	return blob, nil
}

// Open streams the finalized object for id.
func (s *S3Store) Open(ctx context.Context, id string) (io.ReadCloser, models.Blob, error) {
	if err := ValidateID(id); err != nil {
		return nil, models.Blob{}, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, models.Blob{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, models.Blob{}, fmt.Errorf("get object %s: %w", id, err)
	}
	blob := models.Blob{
		ID:             id,
		State:          models.BlobStateFinalized,
		SHA256:         out.Metadata[sha256MetadataKey],
		SizeBytes:      aws.ToInt64(out.ContentLength),
		StorageBackend: BackendS3,
		ModifiedAt:     aws.ToTime(out.LastModified).UTC(),
	}
	return out.Body, blob, nil
}

// Stat reports the current state of id. Unknown ids report BlobStateEmpty.
func (s *S3Store) Stat(ctx context.Context, id string) (models.Blob, error) {
	if err := ValidateID(id); err != nil {
		return models.Blob{}, err
	}
	head, found, err := s.head(ctx, s.objectKey(id))
	if err != nil {
		return models.Blob{}, err
	}
	if found {
		return s.blobFromHead(id, head), nil
	}
	parts, err := s.listObjects(ctx, s.partialPrefix(id))
	if err != nil {
		return models.Blob{}, err
	}
	if len(parts) == 0 {
		return models.Blob{ID: id, State: models.BlobStateEmpty, StorageBackend: BackendS3}, nil
	}
	return accumulate(id, parts), nil
}

// Delete removes the finalized object and any leftover parts.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	parts, err := s.listObjects(ctx, s.partialPrefix(id))
	if err != nil {
		return err
	}
	if err := s.deleteKeys(ctx, parts); err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}

// List scans the bucket prefix and folds parts into one record per id.
func (s *S3Store) List(ctx context.Context) ([]models.Blob, error) {
	objects, err := s.listObjects(ctx, s.prefix+objectsDir+"/")
	if err != nil {
		return nil, err
	}
	blobs := make([]models.Blob, 0, len(objects))
	seen := map[string]struct{}{}
	for _, obj := range objects {
		id := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix+objectsDir+"/")
		if id == "" || strings.Contains(id, "/") {
			continue
		}
		seen[id] = struct{}{}
		blobs = append(blobs, models.Blob{
			ID:             id,
			State:          models.BlobStateFinalized,
			SizeBytes:      aws.ToInt64(obj.Size),
			StorageBackend: BackendS3,
			ModifiedAt:     aws.ToTime(obj.LastModified).UTC(),
		})
	}

	parts, err := s.listObjects(ctx, s.prefix+partialDir+"/")
	if err != nil {
		return nil, err
	}
	grouped := map[string][]types.Object{}
	order := []string{}
	for _, part := range parts {
		rest := strings.TrimPrefix(aws.ToString(part.Key), s.prefix+partialDir+"/")
		id, _, ok := strings.Cut(rest, "/")
		if !ok || id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		if _, ok := grouped[id]; !ok {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], part)
	}
	for _, id := range order {
		blobs = append(blobs, accumulate(id, grouped[id]))
	}
	return blobs, nil
}

func (s *S3Store) objectKey(id string) string {
	return s.prefix + objectsDir + "/" + id
}

func (s *S3Store) partialPrefix(id string) string {
	return s.prefix + partialDir + "/" + id + "/"
}

func (s *S3Store) head(ctx context.Context, key string) (*s3.HeadObjectOutput, bool, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, false, nil
		}
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("head object %s: %w", key, err)
	}
	return out, true, nil
}

// listObjects returns every object under prefix sorted by key.
func (s *S3Store) listObjects(ctx context.Context, prefix string) ([]types.Object, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	var objects []types.Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, err)
		}
		objects = append(objects, page.Contents...)
	}
	sort.Slice(objects, func(i, j int) bool {
		return aws.ToString(objects[i].Key) < aws.ToString(objects[j].Key)
	})
	return objects, nil
}

func (s *S3Store) copyObject(ctx context.Context, key string, w io.Writer) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get chunk %s: %w", key, err)
	}
	defer out.Body.Close()
	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("read chunk %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) deleteKeys(ctx context.Context, objects []types.Object) error {
	for _, obj := range objects {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    obj.Key,
		})
		if err != nil {
			return fmt.Errorf("delete chunk %s: %w", aws.ToString(obj.Key), err)
		}
	}
	return nil
}

func (s *S3Store) blobFromHead(id string, head *s3.HeadObjectOutput) models.Blob {
	return models.Blob{
		ID:             id,
		State:          models.BlobStateFinalized,
		SHA256:         head.Metadata[sha256MetadataKey],
		SizeBytes:      aws.ToInt64(head.ContentLength),
		StorageBackend: BackendS3,
		ModifiedAt:     aws.ToTime(head.LastModified).UTC(),
	}
}

func accumulate(id string, parts []types.Object) models.Blob {
	blob := models.Blob{ID: id, State: models.BlobStateAccumulating, StorageBackend: BackendS3}
	for _, part := range parts {
		blob.SizeBytes += aws.ToInt64(part.Size)
		if modified := aws.ToTime(part.LastModified).UTC(); modified.After(blob.ModifiedAt) {
			blob.ModifiedAt = modified
		}
	}
	return blob
}
