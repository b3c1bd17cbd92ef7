package blobstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduops/internal/models"
)

type memObject struct {
	data     []byte
	metadata map[string]string
	modified time.Time
}

// memS3 is an in-memory bucket implementing S3API.
type memS3 struct {
	mu      sync.Mutex
	objects map[string]memObject
	puts    int
}

func newMemS3() *memS3 {
	return &memS3{objects: map[string]memObject{}}
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.objects[aws.ToString(in.Key)] = memObject{data: data, metadata: in.Metadata, modified: time.Now()}
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: aws.Int64(int64(len(obj.data))),
		Metadata:      obj.metadata,
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (m *memS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		Metadata:      obj.metadata,
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (m *memS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *memS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	keys := []string{}
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		obj := m.objects[key]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
		})
	}
	return out, nil
}

func TestS3StoreChunkedRoundTrip(t *testing.T) {
	fake := newMemS3()
	st := NewS3StoreWithClient(fake, S3Config{Bucket: "attachments", Prefix: "/eduops/"})
	ctx := context.Background()

	for _, chunk := range []string{"ab", "cd", "e"} {
		_, err := st.Append(ctx, "att-s3", []byte(chunk))
		require.NoError(t, err)
	}

	stat, err := st.Stat(ctx, "att-s3")
	require.NoError(t, err)
	assert.Equal(t, models.BlobStateAccumulating, stat.State)
	assert.EqualValues(t, 5, stat.SizeBytes)

	_, err = st.Finalize(ctx, "att-s3", 6)
	require.ErrorIs(t, err, ErrSizeMismatch)

	blob, err := st.Finalize(ctx, "att-s3", 5)
	require.NoError(t, err)
	assert.Equal(t, models.BlobStateFinalized, blob.State)
	assert.NotEmpty(t, blob.SHA256)

	for key := range fake.objects {
		assert.Falsef(t, strings.Contains(key, "/partial/"), "chunk %s left behind after finalize", key)
	}

	rc, info, err := st.Open(ctx, "att-s3")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "abcde", string(data))
	assert.Equal(t, blob.SHA256, info.SHA256)

	again, err := st.Finalize(ctx, "att-s3", 5)
	require.NoError(t, err)
	assert.Equal(t, blob.SHA256, again.SHA256)

	_, err = st.Append(ctx, "att-s3", []byte("x"))
	require.ErrorIs(t, err, ErrFinalized)
}

func TestS3StoreOpenMissing(t *testing.T) {
	st := NewS3StoreWithClient(newMemS3(), S3Config{Bucket: "attachments"})
	_, _, err := st.Open(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = st.Finalize(context.Background(), "missing", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestS3StoreListAndDelete(t *testing.T) {
	st := NewS3StoreWithClient(newMemS3(), S3Config{Bucket: "attachments", Prefix: "p"})
	ctx := context.Background()

	_, err := st.Append(ctx, "done", []byte("1"))
	require.NoError(t, err)
	_, err = st.Finalize(ctx, "done", 1)
	require.NoError(t, err)
	_, err = st.Append(ctx, "half", []byte("22"))
	require.NoError(t, err)
	_, err = st.Append(ctx, "half", []byte("3"))
	require.NoError(t, err)

	blobs, err := st.List(ctx)
	require.NoError(t, err)
	got := map[string]models.Blob{}
	for _, b := range blobs {
		got[b.ID] = b
	}
	require.Len(t, got, 2)
	assert.Equal(t, models.BlobStateFinalized, got["done"].State)
	assert.Equal(t, models.BlobStateAccumulating, got["half"].State)
	assert.EqualValues(t, 3, got["half"].SizeBytes)

	require.NoError(t, st.Delete(ctx, "half"))
	require.NoError(t, st.Delete(ctx, "done"))
	require.NoError(t, st.Delete(ctx, "done"))

	blobs, err = st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Options{Backend: "ftp"})
	require.Error(t, err)

	st, err := New(context.Background(), Options{Root: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, st.Backend())
}
