package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnellens/funnellens/internal/config"
)

func TestLocalArchive_Put(t *testing.T) {
	root := t.TempDir()
	a, err := NewLocalArchive(root)
	require.NoError(t, err)

	require.NoError(t, a.Put(context.Background(), "imports/c1/abc.csv", []byte("platform,views\n")))

	data, err := os.ReadFile(filepath.Join(root, "imports", "c1", "abc.csv"))
	require.NoError(t, err)
	assert.Equal(t, "platform,views\n", string(data))
}

func TestLocalArchive_RejectsEscapingKeys(t *testing.T) {
	a, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, a.Put(context.Background(), "../outside.csv", nil))
	assert.Error(t, a.Put(context.Background(), "", nil))
}

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Archive_Put(t *testing.T) {
	fake := &fakeS3{}
	a := newS3Archive(fake, "lens-imports", "prod")

	require.NoError(t, a.Put(context.Background(), "imports/c1/abc.csv", []byte("x")))
	assert.Equal(t, "lens-imports", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "prod/imports/c1/abc.csv", aws.ToString(fake.in.Key))
	assert.Equal(t, "text/csv", aws.ToString(fake.in.ContentType))
	assert.Equal(t, []byte("x"), fake.body)
}

func TestS3Archive_PutError(t *testing.T) {
	boom := errors.New("access denied")
	a := newS3Archive(&fakeS3{err: boom}, "b", "")
	assert.ErrorIs(t, a.Put(context.Background(), "k", nil), boom)
}

func TestNew_Local(t *testing.T) {
	a, err := New(context.Background(), config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalArchive{}, a)

	_, err = New(context.Background(), config.StorageConfig{Type: "gcs"})
	assert.ErrorContains(t, err, "unknown storage type")
}
