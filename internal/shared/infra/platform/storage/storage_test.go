package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStorage_PutThenRead(t *testing.T) {
	// Arrange
	s, err := NewFilesystemStorage(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	// Act
	require.NoError(t, s.Put(ctx, "placements/abc/v1.json", []byte(`{"v":1}`), "application/json"))
	require.NoError(t, s.Put(ctx, "placements/abc/v1.json", []byte(`{"v":2}`), "application/json"))

	// Assert: la segunda escritura sustituye a la primera
	data, err := s.Get(ctx, "placements/abc/v1.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(data))

	url, err := s.SignedURL(ctx, "placements/abc/v1.json", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
}

func TestFilesystemStorage_BaseURLAddsExpiry(t *testing.T) {
	s, err := NewFilesystemStorage(t.TempDir(), "https://files.example.com/")
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "a/b.json", []byte(`{}`), "application/json"))

	url, err := s.SignedURL(context.Background(), "a/b.json", time.Hour)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://files.example.com/a/b.json?expires="), url)
}

func TestFilesystemStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewFilesystemStorage(t.TempDir(), "")
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../outside.json", "a/../../b"} {
		assert.ErrorIs(t, s.Put(context.Background(), key, nil, ""), ErrInvalidKey, key)
	}
}

func TestFilesystemStorage_SignedURLOfMissingObjectFails(t *testing.T) {
	s, err := NewFilesystemStorage(t.TempDir(), "")
	require.NoError(t, err)

	_, err = s.SignedURL(context.Background(), "nope.json", time.Minute)

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestS3Storage_Integration(t *testing.T) {
	bucket := os.Getenv("S3_TEST_BUCKET")
	if bucket == "" {
		t.Skip("S3_TEST_BUCKET not set")
	}
	ctx := context.Background()
	s, err := NewS3Storage(ctx, bucket, os.Getenv("AWS_REGION"), os.Getenv("S3_TEST_ENDPOINT"))
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "placementlab-test/check.json", []byte(`{}`), "application/json"))
	url, err := s.SignedURL(ctx, "placementlab-test/check.json", time.Minute)

	require.NoError(t, err)
	assert.Contains(t, url, "X-Amz-Expires")
}
