package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T) *storage.Client {
	t.Helper()
	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication(), option.WithEndpoint("http://127.0.0.1:1/storage/v1/"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	_, err = New(newTestClient(t), Config{Bucket: " "})
	require.Error(t, err)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	store, err := New(newTestClient(t), Config{Bucket: "harvest", Prefix: "/daily/"})
	require.NoError(t, err)
	assert.Equal(t, "daily/publicacoes_agorarn_20251009_060000.json", store.ObjectName("publicacoes_agorarn_20251009_060000.json"))

	bare, err := New(newTestClient(t), Config{Bucket: "harvest"})
	require.NoError(t, err)
	assert.Equal(t, "x.json", bare.ObjectName("x.json"))
	assert.NoError(t, bare.Close(), "borrowed clients are not closed")
}

func TestPutObjectRequiresName(t *testing.T) {
	t.Parallel()

	store, err := New(newTestClient(t), Config{Bucket: "harvest"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "", "application/json", nil)
	require.Error(t, err)
}
