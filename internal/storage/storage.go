// Package storage defines where harvest snapshots are written.
package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// ArtifactStore persists one named snapshot and returns its URI.
type ArtifactStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// MockStore is a testify mock of ArtifactStore.
type MockStore struct {
	mock.Mock
}

// PutObject records the call and drains r so callers can assert on content.
func (m *MockStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(ctx, path, contentType, string(body))
	return args.String(0), args.Error(1) //nolint:wrapcheck
}
