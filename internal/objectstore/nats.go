package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore keeps objects in a JetStream object store bucket.
type NATSStore struct {
	store   jetstream.ObjectStore
	baseURL string
}

func NewNATSStore(ctx context.Context, js jetstream.JetStream, bucket, baseURL string) (*NATSStore, error) {
	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Profile pictures",
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("internal/objectstore: failed to create/update bucket [%s]: %w", bucket, err)
	}
	return &NATSStore{store: store, baseURL: baseURL}, nil
}

func (s *NATSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.store.Put(ctx, jetstream.ObjectMeta{
		Name:     key,
		Metadata: map[string]string{metaContentType: contentType},
	}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("internal/objectstore: failed to put [%s]: %w", key, err)
	}
	return nil
}

func (s *NATSStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	info, err := s.store.GetInfo(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("internal/objectstore: failed to stat [%s]: %w", key, err)
	}

	data, err := s.store.GetBytes(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("internal/objectstore: failed to get [%s]: %w", key, err)
	}
	return data, info.Metadata[metaContentType], nil
}

func (s *NATSStore) Delete(ctx context.Context, key string) error {
	err := s.store.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("internal/objectstore: failed to delete [%s]: %w", key, err)
	}
	return nil
}

func (s *NATSStore) PublicURL(ctx context.Context, key string) (string, error) {
	return publicURL(s.baseURL, key)
}
