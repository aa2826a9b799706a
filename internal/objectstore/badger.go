package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps objects in an embedded BadgerDB, for running without a
// NATS server. Each object is stored as two keys:
// "object:{key}:data" and "object:{key}:type".
type BadgerStore struct {
	db      *badger.DB
	baseURL string
}

func NewBadgerStore(db *badger.DB, baseURL string) *BadgerStore {
	return &BadgerStore{db: db, baseURL: baseURL}
}

func dataKey(key string) []byte {
	return []byte("object:" + key + ":data")
}

func typeKey(key string) []byte {
	return []byte("object:" + key + ":type")
}

func (s *BadgerStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dataKey(key), data); err != nil {
			return err
		}
		return txn.Set(typeKey(key), []byte(contentType))
	})
	if err != nil {
		return fmt.Errorf("internal/objectstore: failed to put [%s]: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	var data, contentType []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dataKey(key))
		if err != nil {
			return err
		}
		if data, err = item.ValueCopy(nil); err != nil {
			return err
		}

		item, err = txn.Get(typeKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		contentType, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("internal/objectstore: failed to get [%s]: %w", key, err)
	}
	return data, string(contentType), nil
}

func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(dataKey(key)); err != nil {
			return err
		}
		if err := txn.Delete(dataKey(key)); err != nil {
			return err
		}
		return txn.Delete(typeKey(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("internal/objectstore: failed to delete [%s]: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) PublicURL(ctx context.Context, key string) (string, error) {
	return publicURL(s.baseURL, key)
}
