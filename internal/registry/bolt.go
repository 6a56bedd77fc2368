package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketDocs = []byte("documents")
	bucketMeta = []byte("meta")

	keyActive = []byte("active_collection")
)

// Bolt is a Registry persisted in a bbolt file.
type Bolt struct {
	db *bbolt.DB
}

// DefaultPath returns ~/.ragchat/registry.db, creating the directory if needed.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("registry: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("registry: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "registry.db"), nil
}

// OpenBolt opens (or creates) the registry at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("registry: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDocs); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registry: create buckets: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Put implements Registry.
func (b *Bolt) Put(_ context.Context, doc Document) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(bucketDocs)
		var old Document
		if data := bk.Get([]byte(doc.Source)); data != nil {
			if err := json.Unmarshal(data, &old); err != nil {
				return err
			}
		}
		data, err := json.Marshal(merge(old, doc))
		if err != nil {
			return err
		}
		return bk.Put([]byte(doc.Source), data)
	})
	if err != nil {
		return fmt.Errorf("registry: put %s: %w", doc.Source, err)
	}
	return nil
}

// List implements Registry.
func (b *Bolt) List(context.Context) ([]Document, error) {
	var docs []Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(_, v []byte) error {
			var d Document
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			docs = append(docs, d)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	sortDocuments(docs)
	return docs, nil
}

// Count implements Registry.
func (b *Bolt) Count(context.Context) (int, error) {
	var n int
	err := b.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketDocs).Stats().KeyN
		return nil
	})
	return n, err
}

// ActiveCollection implements Registry.
func (b *Bolt) ActiveCollection(context.Context) (string, error) {
	var name string
	err := b.db.View(func(tx *bbolt.Tx) error {
		name = string(tx.Bucket(bucketMeta).Get(keyActive))
		return nil
	})
	return name, err
}

// SetActiveCollection implements Registry.
func (b *Bolt) SetActiveCollection(_ context.Context, name string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyActive, []byte(name))
	})
	if err != nil {
		return fmt.Errorf("registry: set active collection: %w", err)
	}
	return nil
}

// Close implements Registry.
func (b *Bolt) Close() error {
	return b.db.Close()
}
