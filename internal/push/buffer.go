// Package push delivers notifications to registered device endpoints, with a
// local persistent buffer so deliveries survive gateway outages and restarts.
package push

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Delivery is one pending push to one endpoint. Failed deliveries are
// requeued with a bumped retry count until maxRetries is exhausted.
type Delivery struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	Message   string    `json:"message"`
	LinkURL   string    `json:"link_url,omitempty"`
	Retries   int       `json:"retries"`
	Timestamp time.Time `json:"timestamp"`

	bucketKey []byte
}

func (d *Delivery) normalize() {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
}

// Buffer wraps BoltDB to persist deliveries while the gateway is unavailable.
type Buffer struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBuffer initializes the BoltDB file and ensures the bucket exists.
func OpenBuffer(path string) (*Buffer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	bucket := []byte("push_deliveries")
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Buffer{db: db, bucket: bucket}, nil
}

// Enqueue stores a delivery under a time-ordered key.
func (b *Buffer) Enqueue(d Delivery) error {
	if b == nil || b.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	d.normalize()
	d.bucketKey = []byte(fmt.Sprintf("%020d_%s", d.Timestamp.UnixNano(), d.ID))

	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put(d.bucketKey, payload)
	})
}

// GetBatch returns up to limit deliveries, oldest first, without removing them.
func (b *Buffer) GetBatch(limit int) ([]Delivery, error) {
	if b == nil || b.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var out []Delivery
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(b.bucket).Cursor()
		for k, v := c.First(); k != nil && len(out) < limit; k, v = c.Next() {
			var d Delivery
			if err := json.Unmarshal(v, &d); err != nil {
				continue
			}
			d.bucketKey = append([]byte(nil), k...)
			out = append(out, d)
		}
		return nil
	})
	return out, err
}

// Remove deletes the delivery from the buffer.
func (b *Buffer) Remove(d Delivery) error {
	if b == nil || b.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Delete(d.bucketKey)
	})
}

// Requeue re-inserts a delivery after bumping its retry count and timestamp.
func (b *Buffer) Requeue(d Delivery) error {
	d.bucketKey = nil
	d.Retries++
	d.Timestamp = time.Now()
	return b.Enqueue(d)
}

// Size returns the number of buffered deliveries.
func (b *Buffer) Size() (int, error) {
	if b == nil || b.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := b.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(b.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the Bolt database.
func (b *Buffer) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
