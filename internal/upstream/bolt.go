package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/leonardcser/bonds-mcp/internal/fetch"
)

var (
	ErrInvalidData = errors.New("upstream: data must be valid JSON")
	ErrEmptyKey    = errors.New("upstream: date and id are required")
)

// BoltStore keeps bond records in a bbolt file, one nested bucket per date
// keyed by ISIN. It is safe for concurrent use by multiple goroutines.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

type BoltOptions struct {
	// Bucket is the name of the top-level bucket. Defaults to "bonds".
	Bucket string
	// Timeout bounds waiting for the file lock. Defaults to one second.
	Timeout time.Duration
}

// OpenBolt initializes or opens a BoltStore at path.
func OpenBolt(path string, opts BoltOptions) (*BoltStore, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	bucket := []byte("bonds")
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db, bucket: bucket}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Fetch returns the stored records for ids as of date, in the order of ids.
// Unknown ids are skipped.
func (s *BoltStore) Fetch(ctx context.Context, date string, ids []string) ([]fetch.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]fetch.Record, 0, len(ids))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket).Bucket([]byte(date))
		if b == nil {
			return nil
		}
		for _, id := range ids {
			v := b.Get([]byte(id))
			if v == nil {
				continue
			}
			// v is only valid for the life of the transaction.
			out = append(out, fetch.Record{ID: id, Data: append(json.RawMessage(nil), v...)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put stores data for id as of date, replacing any previous record.
func (s *BoltStore) Put(date, id string, data json.RawMessage) error {
	if date == "" || id == "" {
		return ErrEmptyKey
	}
	if !json.Valid(data) {
		return ErrInvalidData
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(s.bucket).CreateBucketIfNotExists([]byte(date))
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

// Delete removes the record for id as of date. Missing records are not an error.
func (s *BoltStore) Delete(date, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket).Bucket([]byte(date))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(id))
	})
}
