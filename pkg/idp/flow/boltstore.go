package flow

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	bolt "go.etcd.io/bbolt"
)

var continuationsBucket = []byte("continuations")

// BoltStore persists continuations in a bbolt file, so a save is
// visible to any later request against the same database regardless of
// which worker wrote it.
//
// Values are the expiry as big endian unix nanoseconds (zero when the
// entry does not expire) followed by the state bytes.
type BoltStore struct {
	db    *bolt.DB
	clock clockwork.Clock
}

func NewBoltStore(path string) (*BoltStore, error) {
	return NewBoltStoreWithClock(path, clockwork.NewRealClock())
}

func NewBoltStoreWithClock(path string, clock clockwork.Clock) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open continuation store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(continuationsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare continuation store: %w", err)
	}
	return &BoltStore{db: db, clock: clock}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Put(_ context.Context, id string, data []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl).UnixNano()
	}
	value := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(value, uint64(expiresAt))
	copy(value[8:], data)

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(continuationsBucket).Put([]byte(id), value)
	})
}

func (s *BoltStore) Get(_ context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(continuationsBucket).Get([]byte(id))
		if value == nil || len(value) < 8 {
			return ErrNotFound
		}
		expiresAt := int64(binary.BigEndian.Uint64(value))
		if expiresAt != 0 && s.clock.Now().UnixNano() >= expiresAt {
			return ErrNotFound
		}
		data = append([]byte(nil), value[8:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *BoltStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(continuationsBucket).Delete([]byte(id))
	})
}

// Sweep removes expired entries. Expired continuations already behave
// as absent, this only reclaims the space.
func (s *BoltStore) Sweep(ctx context.Context) error {
	now := s.clock.Now().UnixNano()
	return s.db.Update(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(continuationsBucket).Cursor()
		for key, value := cursor.First(); key != nil; key, value = cursor.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(value) < 8 {
				continue
			}
			expiresAt := int64(binary.BigEndian.Uint64(value))
			if expiresAt != 0 && now >= expiresAt {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
