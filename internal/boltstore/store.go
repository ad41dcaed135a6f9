// Package boltstore is the embedded single-node store. All data lives in one
// file; bolt admits one writer at a time, so every WithTx block is serialized
// and a check-then-insert inside it is atomic.
package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"
)

var (
	bucketHolds              = []byte("holds")
	bucketHoldsByProperty    = []byte("holds_by_property")
	bucketBookings           = []byte("bookings")
	bucketBookingsByProperty = []byte("bookings_by_property")
	bucketBookingsByHold     = []byte("bookings_by_hold")
	bucketPayments           = []byte("payments")
	bucketPaymentsByBooking  = []byte("payments_by_booking")
	bucketTasks              = []byte("ops_tasks")
	bucketTasksByBooking     = []byte("ops_tasks_by_booking")
	bucketTaskEvents         = []byte("ops_task_events")
)

var allBuckets = [][]byte{
	bucketHolds, bucketHoldsByProperty,
	bucketBookings, bucketBookingsByProperty, bucketBookingsByHold,
	bucketPayments, bucketPaymentsByBooking,
	bucketTasks, bucketTasksByBooking, bucketTaskEvents,
}

var errReadOnlyTx = errors.New("boltstore: write inside a read-only transaction")

type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database file and makes sure every bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(context.Context) error {
	return s.db.View(func(*bolt.Tx) error { return nil })
}

type txKey struct{}

// WithTx runs fn inside one read-write transaction carried in ctx. Nested
// calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := txFromContext(ctx); tx != nil {
		if !tx.Writable() {
			return errReadOnlyTx
		}
		return fn(ctx)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// LockProperty is a no-op: the bolt writer lock already serializes every
// transaction.
func (s *Store) LockProperty(ctx context.Context, _ string) error {
	if txFromContext(ctx) == nil {
		return errors.New("boltstore: LockProperty outside a transaction")
	}
	return nil
}

func txFromContext(ctx context.Context) *bolt.Tx {
	tx, _ := ctx.Value(txKey{}).(*bolt.Tx)
	return tx
}

func (s *Store) view(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if tx := txFromContext(ctx); tx != nil {
		return fn(tx)
	}
	return s.db.View(fn)
}

func (s *Store) update(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if tx := txFromContext(ctx); tx != nil {
		if !tx.Writable() {
			return errReadOnlyTx
		}
		return fn(tx)
	}
	return s.db.Update(fn)
}

func get(tx *bolt.Tx, bucket []byte, id string, out any) (bool, error) {
	v := tx.Bucket(bucket).Get([]byte(id))
	if v == nil {
		return false, nil
	}
	if err := json.Unmarshal(v, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", bucket, id, err)
	}
	return true, nil
}

func put(tx *bolt.Tx, bucket []byte, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, id, err)
	}
	return tx.Bucket(bucket).Put([]byte(id), data)
}

// Index keys are parent + NUL + child so one parent's children sort together.
func indexKey(parent, child string) []byte {
	return []byte(parent + "\x00" + child)
}

// scanIndex calls fn with the child part and value of every key under parent.
func scanIndex(tx *bolt.Tx, bucket []byte, parent string, fn func(child string, v []byte) error) error {
	prefix := []byte(parent + "\x00")
	c := tx.Bucket(bucket).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(string(k[len(prefix):]), v); err != nil {
			return err
		}
	}
	return nil
}
