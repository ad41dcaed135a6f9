package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	bolt "github.com/boltdb/bolt"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

// CreateTask enforces one task per (booking, kind).
func (s *Store) CreateTask(ctx context.Context, t reservations.OpsTask) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		idx := indexKey(t.BookingID, string(t.Kind))
		if tx.Bucket(bucketTasksByBooking).Get(idx) != nil {
			return reservations.ErrDuplicateTask
		}
		if err := put(tx, bucketTasks, t.ID, t); err != nil {
			return err
		}
		return tx.Bucket(bucketTasksByBooking).Put(idx, []byte(t.ID))
	})
}

func (s *Store) GetTask(ctx context.Context, id string) (reservations.OpsTask, error) {
	var t reservations.OpsTask
	err := s.view(ctx, func(tx *bolt.Tx) error {
		ok, err := get(tx, bucketTasks, id, &t)
		if err != nil {
			return err
		}
		if !ok {
			return reservations.ErrTaskNotFound
		}
		return nil
	})
	return t, err
}

func (s *Store) GetTaskForUpdate(ctx context.Context, id string) (reservations.OpsTask, error) {
	if txFromContext(ctx) == nil {
		return reservations.OpsTask{}, fmt.Errorf("get task for update: no transaction")
	}
	return s.GetTask(ctx, id)
}

// ListTasksByBookingForUpdate must run inside WithTx; the writer lock covers
// every row.
func (s *Store) ListTasksByBookingForUpdate(ctx context.Context, bookingID string) ([]reservations.OpsTask, error) {
	if txFromContext(ctx) == nil {
		return nil, fmt.Errorf("list tasks for update: no transaction")
	}
	return s.ListTasksByBooking(ctx, bookingID)
}

// ListTasksByBooking orders tasks by due date.
func (s *Store) ListTasksByBooking(ctx context.Context, bookingID string) ([]reservations.OpsTask, error) {
	var out []reservations.OpsTask
	err := s.view(ctx, func(tx *bolt.Tx) error {
		return scanIndex(tx, bucketTasksByBooking, bookingID, func(_ string, id []byte) error {
			var t reservations.OpsTask
			if _, err := get(tx, bucketTasks, string(id), &t); err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].DueAt.Before(out[j].DueAt)
		}
		return out[i].Kind < out[j].Kind
	})
	return out, err
}

func (s *Store) UpdateTask(ctx context.Context, t reservations.OpsTask) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		if tx.Bucket(bucketTasks).Get([]byte(t.ID)) == nil {
			return reservations.ErrTaskNotFound
		}
		return put(tx, bucketTasks, t.ID, t)
	})
}

// AppendTaskEvent keys events by task, then a per-task sequence number, so a
// prefix scan returns them in insertion order.
func (s *Store) AppendTaskEvent(ctx context.Context, ev reservations.TaskEvent) error {
	return s.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTaskEvents)
		seq := 0
		if err := scanIndex(tx, bucketTaskEvents, ev.TaskID, func(string, []byte) error { seq++; return nil }); err != nil {
			return err
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode task event: %w", err)
		}
		return b.Put(indexKey(ev.TaskID, fmt.Sprintf("%08d", seq)), data)
	})
}

func (s *Store) ListTaskEvents(ctx context.Context, taskID string) ([]reservations.TaskEvent, error) {
	var out []reservations.TaskEvent
	err := s.view(ctx, func(tx *bolt.Tx) error {
		return scanIndex(tx, bucketTaskEvents, taskID, func(_ string, v []byte) error {
			var ev reservations.TaskEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("decode task event: %w", err)
			}
			out = append(out, ev)
			return nil
		})
	})
	return out, err
}
