package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

const taskColumns = `id::text, booking_id::text, kind, status, due_at, created_at, updated_at, cancelled_at`

func scanTask(row pgx.Row) (reservations.OpsTask, error) {
	var t reservations.OpsTask
	err := row.Scan(&t.ID, &t.BookingID, &t.Kind, &t.Status, &t.DueAt, &t.CreatedAt, &t.UpdatedAt, &t.CancelledAt)
	return t, err
}

func (s *Store) CreateTask(ctx context.Context, t reservations.OpsTask) error {
	const stmt = `
INSERT INTO ops_tasks (id, booking_id, kind, status, due_at, created_at, updated_at, cancelled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT ON CONSTRAINT ops_tasks_booking_kind_key DO NOTHING`

	tag, err := s.exec(ctx, stmt, t.ID, t.BookingID, t.Kind, t.Status, t.DueAt, t.CreatedAt, t.UpdatedAt, t.CancelledAt)
	if err != nil {
		return fmt.Errorf("create ops task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reservations.ErrDuplicateTask
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (reservations.OpsTask, error) {
	return s.getTask(ctx, `SELECT `+taskColumns+` FROM ops_tasks WHERE id = $1`, id)
}

func (s *Store) GetTaskForUpdate(ctx context.Context, id string) (reservations.OpsTask, error) {
	return s.getTask(ctx, `SELECT `+taskColumns+` FROM ops_tasks WHERE id = $1 FOR UPDATE`, id)
}

func (s *Store) getTask(ctx context.Context, q, id string) (reservations.OpsTask, error) {
	t, err := scanTask(s.queryRow(ctx, q, id))
	if err != nil {
		if isInvalidUUID(err) || errors.Is(err, pgx.ErrNoRows) {
			return reservations.OpsTask{}, reservations.ErrTaskNotFound
		}
		return reservations.OpsTask{}, fmt.Errorf("get ops task: %w", err)
	}
	return t, nil
}

func (s *Store) ListTasksByBooking(ctx context.Context, bookingID string) ([]reservations.OpsTask, error) {
	return s.listTasks(ctx, `SELECT `+taskColumns+` FROM ops_tasks WHERE booking_id = $1 ORDER BY due_at, kind`, bookingID)
}

// ListTasksByBookingForUpdate row-locks the booking's tasks until the
// surrounding transaction ends, so an operator transition on one of them
// waits for the cancel cascade or is seen by it.
func (s *Store) ListTasksByBookingForUpdate(ctx context.Context, bookingID string) ([]reservations.OpsTask, error) {
	if txFromContext(ctx) == nil {
		return nil, errors.New("postgres: ListTasksByBookingForUpdate outside a transaction")
	}
	return s.listTasks(ctx, `SELECT `+taskColumns+` FROM ops_tasks WHERE booking_id = $1 ORDER BY due_at, kind FOR UPDATE`, bookingID)
}

func (s *Store) listTasks(ctx context.Context, q, bookingID string) ([]reservations.OpsTask, error) {
	rows, err := s.query(ctx, q, bookingID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list ops tasks: %w", err)
	}
	defer rows.Close()
	var out []reservations.OpsTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ops task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateTask(ctx context.Context, t reservations.OpsTask) error {
	tag, err := s.exec(ctx, `UPDATE ops_tasks SET status = $2, updated_at = $3, cancelled_at = $4 WHERE id = $1`,
		t.ID, t.Status, t.UpdatedAt, t.CancelledAt)
	if err != nil {
		if isInvalidUUID(err) {
			return reservations.ErrTaskNotFound
		}
		return fmt.Errorf("update ops task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reservations.ErrTaskNotFound
	}
	return nil
}

func (s *Store) AppendTaskEvent(ctx context.Context, ev reservations.TaskEvent) error {
	const stmt = `
INSERT INTO ops_task_events (id, task_id, from_status, to_status, note, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.exec(ctx, stmt, ev.ID, ev.TaskID, ev.From, ev.To, ev.Note, ev.OccurredAt); err != nil {
		return fmt.Errorf("append ops task event: %w", err)
	}
	return nil
}

func (s *Store) ListTaskEvents(ctx context.Context, taskID string) ([]reservations.TaskEvent, error) {
	const q = `
SELECT id::text, task_id::text, from_status, to_status, note, occurred_at
FROM ops_task_events WHERE task_id = $1 ORDER BY seq`

	rows, err := s.query(ctx, q, taskID)
	if err != nil {
		return nil, fmt.Errorf("list ops task events: %w", err)
	}
	defer rows.Close()
	var out []reservations.TaskEvent
	for rows.Next() {
		var ev reservations.TaskEvent
		if err := rows.Scan(&ev.ID, &ev.TaskID, &ev.From, &ev.To, &ev.Note, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan ops task event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
