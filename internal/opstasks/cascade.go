// Package opstasks turns booking transitions into operator fulfillment work.
package opstasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-rental-reservations/internal/clock"
	"github.com/ariefcatur/go-rental-reservations/internal/metrics"
	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateTask(ctx context.Context, t reservations.OpsTask) error
	GetTask(ctx context.Context, id string) (reservations.OpsTask, error)
	GetTaskForUpdate(ctx context.Context, id string) (reservations.OpsTask, error)
	ListTasksByBooking(ctx context.Context, bookingID string) ([]reservations.OpsTask, error)
	ListTasksByBookingForUpdate(ctx context.Context, bookingID string) ([]reservations.OpsTask, error)
	UpdateTask(ctx context.Context, t reservations.OpsTask) error
	AppendTaskEvent(ctx context.Context, ev reservations.TaskEvent) error
	ListTaskEvents(ctx context.Context, taskID string) ([]reservations.TaskEvent, error)
}

var _ reservations.BookingHooks = (*Cascade)(nil)

// Cascade is the one synchronous booking listener. Its writes join the
// transaction of the booking transition that called it.
type Cascade struct {
	repo    Repository
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Cascade)

func WithLogger(l *slog.Logger) Option {
	return func(c *Cascade) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cascade) { c.metrics = m }
}

func New(repo Repository, clk clock.Clock, opts ...Option) *Cascade {
	c := &Cascade{repo: repo, clock: clk, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnBookingConfirmed creates the plan's tasks in PENDING. Kinds that already
// exist for the booking are left alone, so a replay creates nothing.
func (c *Cascade) OnBookingConfirmed(ctx context.Context, ev reservations.BookingConfirmed) error {
	plan := ev.Plan()
	planned := Plan(plan, ev.ServiceConfig.Flags, ev.Booking.Interval)

	return c.repo.WithTx(ctx, func(txCtx context.Context) error {
		now := c.clock.Now()
		for _, p := range planned {
			t := reservations.OpsTask{
				ID:        uuid.NewString(),
				BookingID: ev.Booking.ID,
				Kind:      p.Kind,
				Status:    reservations.TaskPending,
				DueAt:     p.DueAt,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := c.repo.CreateTask(txCtx, t); err != nil {
				if errors.Is(err, reservations.ErrDuplicateTask) {
					continue
				}
				return fmt.Errorf("create %s task: %w", p.Kind, err)
			}
			if err := c.record(txCtx, t.ID, "", reservations.TaskPending, "plan "+plan.Code, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// OnBookingCancelled cancels every open task of the booking. Completed work
// stays completed and nothing is deleted.
func (c *Cascade) OnBookingCancelled(ctx context.Context, ev reservations.BookingCancelled) error {
	return c.repo.WithTx(ctx, func(txCtx context.Context) error {
		tasks, err := c.repo.ListTasksByBookingForUpdate(txCtx, ev.Booking.ID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		now := c.clock.Now()
		note := "booking cancelled"
		if r := strings.TrimSpace(ev.Reason); r != "" {
			note += ": " + r
		}
		for _, t := range tasks {
			if !t.Status.Open() {
				continue
			}
			from := t.Status
			t.Status = reservations.TaskCancelled
			t.UpdatedAt = now
			cancelledAt := now
			t.CancelledAt = &cancelledAt
			if err := c.repo.UpdateTask(txCtx, t); err != nil {
				return fmt.Errorf("cancel task %s: %w", t.ID, err)
			}
			if err := c.record(txCtx, t.ID, from, reservations.TaskCancelled, note, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Transition moves a task forward on an operator's behalf.
func (c *Cascade) Transition(ctx context.Context, taskID string, to reservations.TaskStatus, note string) (reservations.OpsTask, error) {
	var out reservations.OpsTask
	err := c.repo.WithTx(ctx, func(txCtx context.Context) error {
		t, err := c.repo.GetTaskForUpdate(txCtx, taskID)
		if err != nil {
			return err
		}
		if t.Status.Terminal() {
			return fmt.Errorf("task %s is %s: %w", t.ID, t.Status, reservations.ErrAlreadyTerminal)
		}
		if !t.Status.CanTransition(to) {
			return fmt.Errorf("%w: task %s -> %s", reservations.ErrInvalidTransition, t.Status, to)
		}
		now := c.clock.Now()
		from := t.Status
		t.Status = to
		t.UpdatedAt = now
		if to == reservations.TaskCancelled {
			cancelledAt := now
			t.CancelledAt = &cancelledAt
		}
		if err := c.repo.UpdateTask(txCtx, t); err != nil {
			return err
		}
		out = t
		return c.record(txCtx, t.ID, from, to, strings.TrimSpace(note), now)
	})
	if err != nil {
		return reservations.OpsTask{}, err
	}
	c.logger.Info("ops task transitioned",
		slog.String("task_id", out.ID),
		slog.String("booking_id", out.BookingID),
		slog.String("status", string(out.Status)),
	)
	return out, nil
}

func (c *Cascade) Tasks(ctx context.Context, bookingID string) ([]reservations.OpsTask, error) {
	return c.repo.ListTasksByBooking(ctx, bookingID)
}

// History returns a task's status changes, oldest first.
func (c *Cascade) History(ctx context.Context, taskID string) ([]reservations.TaskEvent, error) {
	if _, err := c.repo.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return c.repo.ListTaskEvents(ctx, taskID)
}

func (c *Cascade) record(ctx context.Context, taskID string, from, to reservations.TaskStatus, note string, at time.Time) error {
	ev := reservations.TaskEvent{ID: uuid.NewString(), TaskID: taskID, From: from, To: to, Note: note, OccurredAt: at}
	if err := c.repo.AppendTaskEvent(ctx, ev); err != nil {
		return fmt.Errorf("append task event: %w", err)
	}
	c.metrics.TaskTransition(to)
	return nil
}
