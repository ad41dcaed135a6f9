// Package holds manages time-bounded exclusive claims on a property's dates.
package holds

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-rental-reservations/internal/clock"
	"github.com/ariefcatur/go-rental-reservations/internal/ledger"
	"github.com/ariefcatur/go-rental-reservations/internal/metrics"
	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockProperty(ctx context.Context, propertyID string) error
	CreateHold(ctx context.Context, h reservations.Hold) error
	GetHold(ctx context.Context, id string) (reservations.Hold, error)
	UpdateHoldStatus(ctx context.Context, id string, from, to reservations.HoldStatus, now time.Time) (bool, error)
	UpdateHoldWindow(ctx context.Context, id string, iv reservations.Interval, expiresAt time.Time) error
	ExpireHolds(ctx context.Context, now time.Time, limit int) (int, error)
}

const (
	defaultTTL = 15 * time.Minute
	defaultMax = 2 * time.Hour
)

type Manager struct {
	repo       Repository
	ledger     *ledger.Ledger
	clock      clock.Clock
	defaultTTL time.Duration
	maxTTL     time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Manager)

// WithDefaultTTL sets the TTL used when a request does not name one.
func WithDefaultTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.defaultTTL = d
		}
	}
}

func WithMaxTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maxTTL = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func NewManager(repo Repository, l *ledger.Ledger, clk clock.Clock, opts ...Option) *Manager {
	m := &Manager{
		repo:       repo,
		ledger:     l,
		clock:      clk,
		defaultTTL: defaultTTL,
		maxTTL:     defaultMax,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.defaultTTL > m.maxTTL {
		m.maxTTL = m.defaultTTL
	}
	return m
}

type CreateHoldInput struct {
	PropertyID string
	Interval   reservations.Interval
	TTL        time.Duration // zero means the configured default
}

// CreateHold claims the dates for TTL. The property lock makes the conflict
// check and the insert one atomic step against every other writer on the
// same property.
func (m *Manager) CreateHold(ctx context.Context, in CreateHoldInput) (h reservations.Hold, err error) {
	defer func() { m.metrics.HoldOp("create", err) }()

	in.PropertyID = strings.TrimSpace(in.PropertyID)
	if in.PropertyID == "" {
		return reservations.Hold{}, reservations.ErrPropertyRequired
	}
	if err := in.Interval.Validate(); err != nil {
		return reservations.Hold{}, err
	}
	ttl, err := m.ttl(in.TTL)
	if err != nil {
		return reservations.Hold{}, err
	}

	err = m.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := m.repo.LockProperty(txCtx, in.PropertyID); err != nil {
			return fmt.Errorf("lock property: %w", err)
		}
		conflicts, err := m.ledger.QueryConflicts(txCtx, in.PropertyID, in.Interval, "")
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &reservations.ConflictError{PropertyID: in.PropertyID, Interval: in.Interval, Entries: conflicts}
		}

		now := m.clock.Now()
		h = reservations.Hold{
			ID:         uuid.NewString(),
			PropertyID: in.PropertyID,
			Interval:   in.Interval,
			Status:     reservations.HoldActive,
			CreatedAt:  now,
			ExpiresAt:  now.Add(ttl),
		}
		return m.repo.CreateHold(txCtx, h)
	})
	if err != nil {
		return reservations.Hold{}, err
	}
	m.logger.Info("hold created",
		slog.String("hold_id", h.ID),
		slog.String("property_id", h.PropertyID),
		slog.String("interval", h.Interval.String()),
		slog.Time("expires_at", h.ExpiresAt),
	)
	return h, nil
}

// ReleaseHold lets an ACTIVE hold go. A second release, or a release after
// expiry or confirmation, fails with ErrAlreadyTerminal.
func (m *Manager) ReleaseHold(ctx context.Context, id string) (err error) {
	defer func() { m.metrics.HoldOp("release", err) }()

	return m.repo.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := m.repo.UpdateHoldStatus(txCtx, id, reservations.HoldActive, reservations.HoldReleased, m.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("release hold %s: %w", id, reservations.ErrAlreadyTerminal)
		}
		return nil
	})
}

// Get returns the hold with its status already evaluated against the clock.
// Nothing is written.
func (m *Manager) Get(ctx context.Context, id string) (reservations.Hold, error) {
	h, err := m.repo.GetHold(ctx, id)
	if err != nil {
		return reservations.Hold{}, err
	}
	h.Status = h.EffectiveStatus(m.clock.Now())
	return h, nil
}

func (m *Manager) EffectiveStatus(ctx context.Context, id string) (reservations.HoldStatus, error) {
	h, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return h.Status, nil
}

type ExtendHoldInput struct {
	HoldID   string
	Interval *reservations.Interval // nil keeps the current dates
	TTL      time.Duration          // new lifetime counted from now; zero means the default
}

// ExtendHold renews an ACTIVE hold and optionally moves its dates, re-checking
// the ledger with the hold itself excluded.
func (m *Manager) ExtendHold(ctx context.Context, in ExtendHoldInput) (h reservations.Hold, err error) {
	defer func() { m.metrics.HoldOp("extend", err) }()

	if in.Interval != nil {
		if err := in.Interval.Validate(); err != nil {
			return reservations.Hold{}, err
		}
	}
	ttl, err := m.ttl(in.TTL)
	if err != nil {
		return reservations.Hold{}, err
	}

	err = m.repo.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := m.repo.GetHold(txCtx, in.HoldID)
		if err != nil {
			return err
		}
		if err := m.repo.LockProperty(txCtx, cur.PropertyID); err != nil {
			return fmt.Errorf("lock property: %w", err)
		}
		// re-read under the lock
		if cur, err = m.repo.GetHold(txCtx, in.HoldID); err != nil {
			return err
		}
		now := m.clock.Now()
		if st := cur.EffectiveStatus(now); st != reservations.HoldActive {
			return fmt.Errorf("extend hold %s: %w", in.HoldID, reservations.HoldStatusError(st))
		}

		iv := cur.Interval
		if in.Interval != nil {
			iv = *in.Interval
		}
		conflicts, err := m.ledger.QueryConflicts(txCtx, cur.PropertyID, iv, cur.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &reservations.ConflictError{PropertyID: cur.PropertyID, Interval: iv, Entries: conflicts}
		}

		cur.Interval = iv
		cur.ExpiresAt = now.Add(ttl)
		if err := m.repo.UpdateHoldWindow(txCtx, cur.ID, cur.Interval, cur.ExpiresAt); err != nil {
			return err
		}
		h = cur
		return nil
	})
	if err != nil {
		return reservations.Hold{}, err
	}
	return h, nil
}

// ExpireStale persists ACTIVE -> EXPIRED for holds past their deadline.
// Reads never depend on it having run.
func (m *Manager) ExpireStale(ctx context.Context, limit int) (int, error) {
	n, err := m.repo.ExpireHolds(ctx, m.clock.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("expire holds: %w", err)
	}
	m.metrics.HoldsExpired(n)
	return n, nil
}

func (m *Manager) ttl(requested time.Duration) (time.Duration, error) {
	switch {
	case requested == 0:
		return m.defaultTTL, nil
	case requested < 0:
		return 0, fmt.Errorf("%w: %s is negative", reservations.ErrInvalidTTL, requested)
	case requested > m.maxTTL:
		return 0, fmt.Errorf("%w: %s exceeds %s", reservations.ErrInvalidTTL, requested, m.maxTTL)
	}
	return requested, nil
}
