package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

const manualPrefix = "manual"

type ManualOp string

const (
	OpAuthorize ManualOp = "authorize"
	OpCapture   ManualOp = "capture"
	OpRefund    ManualOp = "refund"
)

// ManualRef builds manual:<op>:<key>.
func ManualRef(op ManualOp, key string) string {
	return manualPrefix + ":" + string(op) + ":" + key
}

// ParseManualRef splits a reference built by ManualRef.
func ParseManualRef(ref string) (ManualOp, string, bool) {
	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 || parts[0] != manualPrefix || parts[2] == "" {
		return "", "", false
	}
	switch op := ManualOp(parts[1]); op {
	case OpAuthorize, OpCapture, OpRefund:
		return op, parts[2], true
	}
	return "", "", false
}

// Manual settles payments an operator collected out of band (bank transfer,
// cash at the desk). It never talks to a network; it only records references.
type Manual struct{}

func NewManual() *Manual { return &Manual{} }

func (*Manual) Provider() reservations.Provider { return reservations.ProviderManual }

func (m *Manual) Authorize(_ context.Context, req Request) (Result, error) {
	if err := checkManual(req); err != nil {
		return Result{}, err
	}
	return Result{ProviderRef: ManualRef(OpAuthorize, req.Key), Status: reservations.PaymentAuthorized}, nil
}

func (m *Manual) Capture(_ context.Context, req Request) (Result, error) {
	key := req.Key
	if req.ProviderRef != "" {
		op, k, ok := ParseManualRef(req.ProviderRef)
		if !ok || op != OpAuthorize {
			return Result{}, fmt.Errorf("%w: capture needs an authorization ref, got %q", ErrDeclined, req.ProviderRef)
		}
		key = k
	}
	req.Key = key
	if err := checkManual(req); err != nil {
		return Result{}, err
	}
	return Result{ProviderRef: ManualRef(OpCapture, key), Status: reservations.PaymentCaptured}, nil
}

func (m *Manual) AuthorizeAndCapture(ctx context.Context, req Request) (Result, error) {
	auth, err := m.Authorize(ctx, req)
	if err != nil {
		return Result{}, err
	}
	req.ProviderRef = auth.ProviderRef
	return m.Capture(ctx, req)
}

func (m *Manual) Refund(_ context.Context, req Request) (Result, error) {
	op, key, ok := ParseManualRef(req.ProviderRef)
	if !ok || op == OpRefund {
		return Result{}, fmt.Errorf("%w: cannot refund ref %q", ErrDeclined, req.ProviderRef)
	}
	return Result{ProviderRef: ManualRef(OpRefund, key), Status: reservations.PaymentRefunded, Terminal: true}, nil
}

func checkManual(req Request) error {
	if strings.TrimSpace(req.Key) == "" {
		return fmt.Errorf("%w: manual payment needs an operator reference", ErrDeclined)
	}
	if strings.Contains(req.Key, ":") {
		return fmt.Errorf("%w: reference must not contain ':'", ErrDeclined)
	}
	return req.validateAmount()
}
