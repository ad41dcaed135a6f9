package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

var (
	ErrDeclined      = errors.New("payment declined")
	ErrInvalidAmount = errors.New("invalid payment amount")
)

// Gateway is the state-transition contract with a payment provider. Wire
// protocols live behind implementations.
type Gateway interface {
	Provider() reservations.Provider
	Authorize(ctx context.Context, req Request) (Result, error)
	Capture(ctx context.Context, req Request) (Result, error)
	AuthorizeAndCapture(ctx context.Context, req Request) (Result, error)
	Refund(ctx context.Context, req Request) (Result, error)
}

// Request carries one call to a provider. Key is the caller reference the
// provider derives its own reference from; ProviderRef is set on Capture and
// Refund.
type Request struct {
	Key         string
	BookingID   string
	AmountCents int64
	Currency    string
	ProviderRef string
}

func (r Request) validateAmount() error {
	if r.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.Currency) == "" {
		return ErrInvalidAmount
	}
	return nil
}

// Result reports where the provider left the payment. Terminal means no
// later call can change it.
type Result struct {
	ProviderRef string
	Status      reservations.PaymentStatus
	Terminal    bool
}
