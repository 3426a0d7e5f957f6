// Package receipt waits for transactions to reach a final receipt.
package receipt

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tempo-swap/pkg/retrier"
	"tempo-swap/pkg/types"
)

// DefaultInterval is the fixed delay between receipt lookups.
const DefaultInterval = 2 * time.Second

var errPending = errors.New("receipt not yet available")

// Lookup fetches a transaction receipt. A nil result with a nil error means
// the transaction is not mined yet.
type Lookup interface {
	Receipt(ctx context.Context, hash string) (*types.FinalityResult, error)
}

// Poller waits for transaction finality by polling a Lookup
type Poller struct {
	lookup   Lookup
	interval time.Duration
	l        *zap.Logger
}

// Option configures a Poller
type Option func(*Poller)

// WithInterval overrides the polling interval
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// NewPoller creates a poller over the given lookup
func NewPoller(lookup Lookup, l *zap.Logger, opts ...Option) *Poller {
	p := &Poller{
		lookup:   lookup,
		interval: DefaultInterval,
		l:        l,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AwaitFinality blocks until the receipt for hash is available.
// Lookup errors and missing receipts are retried indefinitely; only ctx ends the wait.
func (p *Poller) AwaitFinality(ctx context.Context, hash string) (*types.FinalityResult, error) {
	r := retrier.New(
		retrier.WithConstantInterval(p.interval),
		retrier.WithOnRetry(func(attempt int, err error) {
			if errors.Is(err, errPending) {
				return
			}
			p.l.Debug("receipt lookup failed, retrying",
				zap.String("hash", hash),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}),
	)

	res, err := retrier.DoWithData(r, ctx, func(ctx context.Context) (*types.FinalityResult, error) {
		res, err := p.lookup.Receipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, errPending
		}
		return res, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "await receipt %s", hash)
	}

	p.l.Info("transaction finalized",
		zap.String("hash", hash),
		zap.String("status", string(res.Status)),
		zap.Uint64("block", res.BlockNumber))
	return res, nil
}
