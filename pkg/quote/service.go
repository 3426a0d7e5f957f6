// Package quote keeps a display quote in sync with the user's current swap request
// and issues binding quotes at submit time.
package quote

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tempo-swap/pkg/metrics"
	"tempo-swap/pkg/types"
	"tempo-swap/pkg/units"
)

var (
	ErrInvalidRequest = errors.New("invalid quote request")
	ErrZeroAmount     = errors.New("amount must be greater than zero")
)

// Venue prices swaps. Amounts are fixed-point in the respective token's units.
type Venue interface {
	QuoteExactIn(ctx context.Context, tokenIn, tokenOut string, amountIn *uint256.Int) (*uint256.Int, error)
	QuoteExactOut(ctx context.Context, tokenIn, tokenOut string, amountOut *uint256.Int) (*uint256.Int, error)
}

// Request is the set of inputs a quote depends on
type Request struct {
	From   *types.Token
	To     *types.Token
	Amount string
	Mode   types.Mode
}

// Valid reports whether the request names two distinct tokens and a known mode
func (r Request) Valid() bool {
	return r.From.Resolved() && r.To.Resolved() && !r.From.SameAs(r.To) && r.Mode.Valid()
}

func (r Request) fixed() *types.Token {
	if r.Mode == types.ExactOutput {
		return r.To
	}
	return r.From
}

// FixedAmount converts the typed amount into the fixed token's units
func (r Request) FixedAmount() *uint256.Int {
	if !r.Valid() {
		return new(uint256.Int)
	}
	return units.ToFixedPoint(r.Amount, r.fixed().Decimals)
}

func (r Request) key() string {
	if !r.Valid() {
		return ""
	}
	return strings.Join([]string{
		strings.ToLower(r.From.Address),
		strings.ToLower(r.To.Address),
		strings.TrimSpace(r.Amount),
		string(r.Mode),
	}, "|")
}

// Snapshot is a display state published to subscribers
type Snapshot struct {
	Quote types.Quote
	Err   string
}

// Service owns the display quote
type Service struct {
	venue  Venue
	l      *zap.Logger
	m      *metrics.EngineMetrics
	format func(error) string
	now    func() time.Time

	mu         sync.Mutex
	lastKey    string
	stale      bool
	generation uint64
	display    types.Quote
	displayErr string
	subs       map[chan Snapshot]struct{}
}

// Option configures a Service
type Option func(*Service)

// WithErrorFormatter sets how venue errors are rendered for display
func WithErrorFormatter(fn func(error) string) Option {
	return func(s *Service) {
		s.format = fn
	}
}

// WithMetrics attaches engine collectors
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(s *Service) {
		s.m = m
	}
}

// NewService creates a quote service over venue
func NewService(venue Venue, l *zap.Logger, opts ...Option) *Service {
	s := &Service{
		venue:  venue,
		l:      l,
		format: func(err error) string { return err.Error() },
		now:    time.Now,
		subs:   make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update recomputes the display quote when req differs from the last request
// or the quote was invalidated. Errors are never returned; they become the
// display error.
func (s *Service) Update(ctx context.Context, req Request) {
	key := req.key()
	amount := req.FixedAmount()

	s.mu.Lock()
	if key != "" && key == s.lastKey && !s.stale {
		s.mu.Unlock()
		return
	}
	s.lastKey = key
	s.stale = false
	s.generation++
	gen := s.generation

	if key == "" || amount.IsZero() {
		s.setLocked(types.Quote{}, "")
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	q, err := s.fetch(ctx, req, amount)

	s.mu.Lock()
	defer s.mu.Unlock()

	// a newer request superseded this one while the venue call was in flight
	if gen != s.generation {
		return
	}
	if err != nil {
		s.l.Debug("display quote failed", zap.String("request", key), zap.Error(err))
		s.setLocked(types.Quote{}, s.format(err))
		return
	}
	s.setLocked(q, "")
}

// Run feeds requests into Update until ctx is done or reqs is closed
func (s *Service) Run(ctx context.Context, reqs <-chan Request) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-reqs:
			if !ok {
				return
			}
			s.Update(ctx, req)
		}
	}
}

// Invalidate forces the next Update to re-query the venue
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stale = true
}

// Display returns the current non-binding quote and display error
func (s *Service) Display() (types.Quote, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.display, s.displayErr
}

// Subscribe returns a channel receiving the latest display state after each change.
// Slow subscribers only see the most recent snapshot.
func (s *Service) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}

// Binding queries the venue directly and returns a quote meant for execution
func (s *Service) Binding(ctx context.Context, req Request) (types.Quote, error) {
	if !req.Valid() {
		return types.Quote{}, ErrInvalidRequest
	}
	amount := req.FixedAmount()
	if amount.IsZero() {
		return types.Quote{}, ErrZeroAmount
	}

	q, err := s.fetch(ctx, req, amount)
	if err != nil {
		return types.Quote{}, errors.Wrapf(err, "quote %s %s->%s", req.Mode, req.From.Symbol, req.To.Symbol)
	}
	q.Binding = true
	return q, nil
}

func (s *Service) fetch(ctx context.Context, req Request, amount *uint256.Int) (types.Quote, error) {
	started := time.Now()

	var (
		res *uint256.Int
		err error
	)
	if req.Mode == types.ExactOutput {
		res, err = s.venue.QuoteExactOut(ctx, req.From.Address, req.To.Address, amount)
	} else {
		res, err = s.venue.QuoteExactIn(ctx, req.From.Address, req.To.Address, amount)
	}
	s.m.ObserveQuote(string(req.Mode), started, err)
	if err != nil {
		return types.Quote{}, err
	}

	return types.Quote{
		InputToken:  *req.From,
		OutputToken: *req.To,
		Mode:        req.Mode,
		Requested:   amount,
		Result:      res,
		At:          s.now(),
	}, nil
}

func (s *Service) setLocked(q types.Quote, displayErr string) {
	s.display = q
	s.displayErr = displayErr

	snap := Snapshot{Quote: q, Err: displayErr}
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
