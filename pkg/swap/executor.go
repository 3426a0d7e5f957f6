// Package swap drives a swap intent from validation to on-chain settlement.
package swap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tempo-swap/pkg/allowance"
	"tempo-swap/pkg/metrics"
	"tempo-swap/pkg/quote"
	"tempo-swap/pkg/types"
	"tempo-swap/pkg/units"
)

const bpsDenominator = 10000

// Venue submits swaps to the exchange contract and returns the transaction hash
type Venue interface {
	SwapExactIn(ctx context.Context, tokenIn, tokenOut string, amountIn, minOut *uint256.Int) (string, error)
	SwapExactOut(ctx context.Context, tokenIn, tokenOut string, amountOut, maxIn *uint256.Int) (string, error)
}

// Quoter issues binding quotes
type Quoter interface {
	Binding(ctx context.Context, req quote.Request) (types.Quote, error)
}

// Approver reads and tops up allowances
type Approver interface {
	CheckAllowance(ctx context.Context, owner, token, spender string) (*uint256.Int, error)
	EnsureApproval(ctx context.Context, req allowance.Request) (allowance.Approval, error)
}

// Finalizer waits for transaction finality
type Finalizer interface {
	AwaitFinality(ctx context.Context, hash string) (*types.FinalityResult, error)
}

// Recorder stores activity entries
type Recorder interface {
	Append(ctx context.Context, account string, entry types.ActivityEntry)
	ExplorerLink(hash string) string
}

// Network reports whether the connected account is on the expected chain
type Network interface {
	OnExpectedNetwork(ctx context.Context) (bool, error)
}

// Submission is returned once a swap is broadcast and recorded
type Submission struct {
	Hash  string
	Entry types.ActivityEntry
	Quote types.Quote
	// Limit is the minimum output for exact-input or the maximum input for exact-output
	Limit *uint256.Int
	// Settled receives the finality result once background confirmation ends
	Settled <-chan *types.FinalityResult
}

// Deps are the collaborators an Executor drives
type Deps struct {
	Venue     Venue
	Quoter    Quoter
	Approver  Approver
	Finalizer Finalizer
	Recorder  Recorder
	Network   Network
	// Spender is the exchange contract granted allowances
	Spender string
}

// Executor runs the swap state machine
type Executor struct {
	Deps

	l     *zap.Logger
	m     *metrics.EngineMetrics
	locks *lockset
	bg    context.Context
	now   func() time.Time

	onState   func(StateChange)
	onSettled func(account string, res *types.FinalityResult)
}

// Option configures an Executor
type Option func(*Executor)

// WithOnState registers a hook receiving every state transition.
// Confirmation transitions arrive from a background goroutine.
func WithOnState(fn func(StateChange)) Option {
	return func(e *Executor) {
		e.onState = fn
	}
}

// WithOnSettled registers a hook called after a swap finalizes successfully
func WithOnSettled(fn func(account string, res *types.FinalityResult)) Option {
	return func(e *Executor) {
		e.onSettled = fn
	}
}

// WithMetrics attaches engine collectors
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(e *Executor) {
		e.m = m
	}
}

// NewExecutor creates an executor. Background confirmations live as long as bg.
func NewExecutor(bg context.Context, deps Deps, l *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		Deps:  deps,
		l:     l,
		locks: newLockset(),
		bg:    bg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Busy reports whether a submission for account is in flight
func (e *Executor) Busy(account string) bool {
	return e.locks.Held(account)
}

// Submit validates intent against the display quote, approves if needed,
// re-quotes, submits the swap and records it. Confirmation continues in the
// background after Submit returns.
func (e *Executor) Submit(ctx context.Context, intent types.SwapIntent, display types.Quote) (Submission, error) {
	if intent.Account == "" {
		e.fail(intent, ErrNotConnected)
		return Submission{}, ErrNotConnected
	}

	release, ok := e.locks.TryAcquire(intent.Account)
	if !ok {
		return Submission{}, ErrBusy
	}
	defer release()

	sub, err := e.run(ctx, intent, display)
	if err != nil {
		e.fail(intent, err)
		e.m.ObserveSwap(string(intent.Mode), "error")
		return Submission{}, err
	}
	e.m.ObserveSwap(string(intent.Mode), "submitted")

	settled := make(chan *types.FinalityResult, 1)
	sub.Settled = settled
	e.emit(intent.Account, StateIdle, "", "")
	go e.confirm(intent, sub.Hash, settled)

	return sub, nil
}

func (e *Executor) run(ctx context.Context, intent types.SwapIntent, display types.Quote) (Submission, error) {
	e.emit(intent.Account, StateValidating, "", "")

	amount, err := e.validate(ctx, intent, display)
	if err != nil {
		return Submission{}, err
	}

	in, out := intent.InputToken, intent.OutputToken
	bps := intent.SlippageBps

	// provisional spend bound from the display quote
	required := amount
	if intent.Mode == types.ExactOutput {
		required = maxIn(display.Result, bps)
	}

	granted, err := e.Approver.CheckAllowance(ctx, intent.Account, in.Address, e.Spender)
	if err != nil {
		return Submission{}, err
	}
	if required.Gt(granted) {
		e.emit(intent.Account, StateApproving, fmt.Sprintf("Approving %s…", in.Symbol), "")
		approval, err := e.Approver.EnsureApproval(ctx, allowance.Request{
			Owner:    intent.Account,
			Token:    in,
			Spender:  e.Spender,
			Required: required,
			OnSubmitted: func(hash string) {
				e.emit(intent.Account, StateConfirmingApproval, "Waiting for approval confirmation…", hash)
			},
		})
		if err != nil {
			return Submission{}, err
		}
		granted = approval.Allowance
	}

	e.emit(intent.Account, StateRequoting, "Refreshing quote…", "")
	fresh, err := e.Quoter.Binding(ctx, quote.Request{
		From:   in,
		To:     out,
		Amount: intent.HumanAmount,
		Mode:   intent.Mode,
	})
	if err != nil {
		return Submission{}, err
	}
	if fresh.Empty() {
		return Submission{}, ErrNoExecutableQuote
	}

	var limit *uint256.Int
	if intent.Mode == types.ExactOutput {
		limit = maxIn(fresh.Result, bps)
		current, err := e.Approver.CheckAllowance(ctx, intent.Account, in.Address, e.Spender)
		if err != nil {
			return Submission{}, err
		}
		if limit.Gt(current) {
			e.l.Info("allowance stale after requote",
				zap.String("account", intent.Account),
				zap.String("max_in", limit.Dec()),
				zap.String("allowance", current.Dec()),
				zap.String("granted", granted.Dec()))
			return Submission{}, ErrAllowanceStale
		}
	} else {
		limit = minOut(fresh.Result, bps)
	}

	e.emit(intent.Account, StateSubmitting, "Submitting swap…", "")
	var hash string
	if intent.Mode == types.ExactOutput {
		hash, err = e.Venue.SwapExactOut(ctx, in.Address, out.Address, amount, limit)
	} else {
		hash, err = e.Venue.SwapExactIn(ctx, in.Address, out.Address, amount, limit)
	}
	if err != nil {
		return Submission{}, fmt.Errorf("%w: %w", ErrSubmissionRejected, err)
	}
	if hash == "" {
		return Submission{}, ErrSubmissionRejected
	}

	entry := e.entry(intent, amount, fresh, hash)
	if e.Recorder != nil {
		e.Recorder.Append(ctx, intent.Account, entry)
	}
	e.emit(intent.Account, StateRecorded, "Swap submitted.", hash)

	e.l.Info("swap submitted",
		zap.String("account", intent.Account),
		zap.String("hash", hash),
		zap.String("mode", string(intent.Mode)),
		zap.String("amount", amount.Dec()),
		zap.String("quote", fresh.Result.Dec()),
		zap.String("limit", limit.Dec()))

	return Submission{Hash: hash, Entry: entry, Quote: fresh, Limit: limit}, nil
}

func (e *Executor) validate(ctx context.Context, intent types.SwapIntent, display types.Quote) (*uint256.Int, error) {
	if e.Network != nil {
		ok, err := e.Network.OnExpectedNetwork(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "check network")
		}
		if !ok {
			return nil, ErrWrongNetwork
		}
	}
	if !intent.InputToken.Resolved() || !intent.OutputToken.Resolved() || intent.InputToken.SameAs(intent.OutputToken) {
		return nil, ErrInvalidTokenSelection
	}
	if !intent.Mode.Valid() {
		return nil, errors.Wrapf(ErrInvalidAmount, "unknown mode %q", intent.Mode)
	}
	if intent.SlippageBps >= bpsDenominator {
		return nil, errors.Wrapf(ErrInvalidAmount, "slippage %d bps", intent.SlippageBps)
	}
	if !units.IsSubmittable(intent.HumanAmount) {
		return nil, ErrInvalidAmount
	}
	amount := units.ToFixedPoint(intent.HumanAmount, intent.FixedToken().Decimals)
	if amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	if display.Empty() || !quotes(display, intent, amount) {
		return nil, ErrNoExecutableQuote
	}
	return amount, nil
}

// quotes reports whether q was issued for the pair, mode and amount of intent
func quotes(q types.Quote, intent types.SwapIntent, amount *uint256.Int) bool {
	return q.Mode == intent.Mode &&
		strings.EqualFold(q.InputToken.Address, intent.InputToken.Address) &&
		strings.EqualFold(q.OutputToken.Address, intent.OutputToken.Address) &&
		q.Requested != nil && q.Requested.Eq(amount)
}

func (e *Executor) entry(intent types.SwapIntent, amount *uint256.Int, fresh types.Quote, hash string) types.ActivityEntry {
	in, out := intent.InputToken, intent.OutputToken

	sold, received := amount, fresh.Result
	if intent.Mode == types.ExactOutput {
		sold, received = fresh.Result, amount
	}

	entry := types.ActivityEntry{
		Hash:      hash,
		Kind:      types.KindSwap,
		Direction: string(intent.Mode),
		Sold:      types.Leg{Amount: units.ToHumanString(sold, in.Decimals), Symbol: in.Symbol},
		Received:  types.Leg{Amount: units.ToHumanString(received, out.Decimals), Symbol: out.Symbol},
		Time:      e.now().Format(time.DateTime),
		CreatedAt: e.now().UnixMilli(),
	}
	if rate := units.FormatRate(units.ToDecimalString(received, out.Decimals), units.ToDecimalString(sold, in.Decimals)); rate != "" {
		entry.Rate = fmt.Sprintf("1 %s ≈ %s %s", in.Symbol, rate, out.Symbol)
	}
	if e.Recorder != nil {
		entry.ExplorerURL = e.Recorder.ExplorerLink(hash)
	}
	return entry
}

func (e *Executor) confirm(intent types.SwapIntent, hash string, settled chan<- *types.FinalityResult) {
	defer close(settled)

	e.emit(intent.Account, StateConfirmingSwap, "Waiting for confirmation…", hash)

	res, err := e.Finalizer.AwaitFinality(e.bg, hash)
	if err != nil {
		e.l.Warn("swap confirmation abandoned", zap.String("hash", hash), zap.Error(err))
		return
	}

	e.m.ObserveSettlement(string(res.Status))
	if !res.Succeeded() {
		e.emit(intent.Account, StateSettledFailed, "Swap failed on-chain.", hash)
		settled <- res
		return
	}

	e.emit(intent.Account, StateSettled, "Swap confirmed!", hash)
	if e.onSettled != nil {
		e.onSettled(intent.Account, res)
	}
	settled <- res
}

func (e *Executor) fail(intent types.SwapIntent, err error) {
	e.l.Warn("swap failed",
		zap.String("account", intent.Account),
		zap.String("mode", string(intent.Mode)),
		zap.Error(err))
	e.emit(intent.Account, StateError, UserMessage(err), "")
	e.emit(intent.Account, StateIdle, "", "")
}

func (e *Executor) emit(account string, s State, msg, hash string) {
	if e.onState != nil {
		e.onState(StateChange{Account: account, State: s, Message: msg, Hash: hash})
	}
}

// minOut is the slippage floor for an exact-input swap
func minOut(quoted *uint256.Int, bps uint64) *uint256.Int {
	v := new(uint256.Int).Mul(quoted, uint256.NewInt(bpsDenominator-bps))
	return v.Div(v, uint256.NewInt(bpsDenominator))
}

// maxIn is the slippage ceiling for an exact-output swap
func maxIn(quoted *uint256.Int, bps uint64) *uint256.Int {
	v := new(uint256.Int).Mul(quoted, uint256.NewInt(bpsDenominator+bps))
	return v.Div(v, uint256.NewInt(bpsDenominator))
}
