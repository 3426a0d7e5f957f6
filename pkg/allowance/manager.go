// Package allowance makes sure the venue may spend enough of a token before a swap.
package allowance

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tempo-swap/pkg/metrics"
	"tempo-swap/pkg/types"
)

// ErrApprovalFailed is returned when the approval transaction does not finalize successfully
var ErrApprovalFailed = errors.New("approval failed")

// Chain reads and sets ERC-20 allowances
type Chain interface {
	Allowance(ctx context.Context, owner, token, spender string) (*uint256.Int, error)
	Approve(ctx context.Context, token, spender string, amount *uint256.Int) (string, error)
}

// Finalizer waits for a transaction to be mined
type Finalizer interface {
	AwaitFinality(ctx context.Context, hash string) (*types.FinalityResult, error)
}

// Request describes the allowance a spend needs
type Request struct {
	Owner    string
	Token    *types.Token
	Spender  string
	Required *uint256.Int
	// OnSubmitted is called once the approval transaction is broadcast
	OnSubmitted func(hash string)
}

// Approval is the outcome of EnsureApproval
type Approval struct {
	// Hash is empty when the existing allowance already covered the request
	Hash      string
	Allowance *uint256.Int
}

// Manager checks and tops up allowances
type Manager struct {
	chain     Chain
	finalizer Finalizer
	l         *zap.Logger
	m         *metrics.EngineMetrics
}

// NewManager creates an allowance manager. m may be nil.
// Approvals are not recorded as activity; only a submitted swap is.
func NewManager(chain Chain, finalizer Finalizer, l *zap.Logger, m *metrics.EngineMetrics) *Manager {
	return &Manager{
		chain:     chain,
		finalizer: finalizer,
		l:         l,
		m:         m,
	}
}

// CheckAllowance reads the current allowance from the chain. It is never cached.
func (m *Manager) CheckAllowance(ctx context.Context, owner, token, spender string) (*uint256.Int, error) {
	current, err := m.chain.Allowance(ctx, owner, token, spender)
	if err != nil {
		return nil, errors.Wrapf(err, "read allowance of %s", token)
	}
	if current == nil {
		current = new(uint256.Int)
	}
	return current, nil
}

// EnsureApproval approves exactly req.Required when the current allowance is lower
// and waits for the approval to finalize.
func (m *Manager) EnsureApproval(ctx context.Context, req Request) (Approval, error) {
	current, err := m.CheckAllowance(ctx, req.Owner, req.Token.Address, req.Spender)
	if err != nil {
		return Approval{}, err
	}
	if req.Required.Cmp(current) <= 0 {
		m.m.ObserveApproval("skipped")
		return Approval{Allowance: current}, nil
	}

	m.l.Info("approving spender",
		zap.String("token", req.Token.Symbol),
		zap.String("spender", req.Spender),
		zap.String("amount", req.Required.Dec()))

	hash, err := m.chain.Approve(ctx, req.Token.Address, req.Spender, req.Required)
	if err != nil {
		m.m.ObserveApproval("failed")
		return Approval{}, errors.Wrapf(err, "approve %s", req.Token.Symbol)
	}
	if req.OnSubmitted != nil {
		req.OnSubmitted(hash)
	}

	res, err := m.finalizer.AwaitFinality(ctx, hash)
	if err != nil {
		m.m.ObserveApproval("failed")
		return Approval{Hash: hash}, err
	}
	if !res.Succeeded() {
		m.m.ObserveApproval("failed")
		return Approval{Hash: hash}, errors.Wrapf(ErrApprovalFailed, "approval %s %s", hash, res.Status)
	}

	m.m.ObserveApproval("confirmed")

	return Approval{Hash: hash, Allowance: new(uint256.Int).Set(req.Required)}, nil
}
