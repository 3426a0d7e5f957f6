package allowance

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempo-swap/pkg/types"
)

const (
	owner   = "0x1111111111111111111111111111111111111111"
	spender = "0xdec0000000000000000000000000000000000000"
)

var token = &types.Token{Address: "0x00000000000000000000000000000000000000aa", Symbol: "AUSD", Decimals: 6}

type fakeChain struct {
	mu        sync.Mutex
	allowance *uint256.Int
	approved  []*uint256.Int
	reads     int
	err       error
}

func (f *fakeChain) Allowance(context.Context, string, string, string) (*uint256.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return new(uint256.Int).Set(f.allowance), nil
}

func (f *fakeChain) Approve(_ context.Context, _, _ string, amount *uint256.Int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.approved = append(f.approved, new(uint256.Int).Set(amount))
	f.allowance = new(uint256.Int).Set(amount)
	return "0xapprove", nil
}

type fakeFinalizer struct {
	status types.ReceiptStatus
}

func (f fakeFinalizer) AwaitFinality(_ context.Context, hash string) (*types.FinalityResult, error) {
	return &types.FinalityResult{Hash: hash, Status: f.status}, nil
}

func TestEnsureApproval_NoopWhenSufficient(t *testing.T) {
	chain := &fakeChain{allowance: uint256.NewInt(500)}
	m := NewManager(chain, fakeFinalizer{status: types.ReceiptSuccess}, zap.NewNop(), nil)

	got, err := m.EnsureApproval(context.Background(), Request{
		Owner: owner, Token: token, Spender: spender, Required: uint256.NewInt(500),
	})

	require.NoError(t, err)
	assert.Empty(t, got.Hash)
	assert.Equal(t, uint256.NewInt(500), got.Allowance)
	assert.Empty(t, chain.approved)
}

func TestEnsureApproval_ApprovesExactAmount(t *testing.T) {
	chain := &fakeChain{allowance: uint256.NewInt(10)}
	m := NewManager(chain, fakeFinalizer{status: types.ReceiptSuccess}, zap.NewNop(), nil)

	var submitted string
	got, err := m.EnsureApproval(context.Background(), Request{
		Owner: owner, Token: token, Spender: spender, Required: uint256.NewInt(100_000_000),
		OnSubmitted: func(hash string) { submitted = hash },
	})

	require.NoError(t, err)
	assert.Equal(t, "0xapprove", got.Hash)
	assert.Equal(t, "0xapprove", submitted)
	require.Len(t, chain.approved, 1)
	assert.Equal(t, uint256.NewInt(100_000_000), chain.approved[0])
	assert.Equal(t, uint256.NewInt(100_000_000), got.Allowance)
}

func TestEnsureApproval_RevertedApprovalFails(t *testing.T) {
	chain := &fakeChain{allowance: new(uint256.Int)}
	m := NewManager(chain, fakeFinalizer{status: types.ReceiptReverted}, zap.NewNop(), nil)

	got, err := m.EnsureApproval(context.Background(), Request{
		Owner: owner, Token: token, Spender: spender, Required: uint256.NewInt(1),
	})

	assert.ErrorIs(t, err, ErrApprovalFailed)
	assert.Equal(t, "0xapprove", got.Hash)
}

func TestEnsureApproval_SubmissionError(t *testing.T) {
	chain := &fakeChain{allowance: new(uint256.Int), err: errors.New("User rejected the request")}
	m := NewManager(chain, fakeFinalizer{status: types.ReceiptSuccess}, zap.NewNop(), nil)

	_, err := m.EnsureApproval(context.Background(), Request{
		Owner: owner, Token: token, Spender: spender, Required: uint256.NewInt(1),
	})

	assert.ErrorContains(t, err, "User rejected")
}

func TestCheckAllowance_AlwaysReads(t *testing.T) {
	chain := &fakeChain{allowance: uint256.NewInt(3)}
	m := NewManager(chain, fakeFinalizer{}, zap.NewNop(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := m.CheckAllowance(ctx, owner, token.Address, spender)
		require.NoError(t, err)
		assert.Equal(t, uint256.NewInt(3), v)
	}
	assert.Equal(t, 3, chain.reads)
}
