package faucet

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempo-swap/pkg/retrier"
	"tempo-swap/pkg/types"
)

const (
	recipient = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	ngnt      = "0x00000000000000000000000000000000000000a1"
	cnyt      = "0x00000000000000000000000000000000000000a2"
)

type fakeMinter struct {
	calls   atomic.Int32
	gate    chan struct{}
	mu      sync.Mutex
	amounts map[string]*uint256.Int
}

func (f *fakeMinter) Mint(_ context.Context, token, _ string, amount *uint256.Int) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.amounts == nil {
		f.amounts = map[string]*uint256.Int{}
	}
	f.amounts[token] = amount
	return "0xmint-" + token, nil
}

type fakeMeta struct{}

func (fakeMeta) TokenMetadata(_ context.Context, address string) (types.Token, error) {
	switch address {
	case ngnt:
		return types.Token{Address: address, Symbol: "NGNT", Decimals: 6}, nil
	default:
		return types.Token{Address: address, Symbol: "CNYT", Decimals: 18}, nil
	}
}

type fakeFinalizer struct {
	status types.ReceiptStatus
}

func (f fakeFinalizer) AwaitFinality(_ context.Context, hash string) (*types.FinalityResult, error) {
	return &types.FinalityResult{Hash: hash, Status: f.status}, nil
}

func newService(minter *fakeMinter, status types.ReceiptStatus) *Service {
	return NewService(context.Background(), minter, fakeMeta{}, fakeFinalizer{status: status},
		Config{Tokens: []string{ngnt, cnyt}}, zap.NewNop(), nil)
}

func TestFund_MintsEveryTokenWithItsDecimals(t *testing.T) {
	minter := &fakeMinter{}
	svc := newService(minter, types.ReceiptSuccess)

	res, err := svc.Fund(context.Background(), recipient)
	require.NoError(t, err)

	assert.Equal(t, "0x70997970c51812dc3a010c7d01b50e0d17dc79c8", res.RecipientAddress)
	assert.NotEmpty(t, res.RequestID)
	require.Len(t, res.Mints, 2)
	assert.Equal(t, "NGNT", res.Mints[0].Symbol)
	assert.Equal(t, "1000000000", res.Mints[0].Amount)
	assert.Equal(t, "CNYT", res.Mints[1].Symbol)
	assert.Equal(t, "1000000000000000000000", res.Mints[1].Amount)
	assert.Equal(t, int32(2), minter.calls.Load())
}

func TestFund_ConcurrentCallsShareOneRun(t *testing.T) {
	minter := &fakeMinter{gate: make(chan struct{})}
	svc := newService(minter, types.ReceiptSuccess)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = svc.Fund(context.Background(), recipient)
	}()
	require.Eventually(t, func() bool { return minter.calls.Load() > 0 }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		// differently cased address coalesces with the first call
		results[1], errs[1] = svc.Fund(context.Background(), "0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	}()
	time.Sleep(20 * time.Millisecond)
	close(minter.gate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(2), minter.calls.Load(), "one mint per token, not per caller")
	assert.Equal(t, results[0].RequestID, results[1].RequestID)
}

func TestFund_InvalidRecipient(t *testing.T) {
	minter := &fakeMinter{}
	svc := newService(minter, types.ReceiptSuccess)

	_, err := svc.Fund(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	assert.Zero(t, minter.calls.Load())
}

func TestFund_RevertedMintFails(t *testing.T) {
	svc := newService(&fakeMinter{}, types.ReceiptReverted)

	_, err := svc.Fund(context.Background(), recipient)
	assert.ErrorIs(t, err, ErrMintFailed)
}

func TestFund_NoTokens(t *testing.T) {
	svc := NewService(context.Background(), &fakeMinter{}, fakeMeta{}, fakeFinalizer{}, Config{}, zap.NewNop(), nil)

	_, err := svc.Fund(context.Background(), recipient)
	assert.ErrorIs(t, err, ErrNoTokens)
}

// flakyMeta fails the first failures reads of every token
type flakyMeta struct {
	failures int32
	reads    atomic.Int32
}

func (f *flakyMeta) TokenMetadata(ctx context.Context, address string) (types.Token, error) {
	if f.reads.Add(1) <= f.failures {
		return types.Token{}, errors.New("503 Service Unavailable")
	}
	return fakeMeta{}.TokenMetadata(ctx, address)
}

func TestFund_RetriesMetadataWithBackoff(t *testing.T) {
	minter := &fakeMinter{}
	meta := &flakyMeta{failures: 2}
	svc := NewService(context.Background(), minter, meta, fakeFinalizer{status: types.ReceiptSuccess},
		Config{
			Tokens: []string{ngnt},
			Retry:  retrier.New(retrier.WithMaxRetries(3), retrier.WithInitialInterval(time.Millisecond)),
		}, zap.NewNop(), nil)

	res, err := svc.Fund(context.Background(), recipient)

	require.NoError(t, err)
	require.Len(t, res.Mints, 1)
	assert.Equal(t, "NGNT", res.Mints[0].Symbol)
	assert.EqualValues(t, 3, meta.reads.Load())
	assert.EqualValues(t, 1, minter.calls.Load())
}

func TestFund_MetadataRetriesExhausted(t *testing.T) {
	minter := &fakeMinter{}
	meta := &flakyMeta{failures: 100}
	svc := NewService(context.Background(), minter, meta, fakeFinalizer{status: types.ReceiptSuccess},
		Config{
			Tokens: []string{ngnt},
			Retry:  retrier.New(retrier.WithMaxRetries(2), retrier.WithInitialInterval(time.Millisecond)),
		}, zap.NewNop(), nil)

	_, err := svc.Fund(context.Background(), recipient)

	assert.ErrorContains(t, err, "503")
	assert.EqualValues(t, 3, meta.reads.Load())
	assert.Zero(t, minter.calls.Load())
}
