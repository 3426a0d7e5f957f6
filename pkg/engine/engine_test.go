package engine

import (
	"context"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempo-swap/config"
	"tempo-swap/pkg/activity"
	"tempo-swap/pkg/chain"
	"tempo-swap/pkg/swap"
	"tempo-swap/pkg/types"
	"tempo-swap/pkg/wallet"
)

const (
	testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	dexAddr = "0xDEc0000000000000000000000000000000000000"
	ngnt    = "0x00000000000000000000000000000000000000a1"
	cnyt    = "0x00000000000000000000000000000000000000a2"
)

// Minimal ABI fragments the fake node decodes
const (
	fakeDexABI = `[
{"name":"quoteSwapExactAmountIn","type":"function","inputs":[{"name":"a","type":"address"},{"name":"b","type":"address"},{"name":"c","type":"uint128"}],"outputs":[{"name":"","type":"uint128"}]},
{"name":"quoteSwapExactAmountOut","type":"function","inputs":[{"name":"a","type":"address"},{"name":"b","type":"address"},{"name":"c","type":"uint128"}],"outputs":[{"name":"","type":"uint128"}]},
{"name":"swapExactAmountIn","type":"function","inputs":[{"name":"a","type":"address"},{"name":"b","type":"address"},{"name":"c","type":"uint128"},{"name":"d","type":"uint128"}],"outputs":[{"name":"","type":"uint128"}]}
]`
	fakeERC20ABI = `[
{"name":"name","type":"function","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"name":"symbol","type":"function","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"name":"decimals","type":"function","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"name":"allowance","type":"function","inputs":[{"name":"o","type":"address"},{"name":"s","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"name":"approve","type":"function","inputs":[{"name":"s","type":"address"},{"name":"a","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`
)

// fakeNode is an in-memory DEX with two 6-decimal tokens priced at 0.99
type fakeNode struct {
	t     *testing.T
	dex   abi.ABI
	erc20 abi.ABI

	mu         sync.Mutex
	allowances map[common.Address]*big.Int
	sent       []string
	receipts   map[common.Hash]*ethtypes.Receipt
}

func newFakeNode(t *testing.T) *fakeNode {
	dex, err := abi.JSON(strings.NewReader(fakeDexABI))
	require.NoError(t, err)
	erc20, err := abi.JSON(strings.NewReader(fakeERC20ABI))
	require.NoError(t, err)
	return &fakeNode{
		t:          t,
		dex:        dex,
		erc20:      erc20,
		allowances: map[common.Address]*big.Int{},
		receipts:   map[common.Hash]*ethtypes.Receipt{},
	}
}

func (n *fakeNode) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if m, err := n.dex.MethodById(call.Data[:4]); err == nil {
		args, err := m.Inputs.Unpack(call.Data[4:])
		require.NoError(n.t, err)
		amount := args[2].(*big.Int)
		return m.Outputs.Pack(new(big.Int).Div(new(big.Int).Mul(amount, big.NewInt(99)), big.NewInt(100)))
	}

	m, err := n.erc20.MethodById(call.Data[:4])
	require.NoError(n.t, err)
	switch m.Name {
	case "name", "symbol":
		if *call.To == common.HexToAddress(ngnt) {
			return m.Outputs.Pack("NGNT")
		}
		return m.Outputs.Pack("CNYT")
	case "decimals":
		return m.Outputs.Pack(uint8(6))
	case "allowance":
		v, ok := n.allowances[*call.To]
		if !ok {
			v = big.NewInt(0)
		}
		return m.Outputs.Pack(v)
	}
	n.t.Fatalf("unexpected call %s", m.Name)
	return nil, nil
}

func (n *fakeNode) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 90_000, nil }

func (n *fakeNode) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (n *fakeNode) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 0, nil }

func (n *fakeNode) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if m, err := n.erc20.MethodById(tx.Data()[:4]); err == nil && m.Name == "approve" {
		args, err := m.Inputs.Unpack(tx.Data()[4:])
		require.NoError(n.t, err)
		n.allowances[*tx.To()] = args[1].(*big.Int)
		n.sent = append(n.sent, "approve")
	} else if m, err := n.dex.MethodById(tx.Data()[:4]); err == nil {
		n.sent = append(n.sent, m.Name)
	}

	n.receipts[tx.Hash()] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}
	return nil
}

func (n *fakeNode) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (n *fakeNode) ChainID(context.Context) (*big.Int, error) { return big.NewInt(42431), nil }

func newTestEngine(t *testing.T, node *fakeNode, onSettled func(string, *types.FinalityResult)) *Engine {
	t.Helper()

	w, err := wallet.FromHex(testKey)
	require.NoError(t, err)
	client, err := chain.NewClient(node, chain.Config{ChainID: 42431, DEXAddress: dexAddr}, w, zap.NewNop(), nil)
	require.NoError(t, err)

	return New(context.Background(), Components{
		Client:      client,
		Session:     wallet.NewSession(w, client, 42431),
		Store:       activity.NewMemoryStore(),
		Tokens:      map[string]string{"NGNT": ngnt, "CNYT": cnyt},
		SlippageBps: 50,
		Poll:        time.Millisecond,
	}, zap.NewNop(), nil, Options{OnSettled: onSettled})
}

func TestEngine_SubmitSwapEndToEnd(t *testing.T) {
	node := newFakeNode(t)
	settled := make(chan *types.FinalityResult, 1)
	e := newTestEngine(t, node, func(_ string, res *types.FinalityResult) { settled <- res })
	ctx := context.Background()

	req, err := e.Request(ctx, "ngnt", "CNYT", "100", types.ExactInput)
	require.NoError(t, err)

	display, displayErr := e.RefreshQuote(ctx, req)
	require.Empty(t, displayErr)
	assert.Equal(t, "99000000", display.Result.Dec())

	sub, err := e.SubmitSwap(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "98505000", sub.Limit.Dec()) // 99 * 9950 / 10000

	select {
	case res := <-settled:
		assert.True(t, res.Succeeded())
	case <-time.After(2 * time.Second):
		t.Fatal("swap not settled")
	}

	assert.Equal(t, []string{"approve", "swapExactAmountIn"}, node.sent)

	entries := e.Activity(ctx, e.Account())
	require.Len(t, entries, 1)
	assert.Equal(t, types.KindSwap, entries[0].Kind)
	assert.Equal(t, types.Leg{Amount: "100", Symbol: "NGNT"}, entries[0].Sold)
	assert.Equal(t, types.Leg{Amount: "99", Symbol: "CNYT"}, entries[0].Received)
	assert.False(t, e.Executor.Busy(e.Account()))
}

func TestEngine_SubmitWithoutDisplayQuote(t *testing.T) {
	e := newTestEngine(t, newFakeNode(t), nil)
	ctx := context.Background()

	req, err := e.Request(ctx, "NGNT", "CNYT", "1", types.ExactInput)
	require.NoError(t, err)

	_, err = e.SubmitSwap(ctx, req)
	assert.ErrorIs(t, err, swap.ErrNoExecutableQuote)
}

func TestEngine_FundWithoutFaucet(t *testing.T) {
	e := newTestEngine(t, newFakeNode(t), nil)

	_, err := e.Fund(context.Background(), "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	for _, backend := range []string{"", "memory"} {
		s, closeFn, err := OpenStore(config.LedgerConfig{Backend: backend})
		require.NoError(t, err)
		assert.IsType(t, &activity.MemoryStore{}, s)
		assert.NoError(t, closeFn())
	}

	s, _, err := OpenStore(config.LedgerConfig{Backend: "file", Dir: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &activity.FileStore{}, s)

	s, closeFn, err := OpenStore(config.LedgerConfig{Backend: "wal", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &activity.WALStore{}, s)
	assert.NoError(t, closeFn())

	_, _, err = OpenStore(config.LedgerConfig{Backend: "postgres"})
	assert.Error(t, err)
}
