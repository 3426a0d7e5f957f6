package chain

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempo-swap/pkg/types"
	"tempo-swap/pkg/wallet"
)

const (
	testKey   = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	dexAddr   = "0xDEc0000000000000000000000000000000000000"
	tokenAddr = "0x00000000000000000000000000000000000000aA"
)

type fakeBackend struct {
	t     *testing.T
	dex   abi.ABI
	erc20 abi.ABI

	mu       sync.Mutex
	sent     []*ethtypes.Transaction
	receipts map[common.Hash]*ethtypes.Receipt
	callErr  error
}

func newFakeBackend(t *testing.T) *fakeBackend {
	dex, err := abi.JSON(strings.NewReader(dexABI))
	require.NoError(t, err)
	erc20, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)
	return &fakeBackend{t: t, dex: dex, erc20: erc20, receipts: map[common.Hash]*ethtypes.Receipt{}}
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}

	if m, err := f.dex.MethodById(call.Data[:4]); err == nil {
		args, err := m.Inputs.Unpack(call.Data[4:])
		require.NoError(f.t, err)
		amount := args[2].(*big.Int)
		switch m.Name {
		case "quoteSwapExactAmountIn":
			return m.Outputs.Pack(new(big.Int).Div(new(big.Int).Mul(amount, big.NewInt(99)), big.NewInt(100)))
		case "quoteSwapExactAmountOut":
			return m.Outputs.Pack(new(big.Int).Div(new(big.Int).Mul(amount, big.NewInt(101)), big.NewInt(100)))
		}
	}

	m, err := f.erc20.MethodById(call.Data[:4])
	require.NoError(f.t, err)
	switch m.Name {
	case "name":
		return m.Outputs.Pack("Alpha USD")
	case "symbol":
		return m.Outputs.Pack("AUSD")
	case "decimals":
		return m.Outputs.Pack(uint8(6))
	case "allowance":
		return m.Outputs.Pack(big.NewInt(42))
	case "balanceOf":
		return m.Outputs.Pack(big.NewInt(1_000_000))
	}
	f.t.Fatalf("unexpected call %s", m.Name)
	return nil, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 5, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(42431), nil
}

func newTestClient(t *testing.T) (*Client, *fakeBackend) {
	t.Helper()
	w, err := wallet.FromHex(testKey)
	require.NoError(t, err)

	backend := newFakeBackend(t)
	c, err := NewClient(backend, Config{ChainID: 42431, DEXAddress: dexAddr}, w, zap.NewNop(), nil)
	require.NoError(t, err)
	return c, backend
}

func TestClient_Quotes(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	out, err := c.QuoteExactIn(ctx, tokenAddr, dexAddr, uint256.NewInt(100_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(99_000_000), out)

	in, err := c.QuoteExactOut(ctx, tokenAddr, dexAddr, uint256.NewInt(100_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(101_000_000), in)

	tooLarge := new(uint256.Int).Lsh(uint256.NewInt(1), 130)
	_, err = c.QuoteExactIn(ctx, tokenAddr, dexAddr, tooLarge)
	assert.ErrorIs(t, err, ErrAmountTooLarge)
}

func TestClient_TokenMetadata(t *testing.T) {
	c, _ := newTestClient(t)

	tok, err := c.TokenMetadata(context.Background(), tokenAddr)
	require.NoError(t, err)
	assert.Equal(t, types.Token{
		Address:  common.HexToAddress(tokenAddr).Hex(),
		Symbol:   "AUSD",
		Name:     "Alpha USD",
		Decimals: 6,
	}, tok)

	_, err = c.TokenMetadata(context.Background(), "not-an-address")
	assert.Error(t, err)
}

func TestClient_Allowance(t *testing.T) {
	c, _ := newTestClient(t)

	v, err := c.Allowance(context.Background(), c.Account(), tokenAddr, dexAddr)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(42), v)
}

func TestClient_ApproveSignsAndSends(t *testing.T) {
	c, backend := newTestClient(t)

	hash, err := c.Approve(context.Background(), tokenAddr, dexAddr, uint256.NewInt(100_000_000))
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, tx.Hash().Hex(), hash)
	assert.Equal(t, common.HexToAddress(tokenAddr), *tx.To())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, uint64(5), tx.Nonce())

	sender, err := ethtypes.Sender(ethtypes.NewEIP155Signer(big.NewInt(42431)), tx)
	require.NoError(t, err)
	assert.Equal(t, c.Account(), sender.Hex())

	m, err := backend.erc20.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "approve", m.Name)
	args, err := m.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(dexAddr), args[0])
	assert.Equal(t, big.NewInt(100_000_000), args[1])
}

func TestClient_SwapUsesLocalNonceSequence(t *testing.T) {
	c, backend := newTestClient(t)
	ctx := context.Background()

	_, err := c.SwapExactIn(ctx, tokenAddr, dexAddr, uint256.NewInt(10), uint256.NewInt(9))
	require.NoError(t, err)
	_, err = c.SwapExactOut(ctx, tokenAddr, dexAddr, uint256.NewInt(10), uint256.NewInt(11))
	require.NoError(t, err)

	require.Len(t, backend.sent, 2)
	assert.Equal(t, uint64(5), backend.sent[0].Nonce())
	assert.Equal(t, uint64(6), backend.sent[1].Nonce())

	m, err := backend.dex.MethodById(backend.sent[1].Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "swapExactAmountOut", m.Name)
}

func TestClient_ReadOnlyCannotSend(t *testing.T) {
	c, err := NewClient(newFakeBackend(t), Config{ChainID: 42431, DEXAddress: dexAddr}, nil, zap.NewNop(), nil)
	require.NoError(t, err)

	_, err = c.Approve(context.Background(), tokenAddr, dexAddr, uint256.NewInt(1))
	assert.ErrorIs(t, err, wallet.ErrNoKey)
}

func TestClient_Receipt(t *testing.T) {
	c, backend := newTestClient(t)
	ctx := context.Background()

	pending := common.HexToHash("0x01")
	res, err := c.Receipt(ctx, pending.Hex())
	require.NoError(t, err)
	assert.Nil(t, res)

	mined := common.HexToHash("0x02")
	backend.receipts[mined] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(12), GasUsed: 50_000}
	reverted := common.HexToHash("0x03")
	backend.receipts[reverted] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(13)}

	res, err = c.Receipt(ctx, mined.Hex())
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, uint64(12), res.BlockNumber)
	assert.Equal(t, uint64(50_000), res.GasUsed)

	res, err = c.Receipt(ctx, reverted.Hex())
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptReverted, res.Status)
}

func TestClient_InvalidDEXAddress(t *testing.T) {
	_, err := NewClient(newFakeBackend(t), Config{DEXAddress: "0xnope"}, nil, zap.NewNop(), nil)
	assert.Error(t, err)
}
