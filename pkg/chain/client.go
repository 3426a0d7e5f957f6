// Package chain talks to the Tempo node: DEX quotes and swaps, ERC-20 calls and receipts.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"tempo-swap/pkg/metrics"
	"tempo-swap/pkg/types"
	"tempo-swap/pkg/wallet"
)

// maxUint128 bounds amounts accepted by the DEX
var maxUint128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// ErrAmountTooLarge is returned for amounts that do not fit the DEX's uint128 arguments
var ErrAmountTooLarge = errors.New("amount exceeds uint128")

// Backend is the subset of ethclient.Client the adapter needs
type Backend interface {
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.TransactionSender
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Config describes the node and contracts
type Config struct {
	RPCURL     string
	ChainID    int64
	DEXAddress string
	// GasPrice and GasLimit override the node's suggestion and estimate when set
	GasPrice *int64
	GasLimit *uint64
}

// Client implements the venue, allowance, metadata and receipt capabilities
type Client struct {
	cfg     Config
	backend Backend
	closer  func()
	wallet  *wallet.Wallet
	dex     common.Address
	dexABI  abi.ABI
	erc20   abi.ABI
	l       *zap.Logger
	m       *metrics.EngineMetrics

	// serialises nonce allocation for concurrent sends from one key
	nonceMu   sync.Mutex
	nextNonce *uint64
}

// Dial connects to cfg.RPCURL. w may be nil for a read-only client.
func Dial(cfg Config, w *wallet.Wallet, l *zap.Logger, m *metrics.EngineMetrics) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}

	ec, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	c, err := NewClient(ec, cfg, w, l, m)
	if err != nil {
		ec.Close()
		return nil, err
	}
	c.closer = ec.Close
	return c, nil
}

// NewClient wraps an existing backend
func NewClient(backend Backend, cfg Config, w *wallet.Wallet, l *zap.Logger, m *metrics.EngineMetrics) (*Client, error) {
	if cfg.DEXAddress != "" && !common.IsHexAddress(cfg.DEXAddress) {
		return nil, fmt.Errorf("invalid DEX address: %s", cfg.DEXAddress)
	}

	dex, err := abi.JSON(strings.NewReader(dexABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DEX ABI: %w", err)
	}
	erc20, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	return &Client{
		cfg:     cfg,
		backend: backend,
		wallet:  w,
		dex:     common.HexToAddress(cfg.DEXAddress),
		dexABI:  dex,
		erc20:   erc20,
		l:       l,
		m:       m,
	}, nil
}

// Account returns the signing address, empty for a read-only client
func (c *Client) Account() string {
	return c.wallet.Address()
}

// DEXAddress returns the exchange contract granted allowances
func (c *Client) DEXAddress() string {
	return c.dex.Hex()
}

// ChainID returns the chain the node serves
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.backend.ChainID(ctx)
	c.m.ObserveRPC("eth_chainId", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	return id, nil
}

// QuoteExactIn asks the DEX how much tokenOut amountIn buys
func (c *Client) QuoteExactIn(ctx context.Context, tokenIn, tokenOut string, amountIn *uint256.Int) (*uint256.Int, error) {
	return c.quote(ctx, "quoteSwapExactAmountIn", tokenIn, tokenOut, amountIn)
}

// QuoteExactOut asks the DEX how much tokenIn is needed to receive amountOut
func (c *Client) QuoteExactOut(ctx context.Context, tokenIn, tokenOut string, amountOut *uint256.Int) (*uint256.Int, error) {
	return c.quote(ctx, "quoteSwapExactAmountOut", tokenIn, tokenOut, amountOut)
}

func (c *Client) quote(ctx context.Context, method, tokenIn, tokenOut string, amount *uint256.Int) (*uint256.Int, error) {
	if amount.Gt(maxUint128) {
		return nil, ErrAmountTooLarge
	}
	out, err := c.call(ctx, c.dexABI, c.dex, method,
		common.HexToAddress(tokenIn), common.HexToAddress(tokenOut), amount.ToBig())
	if err != nil {
		return nil, err
	}
	return bigResult(out, method)
}

// SwapExactIn sells amountIn of tokenIn, reverting below minOut
func (c *Client) SwapExactIn(ctx context.Context, tokenIn, tokenOut string, amountIn, minOut *uint256.Int) (string, error) {
	return c.swap(ctx, "swapExactAmountIn", tokenIn, tokenOut, amountIn, minOut)
}

// SwapExactOut buys amountOut of tokenOut, reverting above maxIn
func (c *Client) SwapExactOut(ctx context.Context, tokenIn, tokenOut string, amountOut, maxIn *uint256.Int) (string, error) {
	return c.swap(ctx, "swapExactAmountOut", tokenIn, tokenOut, amountOut, maxIn)
}

func (c *Client) swap(ctx context.Context, method, tokenIn, tokenOut string, amount, limit *uint256.Int) (string, error) {
	if amount.Gt(maxUint128) || limit.Gt(maxUint128) {
		return "", ErrAmountTooLarge
	}
	data, err := c.dexABI.Pack(method,
		common.HexToAddress(tokenIn), common.HexToAddress(tokenOut), amount.ToBig(), limit.ToBig())
	if err != nil {
		return "", fmt.Errorf("failed to pack %s data: %w", method, err)
	}
	return c.send(ctx, c.dex, data, method)
}

// Allowance reads how much of token spender may move for owner
func (c *Client) Allowance(ctx context.Context, owner, token, spender string) (*uint256.Int, error) {
	out, err := c.call(ctx, c.erc20, common.HexToAddress(token), "allowance",
		common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, err
	}
	return bigResult(out, "allowance")
}

// Approve grants spender exactly amount of token
func (c *Client) Approve(ctx context.Context, token, spender string, amount *uint256.Int) (string, error) {
	data, err := c.erc20.Pack("approve", common.HexToAddress(spender), amount.ToBig())
	if err != nil {
		return "", fmt.Errorf("failed to pack approve data: %w", err)
	}
	return c.send(ctx, common.HexToAddress(token), data, "approve")
}

// Mint creates amount of token for to. Only the token's minter may call it.
func (c *Client) Mint(ctx context.Context, token, to string, amount *uint256.Int) (string, error) {
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid recipient address: %s", to)
	}
	data, err := c.erc20.Pack("mint", common.HexToAddress(to), amount.ToBig())
	if err != nil {
		return "", fmt.Errorf("failed to pack mint data: %w", err)
	}
	return c.send(ctx, common.HexToAddress(token), data, "mint")
}

// BalanceOf reads the token balance of account
func (c *Client) BalanceOf(ctx context.Context, token, account string) (*uint256.Int, error) {
	out, err := c.call(ctx, c.erc20, common.HexToAddress(token), "balanceOf", common.HexToAddress(account))
	if err != nil {
		return nil, err
	}
	return bigResult(out, "balanceOf")
}

// TokenMetadata resolves name, symbol and decimals of an ERC-20 token
func (c *Client) TokenMetadata(ctx context.Context, address string) (types.Token, error) {
	if !common.IsHexAddress(address) {
		return types.Token{}, fmt.Errorf("invalid token address: %s", address)
	}
	addr := common.HexToAddress(address)

	name, err := c.call(ctx, c.erc20, addr, "name")
	if err != nil {
		return types.Token{}, err
	}
	symbol, err := c.call(ctx, c.erc20, addr, "symbol")
	if err != nil {
		return types.Token{}, err
	}
	decimals, err := c.call(ctx, c.erc20, addr, "decimals")
	if err != nil {
		return types.Token{}, err
	}

	tok := types.Token{Address: addr.Hex()}
	var ok bool
	if tok.Name, ok = name[0].(string); !ok {
		return types.Token{}, fmt.Errorf("unexpected name result for %s", address)
	}
	if tok.Symbol, ok = symbol[0].(string); !ok {
		return types.Token{}, fmt.Errorf("unexpected symbol result for %s", address)
	}
	if tok.Decimals, ok = decimals[0].(uint8); !ok {
		return types.Token{}, fmt.Errorf("unexpected decimals result for %s", address)
	}
	return tok, nil
}

// Receipt returns the finality result for hash, or nil while it is not mined
func (c *Client) Receipt(ctx context.Context, hash string) (*types.FinalityResult, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		c.m.ObserveRPC("eth_getTransactionReceipt", nil)
		return nil, nil
	}
	c.m.ObserveRPC("eth_getTransactionReceipt", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	res := &types.FinalityResult{
		Hash:    hash,
		Status:  types.ReceiptReverted,
		GasUsed: receipt.GasUsed,
	}
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		res.Status = types.ReceiptSuccess
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return res, nil
}

// Close closes the client connection
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

func (c *Client) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s data: %w", method, err)
	}

	msg := ethereum.CallMsg{
		From: c.wallet.CommonAddress(),
		To:   &to,
		Data: data,
	}
	result, err := c.backend.CallContract(ctx, msg, nil)
	c.m.ObserveRPC("eth_call", err)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}

	out, err := contract.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, to common.Address, data []byte, method string) (string, error) {
	if c.wallet == nil {
		return "", wallet.ErrNoKey
	}
	from := c.wallet.CommonAddress()

	gasPrice, err := c.getGasPrice(ctx)
	if err != nil {
		return "", err
	}

	gasLimit, err := c.gasLimit(ctx, from, to, data)
	if err != nil {
		return "", fmt.Errorf("failed to estimate gas for %s: %w", method, err)
	}

	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	c.m.ObserveRPC("eth_getTransactionCount", err)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	if c.nextNonce != nil && *c.nextNonce > nonce {
		nonce = *c.nextNonce
	}

	tx := ethtypes.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := c.wallet.SignTx(tx, big.NewInt(c.cfg.ChainID))
	if err != nil {
		return "", err
	}

	err = c.backend.SendTransaction(ctx, signed)
	c.m.ObserveRPC("eth_sendRawTransaction", err)
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	next := nonce + 1
	c.nextNonce = &next

	c.l.Debug("transaction sent",
		zap.String("method", method),
		zap.String("hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gasLimit))

	return signed.Hash().Hex(), nil
}

func (c *Client) gasLimit(ctx context.Context, from, to common.Address, data []byte) (uint64, error) {
	if c.cfg.GasLimit != nil {
		return *c.cfg.GasLimit, nil
	}

	estimated, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	c.m.ObserveRPC("eth_estimateGas", err)
	if err != nil {
		return 0, err
	}
	return estimated * 120 / 100, nil // Add 20% buffer
}

// getGasPrice returns the gas price to use for transactions
func (c *Client) getGasPrice(ctx context.Context) (*big.Int, error) {
	if c.cfg.GasPrice != nil {
		return big.NewInt(*c.cfg.GasPrice), nil
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	c.m.ObserveRPC("eth_gasPrice", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

func bigResult(out []interface{}, method string) (*uint256.Int, error) {
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, out[0])
	}
	res, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%s result overflows uint256", method)
	}
	return res, nil
}
