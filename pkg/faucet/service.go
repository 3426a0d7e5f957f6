// Package faucet mints a fixed amount of each testnet token to a recipient,
// coalescing overlapping requests for the same address.
package faucet

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tempo-swap/pkg/coalesce"
	"tempo-swap/pkg/metrics"
	"tempo-swap/pkg/retrier"
	"tempo-swap/pkg/types"
	"tempo-swap/pkg/units"
)

// DefaultAmount is the human amount minted per token
const DefaultAmount = "1000"

var (
	ErrInvalidRecipient = errors.New("Recipient address is invalid.")
	ErrNoTokens         = errors.New("no faucet tokens configured")
	ErrMintFailed       = errors.New("mint failed")
)

// Minter issues token mints from the faucet key
type Minter interface {
	Mint(ctx context.Context, token, to string, amount *uint256.Int) (string, error)
}

// MetadataReader reads token decimals and symbols
type MetadataReader interface {
	TokenMetadata(ctx context.Context, address string) (types.Token, error)
}

// Finalizer waits for a mint to be mined
type Finalizer interface {
	AwaitFinality(ctx context.Context, hash string) (*types.FinalityResult, error)
}

// Mint describes one minted token
type Mint struct {
	Token  string `json:"token"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
	Hash   string `json:"hash"`
}

// Result is the outcome of a funding request
type Result struct {
	RequestID        string `json:"requestId"`
	RecipientAddress string `json:"recipientAddress"`
	Mints            []Mint `json:"mints"`
}

// Service funds recipients
type Service struct {
	minter    Minter
	meta      MetadataReader
	finalizer Finalizer
	tokens    []string
	amount    string
	bg        context.Context
	l         *zap.Logger
	m         *metrics.EngineMetrics

	retry    *retrier.Retrier
	inflight coalesce.Group[Result]
}

// Config lists the faucet tokens and amount
type Config struct {
	Tokens []string
	// Amount is a human amount; DefaultAmount when empty
	Amount string
	// Retry paces metadata reads; DefaultRetrier when nil
	Retry *retrier.Retrier
}

// DefaultRetrier backs off metadata reads against a flaky node
func DefaultRetrier() *retrier.Retrier {
	return retrier.New(
		retrier.WithMaxRetries(3),
		retrier.WithInitialInterval(500*time.Millisecond),
		retrier.WithMaxInterval(4*time.Second),
	)
}

// NewService creates a faucet. Shared funding calls run on bg so a caller
// giving up does not cancel the mint for the others.
func NewService(bg context.Context, minter Minter, meta MetadataReader, finalizer Finalizer, cfg Config, l *zap.Logger, m *metrics.EngineMetrics) *Service {
	amount := cfg.Amount
	if amount == "" {
		amount = DefaultAmount
	}
	retry := cfg.Retry
	if retry == nil {
		retry = DefaultRetrier()
	}
	return &Service{
		minter:    minter,
		meta:      meta,
		finalizer: finalizer,
		tokens:    cfg.Tokens,
		amount:    amount,
		retry:     retry,
		bg:        bg,
		l:         l,
		m:         m,
	}
}

// Fund mints the configured amount of every faucet token to recipient.
// Concurrent calls for the same recipient share one funding run and its outcome.
func (s *Service) Fund(ctx context.Context, recipient string) (Result, error) {
	key := strings.ToLower(strings.TrimSpace(recipient))
	if !common.IsHexAddress(key) {
		s.m.ObserveFaucet(ErrInvalidRecipient, false)
		return Result{}, ErrInvalidRecipient
	}

	res := s.inflight.RunExclusive(ctx, key, func() (Result, error) {
		return s.run(s.bg, key)
	})
	s.m.ObserveFaucet(res.Err, res.Shared)
	return res.Val, res.Err
}

func (s *Service) run(ctx context.Context, recipient string) (Result, error) {
	if len(s.tokens) == 0 {
		return Result{}, ErrNoTokens
	}

	reqID := uuid.NewString()
	log := s.l.With(zap.String("request_id", reqID), zap.String("recipient", recipient))
	log.Info("funding recipient", zap.Int("tokens", len(s.tokens)), zap.String("amount", s.amount))

	mints := make([]Mint, len(s.tokens))
	g, gctx := errgroup.WithContext(ctx)
	for i, token := range s.tokens {
		g.Go(func() error {
			mint, err := s.mintOne(gctx, token, recipient)
			if err != nil {
				return err
			}
			mints[i] = mint
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("funding failed", zap.Error(err))
		return Result{}, err
	}

	log.Info("recipient funded")
	return Result{RequestID: reqID, RecipientAddress: recipient, Mints: mints}, nil
}

func (s *Service) mintOne(ctx context.Context, token, recipient string) (Mint, error) {
	meta, err := retrier.DoWithData(s.retry, ctx, func(ctx context.Context) (types.Token, error) {
		return s.meta.TokenMetadata(ctx, token)
	})
	if err != nil {
		return Mint{}, errors.Wrapf(err, "read metadata of %s", token)
	}

	amount := units.ToFixedPoint(s.amount, meta.Decimals)
	if amount.IsZero() {
		return Mint{}, errors.Errorf("invalid faucet amount %q", s.amount)
	}

	hash, err := s.minter.Mint(ctx, token, recipient, amount)
	if err != nil {
		return Mint{}, errors.Wrapf(err, "mint %s", meta.Symbol)
	}

	res, err := s.finalizer.AwaitFinality(ctx, hash)
	if err != nil {
		return Mint{}, err
	}
	if !res.Succeeded() {
		return Mint{}, errors.Wrapf(ErrMintFailed, "%s %s", meta.Symbol, hash)
	}

	return Mint{Token: token, Symbol: meta.Symbol, Amount: amount.Dec(), Hash: hash}, nil
}
