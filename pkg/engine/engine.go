// Package engine wires the swap components into the boundary the CLI and server use.
package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tempo-swap/config"
	"tempo-swap/pkg/activity"
	"tempo-swap/pkg/allowance"
	"tempo-swap/pkg/chain"
	"tempo-swap/pkg/faucet"
	"tempo-swap/pkg/metrics"
	"tempo-swap/pkg/quote"
	"tempo-swap/pkg/receipt"
	"tempo-swap/pkg/swap"
	"tempo-swap/pkg/tokens"
	"tempo-swap/pkg/types"
	"tempo-swap/pkg/wallet"
)

// Engine is the hosting application's view of the swap core
type Engine struct {
	Quotes   *quote.Service
	Executor *swap.Executor
	Ledger   *activity.Ledger
	Tokens   *tokens.Catalog
	Poller   *receipt.Poller
	Client   *chain.Client
	Session  *wallet.Session
	Faucet   *faucet.Service

	slippageBps uint64
	l           *zap.Logger
	closers     []func() error
}

// Options carries hooks the host installs on the executor
type Options struct {
	OnState   func(swap.StateChange)
	OnSettled func(account string, res *types.FinalityResult)
}

// Open dials the node and assembles every component from cfg. Background
// confirmations and faucet runs live as long as ctx.
func Open(ctx context.Context, cfg *config.Config, l *zap.Logger, opts Options) (*Engine, error) {
	m := metrics.Engine()

	var w *wallet.Wallet
	if cfg.PrivateKey != "" {
		var err error
		if w, err = wallet.FromHex(cfg.PrivateKey); err != nil {
			return nil, err
		}
	}

	client, err := chain.Dial(chainConfig(cfg), w, l, m)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := OpenStore(cfg.Ledger)
	if err != nil {
		client.Close()
		return nil, err
	}

	e := New(ctx, Components{
		Client:      client,
		Session:     wallet.NewSession(w, client, cfg.ChainID),
		Store:       store,
		ExplorerURL: cfg.ExplorerURL,
		Tokens:      cfg.Tokens,
		SlippageBps: cfg.SlippageBps,
		Poll:        cfg.PollInterval,
	}, l, m, opts)
	e.closers = append(e.closers, closeStore, func() error { client.Close(); return nil })

	if cfg.Faucet.PrivateKey != "" {
		fw, err := wallet.FromHex(cfg.Faucet.PrivateKey)
		if err != nil {
			_ = e.Close()
			return nil, errors.Wrap(err, "faucet key")
		}
		fc, err := chain.Dial(chainConfig(cfg), fw, l.Named("faucet"), m)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.closers = append(e.closers, func() error { fc.Close(); return nil })
		e.Faucet = faucet.NewService(ctx, fc, fc, e.Poller, faucet.Config{
			Tokens: cfg.Faucet.Tokens,
			Amount: cfg.Faucet.Amount,
		}, l.Named("faucet"), m)
	}

	return e, nil
}

// Components are the concrete collaborators New wires together
type Components struct {
	Client      *chain.Client
	Session     *wallet.Session
	Store       activity.Store
	ExplorerURL string
	Tokens      map[string]string
	SlippageBps uint64
	Poll        time.Duration
}

// New assembles an engine over an existing client
func New(ctx context.Context, c Components, l *zap.Logger, m *metrics.EngineMetrics, opts Options) *Engine {
	poller := receipt.NewPoller(c.Client, l, receipt.WithInterval(c.Poll))
	ledger := activity.NewLedger(c.Store, l, activity.WithExplorerURL(c.ExplorerURL))
	quotes := quote.NewService(c.Client, l, quote.WithErrorFormatter(swap.UserMessage), quote.WithMetrics(m))
	approver := allowance.NewManager(c.Client, poller, l, m)

	execOpts := []swap.Option{swap.WithMetrics(m)}
	if opts.OnState != nil {
		execOpts = append(execOpts, swap.WithOnState(opts.OnState))
	}
	if opts.OnSettled != nil {
		execOpts = append(execOpts, swap.WithOnSettled(opts.OnSettled))
	}

	executor := swap.NewExecutor(ctx, swap.Deps{
		Venue:     c.Client,
		Quoter:    quotes,
		Approver:  approver,
		Finalizer: poller,
		Recorder:  ledger,
		Network:   c.Session,
		Spender:   c.Client.DEXAddress(),
	}, l, execOpts...)

	return &Engine{
		Quotes:      quotes,
		Executor:    executor,
		Ledger:      ledger,
		Tokens:      tokens.NewCatalog(c.Client, c.Tokens, l),
		Poller:      poller,
		Client:      c.Client,
		Session:     c.Session,
		slippageBps: c.SlippageBps,
		l:           l,
	}
}

// Account returns the connected account
func (e *Engine) Account() string {
	return e.Session.Account()
}

// Request resolves symbols into a quote request
func (e *Engine) Request(ctx context.Context, from, to, amount string, mode types.Mode) (quote.Request, error) {
	in, err := e.Tokens.Resolve(ctx, from)
	if err != nil {
		return quote.Request{}, err
	}
	out, err := e.Tokens.Resolve(ctx, to)
	if err != nil {
		return quote.Request{}, err
	}
	return quote.Request{From: in, To: out, Amount: amount, Mode: mode}, nil
}

// RefreshQuote recomputes the display quote for req
func (e *Engine) RefreshQuote(ctx context.Context, req quote.Request) (types.Quote, string) {
	e.Quotes.Update(ctx, req)
	return e.Quotes.Display()
}

// DisplayQuote returns the current non-binding quote and its display error
func (e *Engine) DisplayQuote() (types.Quote, string) {
	return e.Quotes.Display()
}

// SubmitSwap runs req through the executor against the current display quote.
// Confirmation continues in the background.
func (e *Engine) SubmitSwap(ctx context.Context, req quote.Request) (swap.Submission, error) {
	display, _ := e.Quotes.Display()

	intent := types.SwapIntent{
		Account:     e.Account(),
		InputToken:  req.From,
		OutputToken: req.To,
		Mode:        req.Mode,
		HumanAmount: req.Amount,
		SlippageBps: e.slippageBps,
	}

	sub, err := e.Executor.Submit(ctx, intent, display)
	if err != nil {
		return swap.Submission{}, err
	}

	// the submitted amount is spent; the next quote must be fetched again
	e.Quotes.Invalidate()
	return sub, nil
}

// Activity returns the account's log, newest first
func (e *Engine) Activity(ctx context.Context, account string) []types.ActivityEntry {
	return e.Ledger.Read(ctx, account)
}

// EndSession discards the activity of every account for this session
func (e *Engine) EndSession() error {
	return e.Ledger.EndSession()
}

// Fund mints faucet tokens to recipient
func (e *Engine) Fund(ctx context.Context, recipient string) (faucet.Result, error) {
	if e.Faucet == nil {
		return faucet.Result{}, errors.New("faucet is not configured; set faucet.private_key")
	}
	return e.Faucet.Fund(ctx, recipient)
}

// Close releases the node connections and the ledger store
func (e *Engine) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	e.closers = nil
	return first
}

func chainConfig(cfg *config.Config) chain.Config {
	return chain.Config{
		RPCURL:     cfg.RPCURL,
		ChainID:    cfg.ChainID,
		DEXAddress: cfg.DEXAddress,
	}
}
