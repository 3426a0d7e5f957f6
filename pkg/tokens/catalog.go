// Package tokens resolves token metadata once per session.
package tokens

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tempo-swap/pkg/types"
)

// FallbackDecimals is assumed when a token's metadata cannot be read
const FallbackDecimals uint8 = 6

// ErrUnknownToken is returned when a symbol is not in the catalog
var ErrUnknownToken = errors.New("unknown token")

// MetadataReader reads ERC-20 metadata from the chain
type MetadataReader interface {
	TokenMetadata(ctx context.Context, address string) (types.Token, error)
}

// Catalog maps configured symbols to resolved tokens
type Catalog struct {
	reader MetadataReader
	l      *zap.Logger

	// configured maps upper-case symbol to address
	configured map[string]string

	mu       sync.Mutex
	resolved map[string]*types.Token
}

// NewCatalog creates a catalog over configured symbol -> address pairs
func NewCatalog(reader MetadataReader, configured map[string]string, l *zap.Logger) *Catalog {
	c := &Catalog{
		reader:     reader,
		l:          l,
		configured: make(map[string]string, len(configured)),
		resolved:   make(map[string]*types.Token),
	}
	for sym, addr := range configured {
		c.configured[strings.ToUpper(sym)] = addr
	}
	return c
}

// Symbols returns the configured symbols, sorted
func (c *Catalog) Symbols() []string {
	out := make([]string, 0, len(c.configured))
	for sym := range c.configured {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the token for a configured symbol. Metadata is fetched on
// first use and cached; a failed lookup yields the configured symbol with
// fallback decimals.
func (c *Catalog) Resolve(ctx context.Context, symbol string) (*types.Token, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	addr, ok := c.configured[symbol]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownToken, "%s", symbol)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if tok, ok := c.resolved[symbol]; ok {
		return tok, nil
	}

	meta, err := c.reader.TokenMetadata(ctx, addr)
	if err != nil {
		c.l.Warn("token metadata unavailable, using fallback",
			zap.String("symbol", symbol),
			zap.String("address", addr),
			zap.Error(err))
		// not cached so a later call can retry
		return &types.Token{Address: addr, Symbol: symbol, Name: symbol, Decimals: FallbackDecimals}, nil
	}

	tok := &meta
	c.resolved[symbol] = tok
	return tok, nil
}

// All resolves every configured token, sorted by symbol
func (c *Catalog) All(ctx context.Context) ([]*types.Token, error) {
	out := make([]*types.Token, 0, len(c.configured))
	for _, sym := range c.Symbols() {
		tok, err := c.Resolve(ctx, sym)
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}
