package tokens

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempo-swap/pkg/types"
)

type fakeReader struct {
	calls map[string]int
	meta  map[string]types.Token
}

func (f *fakeReader) TokenMetadata(_ context.Context, address string) (types.Token, error) {
	f.calls[address]++
	tok, ok := f.meta[address]
	if !ok {
		return types.Token{}, errors.New("execution reverted")
	}
	return tok, nil
}

func newReader() *fakeReader {
	return &fakeReader{
		calls: map[string]int{},
		meta: map[string]types.Token{
			"0xaa": {Address: "0xaa", Symbol: "AlphaUSD", Name: "Alpha USD", Decimals: 6},
			"0xbb": {Address: "0xbb", Symbol: "BetaUSD", Name: "Beta USD", Decimals: 18},
		},
	}
}

func TestResolve_CachesMetadata(t *testing.T) {
	reader := newReader()
	c := NewCatalog(reader, map[string]string{"ausd": "0xaa"}, zap.NewNop())
	ctx := context.Background()

	first, err := c.Resolve(ctx, "AUSD")
	require.NoError(t, err)
	second, err := c.Resolve(ctx, "ausd")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, uint8(6), first.Decimals)
	assert.Equal(t, 1, reader.calls["0xaa"])
}

func TestResolve_FallbackWhenMetadataFails(t *testing.T) {
	reader := newReader()
	c := NewCatalog(reader, map[string]string{"NGNT": "0xcc"}, zap.NewNop())

	tok, err := c.Resolve(context.Background(), "NGNT")
	require.NoError(t, err)
	assert.Equal(t, "NGNT", tok.Symbol)
	assert.Equal(t, FallbackDecimals, tok.Decimals)
	assert.Equal(t, "0xcc", tok.Address)
}

func TestResolve_UnknownSymbol(t *testing.T) {
	c := NewCatalog(newReader(), nil, zap.NewNop())

	_, err := c.Resolve(context.Background(), "XYZ")
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestAll_SortedBySymbol(t *testing.T) {
	c := NewCatalog(newReader(), map[string]string{"BUSD": "0xbb", "AUSD": "0xaa"}, zap.NewNop())

	all, err := c.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "AlphaUSD", all[0].Symbol)
	assert.Equal(t, "BetaUSD", all[1].Symbol)
	assert.Equal(t, []string{"AUSD", "BUSD"}, c.Symbols())
}
