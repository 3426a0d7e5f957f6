// Package wallet holds the signing account and reports whether it is on the expected network.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ErrNoKey is returned when signing is requested from a read-only wallet
var ErrNoKey = errors.New("no private key configured")

// Wallet is an account backed by a local private key
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// FromHex parses a hex private key, with or without 0x prefix
func FromHex(key string) (*Wallet, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrNoKey
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to get public key")
	}

	return &Wallet{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKey),
	}, nil
}

// Address returns the checksummed account address, or empty for a nil wallet
func (w *Wallet) Address() string {
	if w == nil {
		return ""
	}
	return w.address.Hex()
}

// CommonAddress returns the account as a go-ethereum address
func (w *Wallet) CommonAddress() common.Address {
	if w == nil {
		return common.Address{}
	}
	return w.address
}

// SignTx signs a legacy transaction with EIP-155 replay protection
func (w *Wallet) SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	if w == nil || w.privateKey == nil {
		return nil, ErrNoKey
	}

	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(chainID), w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// ChainIDReader reports the chain the node is serving
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Session is the account/network context the swap executor reads
type Session struct {
	wallet   *Wallet
	chain    ChainIDReader
	expected *big.Int
}

// NewSession binds a wallet to the node it signs for
func NewSession(w *Wallet, chain ChainIDReader, expectedChainID int64) *Session {
	return &Session{wallet: w, chain: chain, expected: big.NewInt(expectedChainID)}
}

// Account returns the connected account, empty when no key is configured
func (s *Session) Account() string {
	return s.wallet.Address()
}

// OnExpectedNetwork compares the node's chain ID with the configured one
func (s *Session) OnExpectedNetwork(ctx context.Context) (bool, error) {
	id, err := s.chain.ChainID(ctx)
	if err != nil {
		return false, errors.Wrap(err, "read chain id")
	}
	return id.Cmp(s.expected) == 0, nil
}
