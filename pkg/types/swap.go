package types

import (
	"strings"
	"time"

	"github.com/holiman/uint256"
)

// DefaultSlippageBps is the swap tolerance applied when none is configured (0.5%).
const DefaultSlippageBps uint64 = 50

// Mode selects which side of a swap is fixed by the user
type Mode string

const (
	ExactInput  Mode = "sell" // input amount fixed, output quoted
	ExactOutput Mode = "buy"  // output amount fixed, input quoted
)

// Valid reports whether m is one of the known modes
func (m Mode) Valid() bool {
	return m == ExactInput || m == ExactOutput
}

// Token identifies an ERC-20 token resolved from the chain
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

// Resolved reports whether the token carries an address
func (t *Token) Resolved() bool {
	return t != nil && t.Address != ""
}

// SameAs compares token addresses case-insensitively
func (t *Token) SameAs(other *Token) bool {
	if !t.Resolved() || !other.Resolved() {
		return false
	}
	return strings.EqualFold(t.Address, other.Address)
}

// Quote is a point-in-time venue estimate.
//
// For ExactInput, Requested is the input amount and Result the quoted output.
// For ExactOutput, Requested is the output amount and Result the quoted input.
type Quote struct {
	InputToken  Token        `json:"input_token"`
	OutputToken Token        `json:"output_token"`
	Mode        Mode         `json:"mode"`
	Requested   *uint256.Int `json:"requested"`
	Result      *uint256.Int `json:"result"`
	Binding     bool         `json:"binding"`
	At          time.Time    `json:"at"`
}

// Empty reports whether the quote carries no executable result
func (q Quote) Empty() bool {
	return q.Result == nil || q.Result.IsZero()
}

// ResultDecimals returns the precision of the token Result is denominated in
func (q Quote) ResultDecimals() uint8 {
	if q.Mode == ExactOutput {
		return q.InputToken.Decimals
	}
	return q.OutputToken.Decimals
}

// SwapIntent is constructed once per user submission and never mutated
type SwapIntent struct {
	Account     string `json:"account"`
	InputToken  *Token `json:"input_token"`
	OutputToken *Token `json:"output_token"`
	Mode        Mode   `json:"mode"`
	HumanAmount string `json:"amount"`
	SlippageBps uint64 `json:"slippage_bps"`
}

// FixedToken returns the token whose amount the user typed
func (i SwapIntent) FixedToken() *Token {
	if i.Mode == ExactOutput {
		return i.OutputToken
	}
	return i.InputToken
}

// ReceiptStatus is the finalized outcome of a transaction
type ReceiptStatus string

const (
	ReceiptSuccess  ReceiptStatus = "success"
	ReceiptReverted ReceiptStatus = "reverted"
)

// FinalityResult holds the authoritative outcome of a mined transaction
type FinalityResult struct {
	Hash        string        `json:"hash"`
	Status      ReceiptStatus `json:"status"`
	BlockNumber uint64        `json:"block_number"`
	GasUsed     uint64        `json:"gas_used"`
}

// Succeeded reports whether the transaction finalized with a success status
func (r *FinalityResult) Succeeded() bool {
	return r != nil && r.Status == ReceiptSuccess
}
