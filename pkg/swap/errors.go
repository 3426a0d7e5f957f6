package swap

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"tempo-swap/pkg/allowance"
)

// TempoChainID is the network swaps are expected to run on (Tempo Moderato testnet)
const TempoChainID = 42431

var (
	ErrNotConnected          = errors.New("no active account")
	ErrWrongNetwork          = errors.New("account is not on the expected network")
	ErrInvalidTokenSelection = errors.New("invalid token selection")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrNoExecutableQuote     = errors.New("no executable quote")
	ErrApprovalFailed        = allowance.ErrApprovalFailed
	ErrAllowanceStale        = errors.New("allowance no longer covers the quoted input")
	ErrSubmissionRejected    = errors.New("swap submission rejected")
	ErrBusy                  = errors.New("a swap is already in progress for this account")
)

// UserMessage renders err as a stable, human-readable message.
// Known provider rejections are classified; anything else keeps its raw text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	raw := err.Error()
	lower := strings.ToLower(raw)

	switch {
	case strings.Contains(lower, "user rejected"), strings.Contains(lower, "user denied"):
		return "Transaction rejected in wallet."
	case strings.Contains(lower, "insufficient funds"):
		return "Insufficient testnet funds for gas."
	case strings.Contains(lower, "invalid chain id"):
		return fmt.Sprintf("Wallet is on the wrong chain. Switch to Tempo %d.", TempoChainID)
	case strings.Contains(lower, "missing revert data"), strings.Contains(lower, "could not coalesce"):
		return "Tempo node rejected the call. Retry once; if it persists, check pair liquidity and transfer policy."
	}

	switch {
	case errors.Is(err, ErrNotConnected):
		return "Connect a wallet first."
	case errors.Is(err, ErrWrongNetwork):
		return fmt.Sprintf("Switch to Tempo %d to swap.", TempoChainID)
	case errors.Is(err, ErrInvalidTokenSelection):
		return "Select two different tokens."
	case errors.Is(err, ErrInvalidAmount):
		return "Enter a valid amount."
	case errors.Is(err, ErrNoExecutableQuote):
		return "No executable quote for this pair and amount."
	case errors.Is(err, ErrApprovalFailed):
		return "Approval failed on-chain."
	case errors.Is(err, ErrAllowanceStale):
		return "The price moved beyond your approval. Submit the swap again."
	case errors.Is(err, ErrBusy):
		return "A swap is already in progress."
	}

	return raw
}
