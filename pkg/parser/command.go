package parser

import (
	"fmt"
	"regexp"
	"strings"

	"tempo-swap/pkg/types"
)

// SwapCommand is a parsed natural language swap request
type SwapCommand struct {
	Amount string
	From   string
	To     string
	Mode   types.Mode
}

var (
	// <amount> <source_token> TO|FOR <dest_token>
	sellPattern = regexp.MustCompile(`^(\d[\d,]*\.?\d*)\s+([A-Z0-9]+)\s+(?:TO|FOR|->)\s+([A-Z0-9]+)$`)
	// BUY <amount> <dest_token> WITH|USING <source_token>
	buyPattern = regexp.MustCompile(`^BUY\s+(\d[\d,]*\.?\d*)\s+([A-Z0-9]+)\s+(?:WITH|USING)\s+([A-Z0-9]+)$`)
)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 100 NGNT to CNYT"   (sell exactly 100 NGNT)
//   - "sell 1.5 NGNT for CNYT"
//   - "buy 50 CNYT with NGNT"   (receive exactly 50 CNYT)
func ParseSwapCommand(command string) (*SwapCommand, error) {
	// Normalize the command
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")

	if m := buyPattern.FindStringSubmatch(command); m != nil {
		return &SwapCommand{
			Amount: strings.ReplaceAll(m[1], ",", ""),
			To:     m[2],
			From:   m[3],
			Mode:   types.ExactOutput,
		}, nil
	}

	// Remove the verb if present at the beginning
	command = strings.TrimPrefix(command, "SWAP ")
	command = strings.TrimPrefix(command, "SELL ")

	m := sellPattern.FindStringSubmatch(command)
	if m == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token>' or 'buy <amount> <token> with <token>'")
	}

	return &SwapCommand{
		Amount: strings.ReplaceAll(m[1], ",", ""),
		From:   m[2],
		To:     m[3],
		Mode:   types.ExactInput,
	}, nil
}

// Validate checks that a swap command has all required fields
func (c *SwapCommand) Validate() error {
	if c.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if c.From == "" {
		return fmt.Errorf("source token is required")
	}
	if c.To == "" {
		return fmt.Errorf("destination token is required")
	}
	if c.From == c.To {
		return fmt.Errorf("source and destination token must differ")
	}
	return nil
}
