package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tempo-swap/pkg/engine"
	"tempo-swap/pkg/units"
)

var (
	filterSymbol   string
	balanceAddress string
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List the configured tokens",
	Long: `List every token configured for swapping, with on-chain metadata and the
balance of your account (or --address).

Examples:
  tempo-swap list-tokens
  tempo-swap list-tokens --symbol AlphaUSD
  tempo-swap list-tokens --address 0x1234...abcd`,
	Run: runListTokens,
}

type tokenRow struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Balance  string `json:"balance,omitempty"`
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	tokensCmd.Flags().StringVar(&balanceAddress, "address", "", "Show balances for this address")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()
	e, l := openEngine(ctx, cmd, engine.Options{})
	defer e.Close()
	defer l.Sync()

	owner := balanceAddress
	if owner == "" {
		owner = e.Account()
	}

	// Get tokens with spinner
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching token metadata..."
		s.Start()
	}

	all, err := e.Tokens.All(ctx)
	rows := make([]tokenRow, 0, len(all))
	if err == nil {
		for _, tok := range all {
			if filterSymbol != "" && !strings.EqualFold(tok.Symbol, filterSymbol) {
				continue
			}
			row := tokenRow{Symbol: tok.Symbol, Name: tok.Name, Address: tok.Address, Decimals: tok.Decimals}
			if owner != "" {
				if bal, err := e.Client.BalanceOf(ctx, tok.Address, owner); err == nil {
					row.Balance = units.ToHumanString(bal, tok.Decimals)
				}
			}
			rows = append(rows, row)
		}
	}
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(rows) == 0 {
		color.Yellow("\nNo tokens found matching the criteria.\n")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                 CONFIGURED TOKENS")
	fmt.Println(strings.Repeat("=", 90))
	if owner != "" {
		fmt.Printf("\n  Balances for %s\n", color.CyanString(owner))
	}

	fmt.Printf("\n  %-12s %-20s %-44s %s\n", "SYMBOL", "NAME", "ADDRESS", "BALANCE")
	fmt.Println("  " + strings.Repeat("-", 86))
	for _, row := range rows {
		fmt.Printf("  %-12s %-20s %-44s %s\n",
			color.YellowString(row.Symbol), row.Name, color.HiBlackString(row.Address), row.Balance)
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("  Total: %d tokens\n", len(rows))
	fmt.Println(strings.Repeat("=", 90) + "\n")
}
