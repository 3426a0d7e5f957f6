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
)

var fundCmd = &cobra.Command{
	Use:   "fund [address]",
	Short: "Mint testnet tokens to an address",
	Long: `Mint every faucet token to an address using the faucet key. Defaults to
your own account.

Examples:
  tempo-swap fund
  tempo-swap fund 0x1234...abcd`,
	Args: cobra.MaximumNArgs(1),
	Run:  runFund,
}

func init() {
	rootCmd.AddCommand(fundCmd)
}

func runFund(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()
	e, l := openEngine(ctx, cmd, engine.Options{})
	defer e.Close()
	defer l.Sync()

	recipient := e.Account()
	if len(args) == 1 {
		recipient = args[0]
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Minting tokens..."
		s.Start()
	}

	res, err := e.Fund(ctx, recipient)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    FAUCET FUNDED")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Recipient:         %s\n", color.CyanString(res.RecipientAddress))
	for _, m := range res.Mints {
		fmt.Printf("  %-18s %s  %s\n", m.Symbol+":", m.Amount, color.HiBlackString(m.Hash))
	}
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
