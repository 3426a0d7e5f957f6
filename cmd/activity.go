package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tempo-swap/pkg/engine"
	"tempo-swap/pkg/types"
)

var (
	activityAddress string
	historyOnly     bool
	clearActivity   bool
	endSession      bool
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the local activity log",
	Long: `Show the swaps and approvals submitted from this machine, newest first.

Examples:
  tempo-swap activity
  tempo-swap activity --history
  tempo-swap activity --clear
  tempo-swap activity --end-session

The log lives for the current session only: the invoking shell, or whatever
TEMPO_SWAP_SESSION names.`,
	Run: runActivity,
}

func init() {
	rootCmd.AddCommand(activityCmd)

	activityCmd.Flags().StringVar(&activityAddress, "address", "", "Account to show (defaults to the configured wallet)")
	activityCmd.Flags().BoolVar(&historyOnly, "history", false, "Show swaps only")
	activityCmd.Flags().BoolVar(&clearActivity, "clear", false, "Delete the log for the account")
	activityCmd.Flags().BoolVar(&endSession, "end-session", false, "End the session, deleting the log of every account")
}

func runActivity(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()
	e, l := openEngine(ctx, cmd, engine.Options{})
	defer e.Close()
	defer l.Sync()

	if endSession {
		if err := e.EndSession(); err != nil {
			printError(err)
			os.Exit(1)
		}
		printSuccess(color.GreenString("✓ Session ended"))
		return
	}

	account := activityAddress
	if account == "" {
		account = e.Account()
	}
	if account == "" {
		printError(fmt.Errorf("no account: set private_key or pass --address"))
		os.Exit(1)
	}

	if clearActivity {
		e.Ledger.Clear(ctx, account)
		printSuccess(color.GreenString("✓ Activity cleared for %s", account))
		return
	}

	entries := e.Activity(ctx, account)
	if historyOnly {
		entries = e.Ledger.History(ctx, account)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(entries) == 0 {
		color.Yellow("\nNo activity recorded for %s.\n", account)
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                                ACTIVITY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("\n  Account: %s\n\n", color.CyanString(account))

	for _, entry := range entries {
		displayEntry(entry)
	}

	fmt.Println(strings.Repeat("=", 80) + "\n")
}

func displayEntry(entry types.ActivityEntry) {
	switch entry.Kind {
	case types.KindSwap:
		fmt.Printf("  %s  %s  %s %s → %s %s\n",
			entry.Time, color.GreenString("SWAP   "),
			entry.Sold.Amount, entry.Sold.Symbol,
			entry.Received.Amount, color.YellowString(entry.Received.Symbol))
		if entry.Rate != "" {
			fmt.Printf("  %19s           %s\n", "", color.HiBlackString(entry.Rate))
		}
	case types.KindApprove:
		fmt.Printf("  %s  %s  %s\n", entry.Time, color.MagentaString("APPROVE"), entry.Memo)
	default:
		fmt.Printf("  %s  %-7s  %s\n", entry.Time, strings.ToUpper(string(entry.Kind)), entry.Memo)
	}
	fmt.Printf("  %19s           %s\n\n", "", color.HiBlackString(entry.ExplorerURL))
}
