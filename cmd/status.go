package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tempo-swap/pkg/engine"
	"tempo-swap/pkg/types"
)

var watchStatus bool

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a transaction",
	Long: `Check whether a swap or approval transaction has been finalized.

Examples:
  tempo-swap status 0x1234...abcd
  tempo-swap status 0x1234...abcd --watch`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Wait until the transaction is finalized")
}

func runStatus(cmd *cobra.Command, args []string) {
	hash := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	e, l := openEngine(ctx, cmd, engine.Options{})
	defer e.Close()
	defer l.Sync()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking transaction status..."
		if watchStatus {
			s.Suffix = " Waiting for finality..."
		}
		s.Start()
	}

	var (
		res *types.FinalityResult
		err error
	)
	if watchStatus {
		res, err = e.Poller.AwaitFinality(ctx, hash)
	} else {
		res, err = e.Client.Receipt(ctx, hash)
	}
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{"hash": hash, "pending": res == nil, "finality": res}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayStatus(hash, res, e.Ledger.ExplorerLink(hash))
}

func displayStatus(hash string, res *types.FinalityResult, explorer string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Tx Hash:         %s\n", color.CyanString(hash))
	if res == nil {
		fmt.Printf("  Status:          %s\n", color.YellowString("PENDING"))
	} else {
		fmt.Printf("  Status:          %s\n", getColoredStatus(res.Status))
		fmt.Printf("  Block:           %d\n", res.BlockNumber)
		fmt.Printf("  Gas Used:        %d\n", res.GasUsed)
	}
	fmt.Printf("  Explorer:        %s\n", color.HiBlackString(explorer))

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status types.ReceiptStatus) string {
	label := strings.ToUpper(string(status))

	switch status {
	case types.ReceiptSuccess:
		return color.GreenString(label)
	case types.ReceiptReverted:
		return color.RedString(label)
	default:
		return label
	}
}
