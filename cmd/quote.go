package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"tempo-swap/pkg/engine"
	"tempo-swap/pkg/parser"
	"tempo-swap/pkg/units"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <from_token> to <to_token>",
	Short: "Show a quote without swapping",
	Long: `Fetch an indicative quote from the Tempo DEX. Nothing is approved or submitted.

Examples:
  tempo-swap quote 100 AlphaUSD to BetaUSD
  tempo-swap quote buy 50 BetaUSD with AlphaUSD`,
	Args: cobra.MinimumNArgs(3),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	parsed, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := parsed.Validate(); err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := context.Background()
	e, l := openEngine(ctx, cmd, engine.Options{})
	defer e.Close()
	defer l.Sync()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	req, qt := fetchQuote(ctx, e, parsed, jsonOutput, s)

	if jsonOutput {
		output := map[string]interface{}{
			"mode":         req.Mode,
			"amount":       req.Amount,
			"input_token":  req.From,
			"output_token": req.To,
			"quoted":       units.ToDecimalString(qt.Result, qt.ResultDecimals()),
			"at":           qt.At,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayQuote(qt, req)
}
