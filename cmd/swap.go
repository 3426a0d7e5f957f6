package cmd

import (
	"bufio"
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
	"tempo-swap/pkg/parser"
	"tempo-swap/pkg/quote"
	"tempo-swap/pkg/swap"
	"tempo-swap/pkg/types"
	"tempo-swap/pkg/units"
)

var (
	noConfirm bool
	noWait    bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <from_token> to <to_token>",
	Short: "Swap one stablecoin for another",
	Long: `Quote and execute a swap on the Tempo DEX using natural language.

Selling a fixed amount:
  tempo-swap swap 100 AlphaUSD to BetaUSD
  tempo-swap swap sell 1.5 AlphaUSD for BetaUSD

Buying a fixed amount:
  tempo-swap swap buy 50 BetaUSD with AlphaUSD

The input token is approved for the DEX first when the current allowance
does not cover the swap.`,
	Args: cobra.MinimumNArgs(3),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&noWait, "no-wait", false, "Return once the swap is broadcast")
}

func runSwap(cmd *cobra.Command, args []string) {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	e, l := openEngine(ctx, cmd, engine.Options{
		OnState: func(c swap.StateChange) {
			if jsonOutput || c.Message == "" {
				return
			}
			s.Lock()
			s.Suffix = " " + c.Message
			s.Unlock()
		},
	})
	defer e.Close()
	defer l.Sync()

	req, qt := fetchQuote(ctx, e, parsed, jsonOutput, s)

	if !jsonOutput {
		displayQuote(qt, req)
	}

	// Ask for confirmation
	if !noConfirm && !jsonOutput {
		if !confirmSwap() {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	if !jsonOutput {
		s.Suffix = " Submitting swap..."
		s.Start()
	}
	sub, err := e.SubmitSwap(ctx, req)
	if err != nil {
		if !jsonOutput {
			s.Stop()
		}
		printError(fmt.Errorf("%s", swap.UserMessage(err)))
		os.Exit(1)
	}

	var res *types.FinalityResult
	if !noWait {
		res = <-sub.Settled
	}
	if !jsonOutput {
		s.Stop()
	}

	if jsonOutput {
		output := map[string]interface{}{
			"hash":     sub.Hash,
			"entry":    sub.Entry,
			"limit":    units.ToDecimalString(sub.Limit, sub.Quote.ResultDecimals()),
			"finality": res,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displaySubmission(sub, res)
	if res != nil && !res.Succeeded() {
		os.Exit(1)
	}
}

// fetchQuote resolves the parsed command and loads a display quote, exiting when none is available
func fetchQuote(ctx context.Context, e *engine.Engine, c *parser.SwapCommand, jsonOutput bool, s *spinner.Spinner) (quote.Request, types.Quote) {
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}

	req, err := e.Request(ctx, c.From, c.To, c.Amount, c.Mode)
	if err != nil {
		if !jsonOutput {
			s.Stop()
		}
		printError(err)
		os.Exit(1)
	}

	qt, quoteErr := e.RefreshQuote(ctx, req)
	if !jsonOutput {
		s.Stop()
	}
	if quoteErr != "" {
		printError(fmt.Errorf("%s", quoteErr))
		os.Exit(1)
	}
	if qt.Empty() {
		printError(swap.ErrNoExecutableQuote)
		os.Exit(1)
	}
	return req, qt
}

func displayQuote(qt types.Quote, req quote.Request) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	in, out := req.From, req.To
	quoted := units.ToHumanString(qt.Result, qt.ResultDecimals())

	if req.Mode == types.ExactOutput {
		fmt.Printf("\n  You Pay:           ~%s %s\n", quoted, color.YellowString(in.Symbol))
		fmt.Printf("  You Receive:       %s %s\n", req.Amount, color.YellowString(out.Symbol))
	} else {
		fmt.Printf("\n  You Pay:           %s %s\n", req.Amount, color.YellowString(in.Symbol))
		fmt.Printf("  You Receive:       ~%s %s\n", quoted, color.YellowString(out.Symbol))
	}
	fmt.Printf("  Mode:              %s\n", req.Mode)
	fmt.Printf("  Input Token:       %s\n", color.HiBlackString(in.Address))
	fmt.Printf("  Output Token:      %s\n", color.HiBlackString(out.Address))

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displaySubmission(sub swap.Submission, res *types.FinalityResult) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    SWAP SUBMITTED")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Sold:              %s %s\n", sub.Entry.Sold.Amount, color.YellowString(sub.Entry.Sold.Symbol))
	fmt.Printf("  Received:          %s %s\n", sub.Entry.Received.Amount, color.YellowString(sub.Entry.Received.Symbol))
	if sub.Entry.Rate != "" {
		fmt.Printf("  Rate:              %s\n", sub.Entry.Rate)
	}
	fmt.Printf("  Tx Hash:           %s\n", color.CyanString(sub.Hash))
	fmt.Printf("  Explorer:          %s\n", sub.Entry.ExplorerURL)

	switch {
	case res == nil:
		fmt.Printf("  Status:            %s\n", color.YellowString("PENDING"))
	case res.Succeeded():
		fmt.Printf("  Status:            %s (block %d)\n", color.GreenString("CONFIRMED"), res.BlockNumber)
	default:
		fmt.Printf("  Status:            %s (block %d)\n", color.RedString("FAILED"), res.BlockNumber)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")

	if res == nil {
		fmt.Println("You can monitor the swap status using:")
		color.Cyan("  tempo-swap status %s\n", sub.Hash)
	}
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
