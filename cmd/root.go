package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tempo-swap/config"
	"tempo-swap/pkg/engine"
)

var rootCmd = &cobra.Command{
	Use:   "tempo-swap",
	Short: "A CLI for stablecoin swaps on the Tempo DEX",
	Long: `tempo-swap is a command-line tool that quotes and executes stablecoin swaps
against the Tempo testnet DEX. It handles token approvals, applies your slippage
tolerance and keeps a local activity log of everything you submit.

Examples:
  tempo-swap swap 100 AlphaUSD to BetaUSD
  tempo-swap swap buy 50 BetaUSD with AlphaUSD
  tempo-swap quote 100 AlphaUSD to BetaUSD
  tempo-swap activity
  tempo-swap status <tx-hash>`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}

// newLogger builds a development logger for --verbose and a production
// logger at minLevel otherwise
func newLogger(cmd *cobra.Command, minLevel zapcore.Level) *zap.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(minLevel)
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}

	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// openEngine loads configuration and connects to the node, exiting on failure
func openEngine(ctx context.Context, cmd *cobra.Command, opts engine.Options) (*engine.Engine, *zap.Logger) {
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	minLevel := zapcore.WarnLevel
	if cmd.Name() == "serve" {
		minLevel = zapcore.InfoLevel
	}

	l := newLogger(cmd, minLevel)
	e, err := engine.Open(ctx, cfg, l, opts)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return e, l
}
