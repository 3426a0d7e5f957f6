package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tempo-swap/config"
	"tempo-swap/pkg/engine"
	"tempo-swap/pkg/faucet"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the faucet HTTP API",
	Long: `Serve POST /api/faucet, which mints every faucet token to the posted address.
Requires faucet.private_key.

Examples:
  tempo-swap serve
  tempo-swap serve --listen :9090`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides faucet.listen)")
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, l := openEngine(ctx, cmd, engine.Options{})
	defer e.Close()
	defer l.Sync()

	if e.Faucet == nil {
		printError(errors.New("faucet is not configured; set faucet.private_key"))
		os.Exit(1)
	}

	cfg := config.Get().Faucet
	addr := cfg.Listen
	if listenAddr != "" {
		addr = listenAddr
	}

	srv := &http.Server{
		Addr: addr,
		Handler: faucet.NewRouter(e.Faucet, faucet.RouterConfig{
			RatePerMinute: cfg.RatePerMinute,
			EnableMetrics: cfg.EnableMetrics,
		}, l),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Warn("faucet shutdown", zap.Error(err))
		}
	}()

	color.Green("Faucet listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		printError(err)
		os.Exit(1)
	}
	printSuccess("Faucet stopped.")
}
