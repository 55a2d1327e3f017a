package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppp/pppctl/internal/config"
	"github.com/ppp/pppctl/internal/constants"
	"github.com/ppp/pppctl/internal/relay"
)

var relayListen string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay server commands",
}

var relayServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay on the service machine",
	Long: `Serve the relay other pppctl installations reach the admin API through.
The command runs until interrupted and ignores --timeout.`,
	Example: fmt.Sprintf("  - %s relay serve --listen :9999", constants.CLIName),
	Run:     runRelayServe,
}

func init() {
	relayServeCmd.Flags().StringVar(&relayListen, "listen", "", "Listen address (default from relay_listen)")
	relayCmd.AddCommand(relayServeCmd)
	rootCmd.AddCommand(relayCmd)
}

func runRelayServe(cmd *cobra.Command, _ []string) {
	executeWithConfig(cmd, func(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
		addr := relayListen
		if addr == "" {
			addr = cfg.RelayListen
		}
		ctx, stop := signal.NotifyContext(context.WithoutCancel(ctx), os.Interrupt, syscall.SIGTERM)
		defer stop()
		upstream := &http.Client{Timeout: cfg.RequestTimeout}
		return relay.NewServer(log, relay.WithUpstreamClient(upstream)).ListenAndServe(ctx, addr)
	})
}
