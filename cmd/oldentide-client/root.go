package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcx/oldentide-client/config"
	"github.com/lcx/oldentide-client/log"
	"github.com/lcx/oldentide-client/metrics"
	"github.com/lcx/oldentide-client/net"
)

var (
	configDir   string
	serverHost  string
	serverPort  int
	localPort   int
	codecName   string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "oldentide-client",
	Short: "Play Oldentide from the terminal",
	Long: `oldentide-client connects to an Oldentide game server over UDP.

Without a subcommand it opens the interactive client:
  /connect                  open a session
  /list                     list your characters
  /create <first> <last>    create a character
  /select <name>            play as a character
  /disconnect               end the session
  /quit                     leave
Anything else is sent to the server as a player command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInteractive,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configDir, "config", "./configs", "directory holding client.yaml and logger.yaml")
	flags.StringVar(&serverHost, "server", "", "game server host (overrides serverHost)")
	flags.IntVar(&serverPort, "port", 0, "game server UDP port (overrides serverPort)")
	flags.IntVar(&localPort, "local-port", 0, "local UDP port, 0 picks a free one (overrides localPort)")
	flags.StringVar(&codecName, "codec", "", "payload codec: msgpack or protowire (overrides codec)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metricsAddr)")

	rootCmd.AddCommand(sendCmd)
}

// clientFlags maps client.yaml keys to the flags that override them.
var clientFlags = map[string]string{
	"serverHost":  "server",
	"serverPort":  "port",
	"localPort":   "local-port",
	"codec":       "codec",
	"metricsAddr": "metrics-addr",
}

// setup loads logger.yaml and client.yaml from --config with the flags bound
// over the file, so validation sees the overridden values. A missing file is
// not an error.
func setup(cmd *cobra.Command) (*net.ClientCfg, config.ConfigManager, error) {
	cm := config.NewConfigManager()
	cm.SetBasePath(configDir)

	if err := log.InitializeWithConfigManager(cm); err != nil && !isNotFound(err) {
		_ = cm.Close()
		return nil, nil, fmt.Errorf("failed to load logger config: %w", err)
	}

	cfg := &net.ClientCfg{}
	flags := cmd.Flags()
	for key, name := range clientFlags {
		cm.BindFlag(cfg.GetName(), key, flags.Lookup(name))
	}

	if err := cm.LoadConfig(cfg.GetName(), cfg); err != nil {
		if !isNotFound(err) {
			_ = cm.Close()
			return nil, nil, fmt.Errorf("failed to load client config: %w", err)
		}
		log.Debug().Str("dir", configDir).Msg("no client.yaml, using flags only")
		applyFlags(cmd, cfg)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		_ = cm.Close()
		return nil, nil, fmt.Errorf("invalid client config: %w", err)
	}
	return cfg, cm, nil
}

// applyFlags copies the flags set on the command line into cfg. Used when
// there is no client.yaml to bind them over.
func applyFlags(cmd *cobra.Command, cfg *net.ClientCfg) {
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerHost = serverHost
	}
	if flags.Changed("port") {
		cfg.ServerPort = serverPort
	}
	if flags.Changed("local-port") {
		cfg.LocalPort = localPort
	}
	if flags.Changed("codec") {
		cfg.Codec = codecName
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, config.ErrConfigFileNotFound)
}

// serveMetrics serves /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
