package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/insightwire/pulse/pkg/pulse/client"
	"github.com/insightwire/pulse/pkg/pulse/wire"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen <websocket-url> [channels...]",
	Short: "Listen for envelopes from a pulse endpoint",
	Long: `Connect to a pulse endpoint, subscribe to the given channels, and
print every inbound envelope to stdout.

The first argument is the WebSocket URL to connect to.
Additional arguments are channels to subscribe to. If no channels are
provided, no subscribe envelopes are sent; whatever the server pushes
unsolicited is printed.

Examples:
  pulse listen ws://localhost:8080/ws
  pulse listen ws://localhost:8080/ws metrics alerts
  pulse listen wss://stream.example.com/ws --authorization "Bearer $TOKEN" trades`,
	Args: cobra.MinimumNArgs(1),
	RunE: runListen,
}

var (
	listenDialTimeout   time.Duration
	listenHeartbeat     time.Duration
	listenAuthorization string
	listenPattern       string
)

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().DurationVar(&listenDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	listenCmd.Flags().DurationVar(&listenHeartbeat, "heartbeat", 30*time.Second, "ping interval")
	listenCmd.Flags().StringVar(&listenAuthorization, "authorization", "", "Authorization header value")
	listenCmd.Flags().StringVar(&listenPattern, "on", "#", "envelope type pattern to print")
}

func runListen(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsURL := args[0]
	channels := args[1:]

	logger.Info("Starting listener",
		zap.String("url", wsURL),
		zap.Strings("channels", channels),
		zap.Duration("dial-timeout", listenDialTimeout),
	)

	builder := client.NewClient().
		WithURL(wsURL).
		WithLogger(logger).
		WithDialTimeout(listenDialTimeout).
		WithHeartbeatInterval(listenHeartbeat)

	if listenAuthorization != "" {
		builder = builder.WithAuthorization(listenAuthorization)
	}

	c, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	c.On(listenPattern, printEnvelope)

	c.OnConnect(func() {
		logger.Info("Connected", zap.String("url", wsURL))
	})
	c.OnDisconnect(func(err error) {
		logger.Warn("Connection lost", zap.Error(err))
	})
	c.OnError(func(err error) {
		logger.Error("Connection failed", zap.Error(err))
		cancel()
	})

	for _, channel := range channels {
		c.Subscribe(channel)
	}

	c.Connect(ctx)
	defer c.Disconnect()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Listening for envelopes... (Press Ctrl+C to exit)")

	select {
	case sig := <-sigChan:
		logger.Debug("Signal received, exiting", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down...")
	}

	logger.Info("Shutdown complete")
	return nil
}

func printEnvelope(ctx context.Context, env wire.Envelope, fields map[string]string) error {
	jsonBytes, err := json.Marshal(env.Data)
	if err != nil {
		fmt.Printf("%s\t<error marshaling JSON: %v>\n", env.Type, err)
		return nil
	}
	fmt.Printf("%s\t%s\t%s\n", env.Timestamp.Format(time.RFC3339), env.Type, string(jsonBytes))
	return nil
}
