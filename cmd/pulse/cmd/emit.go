package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/insightwire/pulse/pkg/pulse/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// emitCmd represents the emit command
var emitCmd = &cobra.Command{
	Use:   "emit <websocket-url> <type> <data>",
	Short: "Send a single envelope to a pulse endpoint",
	Long: `Connect to a pulse endpoint, send one envelope, and exit.

The first argument is the WebSocket URL to connect to.
The second argument is the envelope type.
The third argument is the envelope data, parsed as JSON when possible
and sent as a plain string otherwise.

Examples:
  pulse emit ws://localhost:8080/ws "sensors/temperature" "25.5"
  pulse emit ws://localhost:8080/ws "user/login" '{"user":"alice"}'
  pulse emit wss://stream.example.com/ws "system/alert" "maintenance scheduled"`,
	Args: cobra.ExactArgs(3),
	RunE: runEmit,
}

var (
	emitDialTimeout   time.Duration
	emitTimeout       time.Duration
	emitLinger        time.Duration
	emitAuthorization string
)

func init() {
	rootCmd.AddCommand(emitCmd)

	emitCmd.Flags().DurationVar(&emitDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	emitCmd.Flags().DurationVar(&emitTimeout, "timeout", 30*time.Second, "total operation timeout")
	emitCmd.Flags().DurationVar(&emitLinger, "linger", 250*time.Millisecond, "time to allow the envelope to flush before disconnecting")
	emitCmd.Flags().StringVar(&emitAuthorization, "authorization", "", "Authorization header value")
}

func runEmit(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	wsURL := args[0]
	envelopeType := args[1]
	dataStr := args[2]

	// Prefer structured data when the argument parses as JSON
	var data any
	if err := json.Unmarshal([]byte(dataStr), &data); err != nil {
		data = dataStr
	}

	logger.Info("Emitting envelope",
		zap.String("url", wsURL),
		zap.String("type", envelopeType),
		zap.Any("data", data),
	)

	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	builder := client.NewClient().
		WithURL(wsURL).
		WithLogger(logger).
		WithDialTimeout(emitDialTimeout).
		WithMaxReconnectAttempts(1)

	if emitAuthorization != "" {
		builder = builder.WithAuthorization(emitAuthorization)
	}

	c, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	connected := make(chan struct{})
	failed := make(chan error, 1)
	c.OnConnect(func() { close(connected) })
	c.OnError(func(err error) {
		select {
		case failed <- err:
		default:
		}
	})

	c.Connect(ctx)
	defer c.Disconnect()

	select {
	case <-connected:
	case err := <-failed:
		return fmt.Errorf("failed to connect: %w", err)
	case <-ctx.Done():
		return fmt.Errorf("timed out connecting to %s", wsURL)
	}

	if !c.Send(envelopeType, data) {
		return fmt.Errorf("failed to queue envelope")
	}

	// Send is asynchronous; give the write loop a moment to flush.
	time.Sleep(emitLinger)

	logger.Info("Envelope sent",
		zap.String("type", envelopeType),
	)

	return nil
}
