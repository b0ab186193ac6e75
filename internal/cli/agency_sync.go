package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/citizen-booking/internal/queue"
)

// NewAgencySyncCommand creates the agency-sync command.
func NewAgencySyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agency-sync",
		Short: "Forward booking decisions from RabbitMQ to external agencies",
		Long: `Consume the booking.agency-sync queue and post each message to the
endpoint configured for its agency in AGENCY_ENDPOINTS.  Messages for
agencies without an endpoint are appended to AGENCY_OUTBOX_DIR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if cfg.RabbitURL == "" {
				return fmt.Errorf("RABBITMQ_URL is required")
			}
			endpoints, err := cfg.Agencies()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fwd := &queue.AgencyForwarder{Endpoints: endpoints, OutboxDir: cfg.AgencyOutboxDir}
			log.Info("agency sync started", zap.Int("agencies", len(endpoints)))
			err = queue.StartAgencySyncConsumer(ctx, cfg.RabbitURL, fwd, log)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
