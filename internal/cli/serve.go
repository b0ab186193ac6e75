package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/citizen-booking/internal/config"
	"github.com/iliyamo/citizen-booking/internal/database"
	"github.com/iliyamo/citizen-booking/internal/idtoken"
	"github.com/iliyamo/citizen-booking/internal/notification"
	"github.com/iliyamo/citizen-booking/internal/queue"
	"github.com/iliyamo/citizen-booking/internal/reservation"
	"github.com/iliyamo/citizen-booking/internal/router"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Migrate bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the booking HTTP API",
		Long: `Run the booking HTTP API until interrupted.

On SIGINT or SIGTERM the server stops accepting requests, finishes the
ones in flight and waits for pending notifications before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

// engineOptions maps configuration onto engine tuning.
func engineOptions(cfg config.Config) (reservation.Options, error) {
	iso, err := cfg.Isolation()
	if err != nil {
		return reservation.Options{}, err
	}
	overlap, err := reservation.ParseOverlapMode(cfg.OutOfSlotOverlap)
	if err != nil {
		return reservation.Options{}, err
	}
	return reservation.Options{Isolation: iso, OnHoldTTL: cfg.OnHoldTTL, OutOfSlotOverlap: overlap}, nil
}

// notifier builds the notification pipeline from whichever transports are
// configured.  The returned dispatcher must be drained with Wait.
func notifier(cfg config.Config, log *zap.Logger) *notification.AsyncDispatcher {
	var (
		mailer notification.Mailer
		sms    notification.SMSSender
		agency notification.AgencyPublisher
	)
	if cfg.SMTPAddr != "" {
		mailer = &notification.SMTPMailer{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom, Username: cfg.SMTPUser, Password: cfg.SMTPPass}
	} else {
		log.Info("SMTP_ADDR not set, email notifications disabled")
	}
	if cfg.SMSURL != "" {
		sms = &notification.HTTPSMSSender{URL: cfg.SMSURL, APIKey: cfg.SMSAPIKey}
	}
	if cfg.RabbitURL != "" {
		agency = queue.NewPublisher(cfg.RabbitURL, log)
	}
	hub := notification.NewHub(log, notification.Channels(mailer, sms, agency)...)
	return notification.NewAsyncDispatcher(hub, cfg.NotifyTimeout)
}

func runServe(parent context.Context, opts *ServeOptions) error {
	cfg, log, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if opts.Migrate {
		if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	engOpts, err := engineOptions(cfg)
	if err != nil {
		return err
	}
	tokens, err := idtoken.New([]byte(cfg.IDTokenSecret), "booking")
	if err != nil {
		return err
	}
	dispatcher := notifier(cfg, log)
	engine := reservation.NewWithRepositories(db, dispatcher, log, time.Now, engOpts)

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}

	e := router.New(router.Deps{
		Engine:    engine,
		DB:        db,
		Tokens:    tokens,
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		RateLimit: cfg.RateLimit,
		Cache:     cfg.Cache,
		Log:       log,
	})

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	dispatcher.Wait()
	log.Info("stopped")
	return nil
}
