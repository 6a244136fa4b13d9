package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/ledger-signer/internal/app"
	"github/chapool/ledger-signer/internal/config"
	"github/chapool/ledger-signer/internal/util"
	"github/chapool/ledger-signer/internal/wallet"
)

const (
	// shutdownTimeout bounds the metrics listener shutdown
	shutdownTimeout = 10 * time.Second
)

// NewSubcommandGroup returns a command that only groups its subcommands
func NewSubcommandGroup(name string, subCmds ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: name + " subcommands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(subCmds...)

	return cmd
}

// Option configures WithSigner
type Option func(*options)

type options struct {
	build    func(config.Service) (*app.App, error)
	password wallet.PasswordFunc
}

// WithAppBuilder replaces the wire injector used to build the app
func WithAppBuilder(build func(config.Service) (*app.App, error)) Option {
	return func(o *options) {
		o.build = build
	}
}

// WithPassword supplies the emulator keystore password instead of prompting
func WithPassword(password wallet.PasswordFunc) Option {
	return func(o *options) {
		o.password = password
	}
}

// WithSigner builds the app from cfg, unlocks the emulator if enabled, serves
// metrics if configured and runs f. The app is shut down when f returns or the
// process receives SIGINT/SIGTERM.
func WithSigner(ctx context.Context, cfg config.Service, f func(ctx context.Context, a *app.App) error, opts ...Option) error {
	o := &options{
		build:    app.InitNewApp,
		password: wallet.TerminalPassword(),
	}
	for _, opt := range opts {
		opt(o)
	}

	util.ConfigureGlobalLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := o.build(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize signer")
		return errors.Wrap(err, "failed to initialize signer")
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if errs := a.Shutdown(shutdownCtx); len(errs) > 0 {
			log.Error().Errs("shutdownErrors", errs).Msg("Failed to gracefully shut down signer")
		}
	}()

	if err := a.UnlockEmulator(ctx, o.password); err != nil {
		return err
	}

	if cfg.Metrics.ListenAddress != "" {
		a.InitRouter()
		go func() {
			if err := a.Start(); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	return f(ctx, a)
}

// ConfigFlag is the persistent root flag naming an optional config file
const ConfigFlag = "config"

// LoadConfig loads the service config, honoring the --config flag
func LoadConfig(cmd *cobra.Command) (config.Service, error) {
	configFile, err := cmd.Flags().GetString(ConfigFlag)
	if err != nil {
		configFile = ""
	}

	return config.LoadServiceConfig(configFile)
}
