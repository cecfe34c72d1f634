package main

import (
	"MicroStudioLink/internal/adapters/eventbus"
	"MicroStudioLink/internal/adapters/keyring"
	"MicroStudioLink/internal/adapters/microstudio"
	"MicroStudioLink/internal/adapters/postgres"
	"MicroStudioLink/internal/adapters/security"
	"MicroStudioLink/internal/adapters/telegram"
	"MicroStudioLink/internal/core/domain"
	"MicroStudioLink/internal/core/ports"
	"MicroStudioLink/internal/core/service"
	"MicroStudioLink/internal/shared/config"
	"MicroStudioLink/internal/shared/logger"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const handshakeTimeout = 15 * time.Second

// app is the wired object graph shared by every command.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	studio  *service.Studio
	closers []func()
}

func newApp(ctx context.Context, verbose bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	baseLogger := logger.New(cfg.AppEnv == "dev", verbose)
	baseLogger.Debug().
		Str("app_env", cfg.AppEnv).
		Str("url", cfg.MicroStudio.URL).
		Str("state_backend", cfg.State.Backend).
		Msg("Configuration loaded")

	a := &app{cfg: cfg, log: baseLogger}

	store, err := a.newStateStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	bus := eventbus.NewInMemoryEventBus(&baseLogger, eventbus.WithMaxListeners(cfg.Bus.MaxListeners))
	dialer := microstudio.NewWebsocketDialer(handshakeTimeout)
	factory := func(creds domain.Credentials) ports.StudioClient {
		return microstudio.NewClient(creds, bus, &baseLogger,
			microstudio.WithURL(cfg.MicroStudio.URL),
			microstudio.WithDialer(dialer),
			microstudio.WithCallTimeout(cfg.MicroStudio.CallTimeout),
		)
	}
	a.studio = service.NewStudio(factory, store, &baseLogger)
	a.closers = append(a.closers, a.studio.Close)
	return a, nil
}

func (a *app) newStateStore(ctx context.Context) (ports.StateStore, error) {
	switch a.cfg.State.Backend {
	case config.BackendPostgres:
		secSvc, err := security.NewAESServiceFromHex(a.cfg.EncryptionKey, &a.log)
		if err != nil {
			return nil, fmt.Errorf("initialize state sealing: %w", err)
		}
		db, err := postgres.NewDB(ctx, a.cfg.Postgres.URL, &a.log)
		if err != nil {
			return nil, fmt.Errorf("initialize database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return postgres.NewStateRepository(db, secSvc, &a.log), nil
	default:
		return keyring.NewStateStore(a.cfg.State.KeyringService, &a.log), nil
	}
}

func (a *app) studioCmd() StudioCmd {
	return StudioCmd{
		studio: a.studio,
		fallback: domain.Credentials{
			Nick:     a.cfg.MicroStudio.Nick,
			Password: a.cfg.MicroStudio.Password,
		},
		out: os.Stdout,
	}
}

// notifier returns nil when Telegram forwarding is not configured.
func (a *app) notifier() (ports.PushNotifier, error) {
	if !a.cfg.Telegram.Enabled() {
		return nil, nil
	}
	api, err := telegram.NewBotAPI(a.cfg.Telegram.BotToken, &a.log)
	if err != nil {
		return nil, err
	}
	return telegram.NewPushNotifier(api, a.cfg.Telegram.ChatID, &a.log), nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
