package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/sampleapp/internal/infra/config"
	"github.com/mkrupp/sampleapp/internal/infra/database"
	"github.com/mkrupp/sampleapp/internal/infra/logging"
	"github.com/mkrupp/sampleapp/internal/infra/transport/http"
	"github.com/mkrupp/sampleapp/internal/repo/session"
	"github.com/mkrupp/sampleapp/internal/repo/user"
	"github.com/mkrupp/sampleapp/internal/svc/authsvc"
)

const (
	appName = "sampleapp"
	svcName = "webapp"
)

type Config struct {
	config.EnvConfig

	Log      logging.LoggerConfig        `envPrefix:"LOG_"`
	Auth     authsvc.AuthConfig          `envPrefix:"AUTH_"`
	HTTP     authsvc.HTTPTransportConfig `envPrefix:"HTTP_"`
	Database database.DatabaseConfig     `envPrefix:"DATABASE_"`
}

func main() {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.webapp")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	authSvc, err := authsvc.NewAuthService(
		user.SQLUserRepositoryFactory(db),
		cfg.Auth,
	)
	if err != nil {
		return fmt.Errorf("new auth service: %w", err)
	}

	sessions, err := authsvc.NewSessionManager(
		session.SQLSessionRepositoryFactory(db),
		user.SQLUserRepositoryFactory(db),
		cfg.Auth,
	)
	if err != nil {
		return fmt.Errorf("new session manager: %w", err)
	}

	httpTransport, err := authsvc.NewHTTPTransport(authSvc, sessions, cfg.HTTP)
	if err != nil {
		return fmt.Errorf("new http transport: %w", err)
	}

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
