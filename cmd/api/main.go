package main

import (
	"context"
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"PuertoComercio/internal/auth"
	"PuertoComercio/internal/catalog"
	"PuertoComercio/internal/config"
	"PuertoComercio/internal/gateway"
	"PuertoComercio/internal/upload"
	"PuertoComercio/pkg/kit"
)

const service = "puerto-comercio"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger options yet; report with defaults.
		kit.NewLogger(service, kit.LogOptions{}).Fatal("invalid configuration", zap.Error(err))
	}

	log := kit.NewLogger(service, kit.LogOptions{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = kit.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres unavailable", zap.Error(err))
		}
		defer db.Close()
	}

	store, err := openStore(ctx, cfg, db, log)
	if err != nil {
		log.Fatal("init catalog store failed", zap.Error(err))
	}

	creds, pinger, err := openCredentials(ctx, cfg, db)
	if err != nil {
		log.Fatal("init credentials failed", zap.Error(err))
	}

	sink, err := upload.NewSink(cfg.UploadDir, log)
	if err != nil {
		log.Fatal("init upload dir failed", zap.Error(err))
	}

	tokens := auth.NewTokenMaker(cfg.JWTSecret)
	reg := prometheus.NewRegistry()

	h, err := gateway.NewHandler(gateway.Deps{
		Auth:            auth.NewService(creds, tokens, cfg.TokenTTL),
		Store:           store,
		Sink:            sink,
		Pinger:          pinger,
		Placeholder:     cfg.PlaceholderImage,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		LoginRatePerMin: cfg.LoginRatePerMin,
		TrustProxy:      cfg.TrustProxy,
	}, gateway.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,
	})
	if err != nil {
		log.Fatal("init handler failed", zap.Error(err))
	}

	if err := kit.RunHTTPServer(ctx, ":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, db *sql.DB, log *zap.Logger) (catalog.Store, error) {
	if db == nil {
		log.Info("catalog backend: file", zap.String("path", cfg.DataFile))
		return catalog.NewFileStore(cfg.DataFile, log), nil
	}

	s := catalog.NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	log.Info("catalog backend: postgres")
	return s, nil
}

func openCredentials(ctx context.Context, cfg *config.Config, db *sql.DB) (auth.CredentialStore, gateway.Pinger, error) {
	if cfg.CredentialsSource == config.CredentialsPostgres {
		c := auth.NewPostgresCredentials(db)
		if err := c.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}

	hash := []byte(cfg.AdminPasswordHash)
	if _, err := bcrypt.Cost(hash); err != nil {
		return nil, nil, err
	}
	return auth.NewStaticCredentials(auth.Credential{Username: cfg.AdminUsername, Hash: hash}), nil, nil
}
