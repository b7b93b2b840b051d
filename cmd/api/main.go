package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"aegisid.org/internal/audit"
	"aegisid.org/internal/config"
	"aegisid.org/internal/httpapi"
	"aegisid.org/internal/identity"
	"aegisid.org/internal/obs"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Error("config load failed", err, nil)
		os.Exit(1)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	if cfg.DSN == "" {
		obs.Error("database dsn missing", nil, map[string]any{"env": "AEGIS_PG_DSN"})
		os.Exit(1)
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		obs.Error("database open failed", err, nil)
		os.Exit(1)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	defer db.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancelPing()
		obs.Error("database ping failed", err, nil)
		os.Exit(1)
	}
	cancelPing()

	store := identity.NewPGStore(db)

	tokens, err := identity.NewTokenIssuer(cfg.TokenSecret,
		identity.WithIssuerName(cfg.TokenIssuer),
		identity.WithAccessTTL(cfg.AccessTTL),
		identity.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		obs.Error("token issuer init failed", err, nil)
		os.Exit(1)
	}

	keys, err := identity.NewAPIKeyManager(store)
	if err != nil {
		obs.Error("api key manager init failed", err, nil)
		os.Exit(1)
	}

	recorder := audit.NewRecorder(store.Audit(context.Background()),
		audit.WithQueueSize(cfg.AuditQueueSize))

	resolver, err := identity.NewResolver(store, tokens, keys, recorder)
	if err != nil {
		obs.Error("resolver init failed", err, nil)
		os.Exit(1)
	}

	svc, err := identity.NewService(store, tokens, recorder)
	if err != nil {
		obs.Error("service init failed", err, nil)
		os.Exit(1)
	}

	api := httpapi.New(httpapi.Deps{
		Store:    store,
		Service:  svc,
		Resolver: resolver,
		Keys:     keys,
		Recorder: recorder,
		Probe:    httpapi.ReadyProbe{DB: db},
		Version:  version,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		obs.LogJSON("info", "server listening", map[string]any{"addr": cfg.Addr, "version": version})
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		obs.LogJSON("info", "shutdown signal received", map[string]any{"signal": sig.String()})
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			obs.Error("server failed", err, nil)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obs.Error("server shutdown failed", err, nil)
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		obs.Error("audit recorder drain failed", err, nil)
	}
	obs.LogJSON("info", "server stopped", nil)
}
