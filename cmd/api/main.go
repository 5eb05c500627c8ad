// Package main runs the Velora API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/velora-dev/velora/internal/app"
	"github.com/velora-dev/velora/internal/app/domain/user"
	"github.com/velora-dev/velora/internal/app/httpapi"
	"github.com/velora-dev/velora/internal/app/imagestore"
	"github.com/velora-dev/velora/internal/app/services/auth"
	"github.com/velora-dev/velora/internal/app/storage/postgres"
	"github.com/velora-dev/velora/internal/config"
	"github.com/velora-dev/velora/internal/middleware"
	"github.com/velora-dev/velora/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("api").WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	log := logger.New("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores := app.Stores{}
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Error("connect to database")
			os.Exit(1)
		}
		defer db.Close()

		store := postgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			log.WithError(err).Error("ensure schema")
			os.Exit(1)
		}
		stores = app.Stores{Users: store, Photos: store, Likes: store, Messages: store}
		log.Info("using postgres store")
	} else {
		log.Warn("VELORA_DATABASE_URL not set; using in-memory store")
	}

	var images imagestore.Store
	if cfg.ImageStoreURL != "" {
		images, err = imagestore.NewHTTPStore(nil, cfg.ImageStoreURL, cfg.ImageStoreKey, log)
		if err != nil {
			log.WithError(err).Error("configure image store")
			os.Exit(1)
		}
	}

	tokens := auth.NewTokenIssuer(cfg.TokenKey, cfg.TokenTTL)

	application, err := app.New(stores, images, tokens, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	if pw := os.Getenv("VELORA_SEED_ADMIN_PASSWORD"); pw != "" {
		var members []auth.SeedUser
		if path := os.Getenv("VELORA_SEED_FILE"); path != "" {
			seedUsers, err := config.LoadSeedUsers(path)
			if err != nil {
				log.WithError(err).Error("load seed file")
				os.Exit(1)
			}
			for _, su := range seedUsers {
				dob, _ := su.BirthDate()
				members = append(members, auth.SeedUser{
					User: user.User{
						Username:     su.Username,
						Gender:       su.Gender,
						KnownAs:      su.KnownAs,
						DateOfBirth:  dob,
						Introduction: su.Introduction,
						LookingFor:   su.LookingFor,
						Interests:    su.Interests,
						City:         su.City,
						Country:      su.Country,
					},
					Password: su.Password,
					PhotoURL: su.PhotoURL,
				})
			}
		}
		if err := application.Auth.Seed(ctx, members, pw); err != nil {
			log.WithError(err).Error("seed store")
			os.Exit(1)
		}
	}

	authmw := middleware.NewAuthMiddleware(tokens.Decode, application.Users.TouchLastActive, log, httpapi.AnonymousPaths)
	metrics := middleware.NewMetrics()
	cors := middleware.NewCORSMiddleware([]string{"*"})
	tracing := middleware.NewTracingMiddleware(log)
	limiter := middleware.NewRateLimiter(20, 40, log)

	handler := httpapi.NewHandler(application, authmw, metrics)
	handler = limiter.Handler(handler)
	handler = tracing.Handler(handler)
	handler = cors.Handler(handler)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
}
