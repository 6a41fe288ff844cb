package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quizd/quizd/internal/analytics"
	api "github.com/quizd/quizd/internal/api/http"
	"github.com/quizd/quizd/internal/attempt"
	auth "github.com/quizd/quizd/internal/auth/middleware"
	"github.com/quizd/quizd/internal/catalog"
	"github.com/quizd/quizd/internal/config"
	"github.com/quizd/quizd/internal/db"
	"github.com/quizd/quizd/internal/logging"
	"github.com/quizd/quizd/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	logrus.SetOutput(log.Out)
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(log.Level)

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("db open failed")
	}
	defer dbh.Close()

	users := user.NewStore(dbh)
	if cfg.AdminUser != "" {
		if err := users.EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPassHash); err != nil {
			log.WithError(err).Fatal("admin bootstrap failed")
		}
		log.WithField("username", cfg.AdminUser).Info("admin account ensured")
	}

	// --- Router ---
	h := api.NewRouter(api.Deps{
		Users:            users,
		Catalog:          catalog.NewStore(dbh),
		Tests:            attempt.NewService(dbh),
		Analytics:        analytics.NewStore(dbh),
		Auth:             auth.NewAuthService(cfg.AuthSecret, cfg.TokenIssuer, cfg.TokenTTL),
		DB:               dbh,
		Log:              log,
		CatalogAdminOnly: cfg.CatalogAdminOnly,
		CORSOrigins:      cfg.CORSOrigins,
		RequestTimeout:   cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "mode": cfg.Mode, "driver": cfg.DBDriver}).Info("quizd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}
