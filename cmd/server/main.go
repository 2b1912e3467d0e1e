package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tripstay/config"
	"tripstay/internal/database"
	"tripstay/internal/router"
	"tripstay/pkg/gateway"
	"tripstay/pkg/mailer"
)

func main() {
	cfg := config.Load()

	log, err := newLogger(cfg.Server.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	var gw gateway.Provider
	if cfg.Chapa.SecretKey == "" && cfg.Server.Env != "production" {
		log.Warn("CHAPA_SECRET_KEY not set, using stub gateway")
		gw = &gateway.Stub{}
	} else {
		chapa, err := gateway.NewChapa(cfg.Chapa.BaseURL, cfg.Chapa.SecretKey, log)
		if err != nil {
			log.Fatal("gateway", zap.Error(err))
		}
		gw = chapa
	}

	mail := mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)

	engine, paymentSvc, dispatcher := router.Setup(cfg, db, gw, mail, log)
	dispatcher.Start(cfg.Payment.Workers)

	// Time-driven expiry sweep, independent of request handling.
	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Payment.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := paymentSvc.ExpireStalePayments(time.Now()); err != nil {
					log.Error("expiry sweep", zap.Error(err))
				}
			case <-sweepDone:
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")
	close(sweepDone)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	dispatcher.Stop()
	log.Info("server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
