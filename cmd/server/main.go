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

	"convoy_tracker/internal/config"
	"convoy_tracker/internal/logger"
	"convoy_tracker/internal/metrics"
	"convoy_tracker/internal/middleware"
	"convoy_tracker/internal/realtime"
	"convoy_tracker/internal/routes"
	"convoy_tracker/internal/services"
	"convoy_tracker/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger.Setup(cfg)

	st := store.New()
	hub := realtime.NewHub(st, realtime.Config{
		HistoryWindow:   cfg.HistoryWindow,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
		RatePerSecond:   cfg.WSRatePerSecond,
		RateBurst:       cfg.WSRateBurst,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	reaper := store.NewReaper(st, cfg.ReaperInterval, cfg.RoomRetention, func(code string) {
		hub.CloseRoom(code, "Room expired after inactivity")
		metrics.RoomsReaped.Inc()
		metrics.ActiveRooms.Set(float64(st.Count()))
	}, store.WithRoomLock(hub.Exclusive))
	go reaper.Run(ctx)

	r := routes.SetupRouter(routes.Deps{
		Config: cfg,
		Store:  st,
		Hub:    hub,
		Rooms:  services.NewRoomService(st, hub),
		Admin:  services.NewAdminService(st, hub),
		JWT:    middleware.NewJWT(cfg.AdminJWTSecret),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithFields(logrus.Fields{
			"port": cfg.ServerPort,
			"env":  cfg.AppEnv,
		}).Info("🚀 Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutdown signal received, shutting down server gracefully...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	logrus.Info("Server exiting")
}
