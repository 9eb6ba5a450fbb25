package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/rl1809/rocket-cart/internal/app"
	"github.com/rl1809/rocket-cart/internal/config"
	"github.com/rl1809/rocket-cart/internal/logging"
)

const healthInterval = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logging.New(os.Stdout, os.Getenv("LOG_LEVEL"))
	cfg := config.Load(log)
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize")
	}
	log.WithField("items", a.Cart.Cart().Size()).Info("cart restored")

	// gRPC health
	grpcServer := grpc.NewServer()
	a.Health.Register(grpcServer)
	go a.Health.Watch(ctx, healthInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.WithError(err).Fatal("failed to listen")
	}

	go func() {
		log.Infof("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).Error("gRPC server error")
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: a.HTTP.Routes(a.Hub),
	}

	go func() {
		log.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	a.Hub.Close()
	httpServer.Shutdown(shutdownCtx)
	log.Info("HTTP server stopped")

	a.Health.Shutdown()
	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	if err := a.Close(); err != nil {
		log.WithError(err).Warn("closing connections")
	}
	log.Info("connections closed")
}
