package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gwiit/backend/internal/app"
	"gwiit/backend/internal/config"
	"gwiit/backend/internal/logger"
	"gwiit/backend/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").Fatalf("config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, app.Options{Telemetry: true})
	if err != nil {
		log.Fatalf("app: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	s := server.NewServer(log)
	server.RegisterServices(s, server.Deps{Health: a.Health, Reflection: cfg.Env != "production"})
	go a.Health.Run(ctx, 15*time.Second)

	go func() {
		log.WithField("addr", cfg.GRPCAddr).Info("gRPC server listening")
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down gRPC server...")
	s.GracefulStop()
	log.Info("gRPC server stopped")
}
