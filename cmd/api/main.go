package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"beatstore/internal/client"
	"beatstore/internal/config"
	"beatstore/internal/handler"
	"beatstore/internal/middleware"
	"beatstore/internal/repository"
	"beatstore/internal/server"
	"beatstore/internal/service"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	db := client.InitMysqlClient(cfg.DatabaseURL)
	rdb := client.InitRedisClient(&cfg.Redis)
	stripeClient := client.NewStripeClient(&cfg.Stripe)
	emailClient := client.NewEmailClient(&cfg.Email)

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	trackRepo := repository.NewTrackRepository(db)
	userRepo := repository.NewUserRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	mailer := service.NewMailer(emailClient)
	stripeService := service.NewStripeService(
		db, stripeClient, cfg.BaseURL,
		orderRepo,
		paymentRepo,
		trackRepo,
		userRepo,
		webhookEventRepo,
		mailer,
	)
	trackService := service.NewTrackService(trackRepo, rdb)
	downloadService := service.NewDownloadService(orderRepo, trackRepo, cfg.Auth.JWTSecret)

	auth := middleware.NewAuth(cfg.Auth.JWTSecret, userRepo)

	srv := server.NewServer(
		auth,
		handler.NewStripeHandler(stripeService),
		handler.NewTrackHandler(trackService, downloadService),
		handler.NewAdminHandler(trackService, orderRepo),
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	log.Println("Starting HTTP server on", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")

	_, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}
