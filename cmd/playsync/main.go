package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"beatstore/internal/client"
	"beatstore/internal/config"
	"beatstore/internal/repository"
	"beatstore/internal/service"
)

const syncInterval = 1 * time.Minute

func main() {
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

	trackRepo := repository.NewTrackRepository(db)
	trackService := service.NewTrackService(trackRepo, rdb)

	log.Println("play count sync worker started")
	log.Printf("sync interval: %v", syncInterval)

	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	sync(trackService)

	for range ticker.C {
		sync(trackService)
	}
}

func sync(trackService service.TrackService) {
	if err := trackService.SyncPlayCounts(context.Background()); err != nil {
		log.Printf("sync play counts: %v", err)
	}
}
