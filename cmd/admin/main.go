package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"beatstore/internal/client"
	"beatstore/internal/config"
	"beatstore/internal/model"
	"beatstore/internal/repository"
	"beatstore/internal/service"
)

func loadConfig() *config.Config {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("parse config: %v", err)
	}
	return cfg
}

func main() {
	root := &cobra.Command{
		Use:   "admin",
		Short: "beatstore admin tooling",
	}

	root.AddCommand(migrateCmd(), seedCmd(), syncPlaysCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			client.InitMysqlClient(cfg.DatabaseURL)
			log.Println("migrations applied")
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo tracks and price tiers",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			db := client.InitMysqlClient(cfg.DatabaseURL)
			trackRepo := repository.NewTrackRepository(db)

			adminID := uuid.NewString()
			if err := db.Create(&model.User{
				ID:      adminID,
				Email:   "admin@beatstore.example",
				Name:    "Store Admin",
				IsAdmin: true,
			}).Error; err != nil {
				log.Fatalf("seed admin user: %v", err)
			}

			demo := []*model.Track{
				{
					ID:       uuid.NewString(),
					UserID:   adminID,
					Name:     "Midnight Drive",
					Artist:   "Nova Waves",
					Duration: 184,
					Status:   model.TrackStatusPublished,
					Prices: []model.TrackPrice{
						{ID: uuid.NewString(), LicenseType: "mp3_lease", Amount: 2999, Currency: "usd"},
						{ID: uuid.NewString(), LicenseType: "exclusive", Amount: 49999, Currency: "usd"},
					},
				},
				{
					ID:       uuid.NewString(),
					UserID:   adminID,
					Name:     "Golden Hour",
					Artist:   "Nova Waves",
					Duration: 201,
					Status:   model.TrackStatusPublished,
					Prices: []model.TrackPrice{
						{ID: uuid.NewString(), LicenseType: "mp3_lease", Amount: 2499, Currency: "usd"},
						{ID: uuid.NewString(), LicenseType: "wav_lease", Amount: 4999, Currency: "usd"},
					},
				},
			}

			for _, track := range demo {
				for i := range track.Prices {
					track.Prices[i].TrackID = track.ID
				}
				if err := trackRepo.Create(context.Background(), track); err != nil {
					log.Fatalf("seed track %s: %v", track.Name, err)
				}
			}

			log.Printf("seeded %d tracks", len(demo))
		},
	}
}

func syncPlaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-plays",
		Short: "Flush buffered play counters into the database once",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			db := client.InitMysqlClient(cfg.DatabaseURL)
			rdb := client.InitRedisClient(&cfg.Redis)

			trackService := service.NewTrackService(repository.NewTrackRepository(db), rdb)
			if err := trackService.SyncPlayCounts(context.Background()); err != nil {
				log.Fatalf("sync play counts: %v", err)
			}
			log.Println("play counts synced")
		},
	}
}
