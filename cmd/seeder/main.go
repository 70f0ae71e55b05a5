package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/config"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/database"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/migrations"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/seeds"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/services"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"github.com/joho/godotenv"
)

// Usage: seeder [username ...]
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	cfg := config.LoadConfig()
	logger.Init(cfg.Env)
	if cfg.JWTSecret == "" {
		log.Fatal("❌ JWT_SECRET must be set to issue tokens")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect: %v", err)
	}
	defer database.Close(db)

	log.Println("🔄 Running migrations (just in case)...")
	if err := migrations.Migrate(db); err != nil {
		log.Fatalf("❌ Failed to migrate: %v", err)
	}

	usernames := seeds.DemoUsernames
	if len(os.Args) > 1 {
		usernames = os.Args[1:]
	}

	log.Println("👤 Seeding users...")
	users := services.NewUserService(db, nil, cfg.JWTSecret)
	seeded, err := seeds.SeedUsers(context.Background(), users, usernames)
	if err != nil {
		log.Fatalf("❌ Failed to seed users: %v", err)
	}

	fmt.Println(strings.Repeat("-", 72))
	for _, u := range seeded {
		fmt.Printf("%-20s rating=%-3d id=%s\n  token: %s\n", u.Username, u.Rating, u.ID, u.Token)
	}
	log.Println("✅ Seeding complete!")
}
