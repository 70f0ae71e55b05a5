// Command dbtool operates the versioned migrations and prints
// row counts per table.
//
// Usage: dbtool [status|migrate|rollback|counts]
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/config"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/database"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/migrations"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/models"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"gorm.io/gorm"
)

func main() {
	cmd := "status"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	cfg := config.LoadConfig()
	logger.Init(cfg.Env)
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect: %v", err)
	}
	defer database.Close(db)

	m := migrations.NewMigrator(db)
	switch cmd {
	case "status":
		if err := printStatus(db, m); err != nil {
			log.Fatalf("❌ %v", err)
		}
	case "migrate":
		if err := m.Run(); err != nil {
			log.Fatalf("❌ %v", err)
		}
		log.Println("✅ Migrations applied")
	case "rollback":
		id, err := m.Rollback()
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		if id == "" {
			log.Println("Nothing to roll back")
			return
		}
		log.Printf("✅ Reverted %s", id)
	case "counts":
		printCounts(db)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\nusage: dbtool [status|migrate|rollback|counts]\n", cmd)
		os.Exit(2)
	}
}

func printStatus(db *gorm.DB, m *migrations.Migrator) error {
	if !db.Migrator().HasTable(&migrations.MigrationRecord{}) {
		fmt.Println("No migrations applied")
		return nil
	}
	applied, err := m.Applied()
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, id := range applied {
		done[id] = true
	}
	for _, mig := range migrations.GetMigrations() {
		state := "pending"
		if done[mig.ID] {
			state = "applied"
		}
		fmt.Printf("%-8s %-32s %s\n", state, mig.ID, mig.Name)
	}
	return nil
}

func printCounts(db *gorm.DB) {
	tables := []any{
		&models.User{},
		&models.TopicRating{},
		&models.WeakTopic{},
		&models.Contest{},
		&models.ContestProblem{},
		&models.ProblemHistory{},
		&models.ProblemReflection{},
	}
	for _, t := range tables {
		var n int64
		if err := db.Model(t).Count(&n).Error; err != nil {
			fmt.Printf("%-24T error: %v\n", t, err)
			continue
		}
		fmt.Printf("%-24T %d\n", t, n)
	}
}
