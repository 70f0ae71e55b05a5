package migrations

import (
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/models"
	"gorm.io/gorm"
)

// schemaModels is every table the application owns, parents first.
func schemaModels() []any {
	return []any{
		&models.User{},
		&models.TopicRating{},
		&models.WeakTopic{},
		&models.Contest{},
		&models.ContestProblem{},
		&models.ProblemHistory{},
		&models.ProblemReflection{},
	}
}

// Migration001CreateSchema creates the tables from the gorm models.
func Migration001CreateSchema() Migration {
	return Migration{
		ID:   "001_create_schema",
		Name: "Create users, contests, ratings and reflection tables",
		Up: func(db *gorm.DB) error {
			return db.AutoMigrate(schemaModels()...)
		},
		Down: func(db *gorm.DB) error {
			tables := schemaModels()
			for i := len(tables) - 1; i >= 0; i-- {
				if err := db.Migrator().DropTable(tables[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
