package migrations

import (
	"gorm.io/gorm"
)

// Migration002ActiveUniqueness adds the partial unique indexes behind the two
// "at most one active" rules: one ACTIVE contest per user, and one active
// weak topic per (user, topic). Both postgres and sqlite support the
// partial index syntax used here.
func Migration002ActiveUniqueness() Migration {
	return Migration{
		ID:        "002_active_uniqueness",
		Name:      "Enforce one active contest per user and one active weak topic per topic",
		DependsOn: []string{"001_create_schema"},
		Up: func(db *gorm.DB) error {
			idx1 := `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_contests_one_active_per_user
				ON contests (user_id) WHERE status = 'ACTIVE'
			`
			if err := db.Exec(idx1).Error; err != nil {
				return err
			}

			idx2 := `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_weak_topics_one_active
				ON weak_topics (user_id, topic) WHERE is_active
			`
			return db.Exec(idx2).Error
		},
		Down: func(db *gorm.DB) error {
			if err := db.Exec(`DROP INDEX IF EXISTS idx_weak_topics_one_active`).Error; err != nil {
				return err
			}
			return db.Exec(`DROP INDEX IF EXISTS idx_contests_one_active_per_user`).Error
		},
	}
}
