package migrations

import (
	"gorm.io/gorm"
)

// Migration003AddLookupIndexes adds indexes for the hot read paths:
// 1. Recent-problem exclusion (user_id, last_attempted_at)
// 2. Contest history, newest first (user_id, started_at)
// 3. Leaderboard ordering (rating, total_problems_solved)
func Migration003AddLookupIndexes() Migration {
	return Migration{
		ID:        "003_add_lookup_indexes",
		Name:      "Add indexes for history, exclusion and leaderboard queries",
		DependsOn: []string{"001_create_schema"},
		Up: func(db *gorm.DB) error {
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_problem_history_recent ON problem_history (user_id, last_attempted_at)`,
				`CREATE INDEX IF NOT EXISTS idx_contests_user_started ON contests (user_id, started_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_users_leaderboard ON users (rating DESC, total_problems_solved DESC)`,
			}
			for _, stmt := range stmts {
				if err := db.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Down: func(db *gorm.DB) error {
			for _, idx := range []string{"idx_users_leaderboard", "idx_contests_user_started", "idx_problem_history_recent"} {
				if err := db.Exec("DROP INDEX IF EXISTS " + idx).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}
