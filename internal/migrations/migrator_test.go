package migrations

import (
	"testing"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/database"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect("sqlite:file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestRunAppliesAllMigrationsOnce(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "second run is a no-op")

	ids, err := NewMigrator(db).Applied()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create_schema", "002_active_uniqueness", "003_add_lookup_indexes"}, ids)

	for _, table := range []string{"users", "topic_ratings", "weak_topics", "contests", "contest_problems", "problem_history", "problem_reflections"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestOneActiveContestPerUser(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	user := models.User{ID: "u1", Username: "alice", Rating: 20}
	require.NoError(t, db.Create(&user).Error)

	newContest := func(id string, status models.ContestStatus) *models.Contest {
		return &models.Contest{
			ID: id, UserID: user.ID, Status: status,
			RatingAtStart: 20, NumProblems: 3, TargetDifficulty: 30, TimeLimitMinutes: 60,
			StartedAt: time.Now(),
		}
	}

	require.NoError(t, db.Create(newContest("c1", models.ContestStatusActive)).Error)
	err := db.Create(newContest("c2", models.ContestStatusActive)).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Terminal contests are not constrained.
	require.NoError(t, db.Create(newContest("c3", models.ContestStatusCompleted)).Error)
	require.NoError(t, db.Create(newContest("c4", models.ContestStatusAbandoned)).Error)
}

func TestOneActiveWeakTopicPerTopic(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&models.User{ID: "u1", Username: "bob", Rating: 20}).Error)

	weak := func(id string, active bool) *models.WeakTopic {
		return &models.WeakTopic{
			ID: id, UserID: "u1", Topic: "graph_traversal",
			CurrentLevel: 10, TargetLevel: 30, IsActive: active, DetectedAt: time.Now(),
		}
	}

	require.NoError(t, db.Create(weak("w1", true)).Error)
	assert.ErrorIs(t, db.Create(weak("w2", true)).Error, gorm.ErrDuplicatedKey)

	// Resolved rows may pile up beside the active one.
	require.NoError(t, db.Create(weak("w3", false)).Error)
	require.NoError(t, db.Create(weak("w4", false)).Error)
}

func TestRollbackRevertsLatestMigration(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db)
	require.NoError(t, m.Run())

	id, err := m.Rollback()
	require.NoError(t, err)
	assert.Equal(t, "003_add_lookup_indexes", id)

	ids, err := m.Applied()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create_schema", "002_active_uniqueness"}, ids)

	require.NoError(t, m.Run())
	ids, err = m.Applied()
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}
