package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/catalog"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/database"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/migrations"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/models"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/utils"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret"

var testStart = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect("sqlite:file::memory:")
	require.NoError(t, err)
	require.NoError(t, migrations.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testStart}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func strPtr(s string) *string { return &s }

func intPtr(v int) *int { return &v }

// topicCatalog has one problem per (topic, difficulty) for the given topics
// and difficulties.
func topicCatalog(topics []string, difficulties ...int) *catalog.Catalog {
	var problems []catalog.Problem
	for _, topic := range topics {
		for _, d := range difficulties {
			problems = append(problems, catalog.Problem{
				ID:         fmt.Sprintf("%s-%d", topic, d),
				Name:       fmt.Sprintf("%s #%d", topic, d),
				URL:        "https://example.com/" + topic,
				Source:     "codeforces",
				Difficulty: d,
				PatternID:  strPtr(topic),
			})
		}
	}
	return catalog.New(problems)
}

var denseTopics = []string{
	"dp_general", "graph_traversal", "graph_shortest_path", "tree_general", "search_binary",
	"ds_segtree", "math_nt", "string_general", "tech_greedy", "tech_sorting",
}

func denseCatalog() *catalog.Catalog {
	ds := make([]int, 100)
	for i := range ds {
		ds[i] = i + 1
	}
	return topicCatalog(denseTopics, ds...)
}

type contestEnv struct {
	db       *gorm.DB
	clock    *testClock
	contests *ContestService
	rating   *RatingService
	users    *UserService
}

func newContestEnv(t *testing.T, cat *catalog.Catalog) *contestEnv {
	t.Helper()
	db := newTestDB(t)
	clock := newTestClock()
	cache := database.NewCache(context.Background(), "", "")
	rating := NewRatingService(db)
	return &contestEnv{
		db:       db,
		clock:    clock,
		rating:   rating,
		contests: NewContestService(db, catalog.NewSelector(cat, catalog.WithSeed(42)), rating, cache, WithClock(clock.Now)),
		users:    NewUserService(db, cache, testJWTSecret),
	}
}

func createUser(t *testing.T, db *gorm.DB, username string, rating int) *models.User {
	t.Helper()
	u := &models.User{ID: utils.GenerateID(), Username: username, Rating: rating}
	require.NoError(t, db.Create(u).Error)
	return u
}

func reloadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, "id = ?", id).Error)
	return &u
}
