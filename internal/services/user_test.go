package services

import (
	"context"
	"testing"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/models"
	apperrors "github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserIssuesToken(t *testing.T) {
	env := newContestEnv(t, denseCatalog())
	ctx := context.Background()

	created, err := env.users.Create(ctx, CreateUserInput{Username: "alice", Email: strPtr(" Alice@Example.com ")})
	require.NoError(t, err)
	assert.Equal(t, models.InitialRating, created.User.Rating)
	require.NotNil(t, created.User.Email)
	assert.Equal(t, "alice@example.com", *created.User.Email)

	claims, err := utils.ValidateToken(testJWTSecret, created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, claims.UserID)

	_, err = env.users.Create(ctx, CreateUserInput{Username: "alice"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, err = env.users.Create(ctx, CreateUserInput{Username: "alice2", Email: strPtr("alice@example.com")})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, err = env.users.Create(ctx, CreateUserInput{Username: "al"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	_, err = env.users.Create(ctx, CreateUserInput{Username: "bad name!"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	_, err = env.users.Create(ctx, CreateUserInput{Username: "bob", Email: strPtr("not-an-email")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	// Users without an email do not collide on the unique index.
	_, err = env.users.Create(ctx, CreateUserInput{Username: "bob"})
	require.NoError(t, err)
	_, err = env.users.Create(ctx, CreateUserInput{Username: "carol", Email: strPtr("")})
	require.NoError(t, err)
}

func TestUserReadsAndUpdates(t *testing.T) {
	env := newContestEnv(t, denseCatalog())
	ctx := context.Background()

	created, err := env.users.Create(ctx, CreateUserInput{Username: "alice"})
	require.NoError(t, err)
	id := created.User.ID
	seedWeakTopic(t, env.db, id, "math_nt", 10, 30, 0)
	resolved := seedWeakTopic(t, env.db, id, "dp_general", 10, 30, 0)
	require.NoError(t, env.db.Model(resolved).Update("is_active", false).Error)

	u, err := env.users.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	require.Len(t, u.WeakTopics, 1, "only active weak topics are preloaded")
	assert.Equal(t, "math_nt", u.WeakTopics[0].Topic)

	byName, err := env.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)

	_, err = env.users.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	all, err := env.users.WeakTopics(ctx, id, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	active, err := env.users.WeakTopics(ctx, id, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	updated, err := env.users.Update(ctx, id, UpdateUserInput{Email: strPtr("a@b.io")})
	require.NoError(t, err)
	assert.Equal(t, "a@b.io", *updated.Email)

	other, err := env.users.Create(ctx, CreateUserInput{Username: "bob"})
	require.NoError(t, err)
	_, err = env.users.Update(ctx, other.User.ID, UpdateUserInput{Email: strPtr("a@b.io")})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	users, err := env.users.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = env.users.TopicRatings(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestDeleteUserRemovesOwnedRows(t *testing.T) {
	env := newContestEnv(t, denseCatalog())
	ctx := context.Background()
	user := createUser(t, env.db, "alice", 20)

	contest := startContest(t, env, user.ID, CreateContestInput{NumProblems: 3})
	_, err := env.contests.Submit(ctx, contest.ID, SubmitInput{ProblemID: contest.Problems[0].ProblemID, Solved: false})
	require.NoError(t, err)
	_, err = env.contests.End(ctx, contest.ID)
	require.NoError(t, err)

	require.NoError(t, env.users.Delete(ctx, user.ID))

	_, err = env.users.Get(ctx, user.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	for _, m := range []any{&models.Contest{}, &models.ContestProblem{}, &models.ProblemHistory{}, &models.TopicRating{}} {
		var count int64
		require.NoError(t, env.db.Model(m).Count(&count).Error)
		assert.Zero(t, count, "%T", m)
	}

	assert.ErrorIs(t, env.users.Delete(ctx, user.ID), apperrors.ErrUserNotFound)
}

func TestStatistics(t *testing.T) {
	env := newContestEnv(t, denseCatalog())
	ctx := context.Background()
	user := createUser(t, env.db, "alice", 20)

	empty, err := env.users.Statistics(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, empty.ContestsCompleted)
	assert.Nil(t, empty.AverageSolveTime)
	assert.Empty(t, empty.RatingHistory)

	// A clean sweep, then a contest with one failure.
	c := startContest(t, env, user.ID, CreateContestInput{NumProblems: 3})
	for i, p := range c.Problems {
		_, err := env.contests.Submit(ctx, c.ID, SubmitInput{ProblemID: p.ProblemID, Solved: true, TimeTakenSeconds: intPtr(60 * (i + 1))})
		require.NoError(t, err)
	}
	_, err = env.contests.End(ctx, c.ID)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	c = startContest(t, env, user.ID, CreateContestInput{NumProblems: 3})
	_, err = env.contests.Submit(ctx, c.ID, SubmitInput{ProblemID: c.Problems[0].ProblemID, Solved: false})
	require.NoError(t, err)
	_, err = env.contests.End(ctx, c.ID)
	require.NoError(t, err)

	stats, err := env.users.Statistics(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ContestsCompleted)
	assert.Equal(t, 30, stats.Rating)
	assert.InDelta(t, 50.0, stats.WinRate, 0.001)
	require.Len(t, stats.RatingHistory, 2)
	assert.Equal(t, 30, stats.RatingHistory[0].Rating)
	assert.Equal(t, 10, stats.RatingHistory[0].Change)
	assert.Equal(t, 30, stats.RatingHistory[1].Rating)
	require.NotNil(t, stats.AverageSolveTime)
	assert.InDelta(t, 120.0, *stats.AverageSolveTime, 0.001)

	solved := 0
	for _, n := range stats.TopicDistribution {
		solved += n
	}
	assert.Equal(t, 3, solved)

	_, err = env.users.Statistics(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestLeaderboardOrdering(t *testing.T) {
	env := newContestEnv(t, denseCatalog())
	ctx := context.Background()

	low := createUser(t, env.db, "low", 20)
	high := createUser(t, env.db, "high", 50)
	tied := createUser(t, env.db, "tied", 50)
	require.NoError(t, env.db.Model(tied).Update("total_problems_solved", 7).Error)

	board, err := env.users.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, tied.ID, board[0].UserID, "ties on rating are broken by problems solved")
	assert.Equal(t, high.ID, board[1].UserID)
	assert.Equal(t, low.ID, board[2].UserID)
	assert.Equal(t, []int{1, 2, 3}, []int{board[0].Rank, board[1].Rank, board[2].Rank})

	top, err := env.users.Leaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}
