package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/database"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/models"
	apperrors "github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/utils"
	"gorm.io/gorm"
)

const (
	statisticsCacheTTL  = 60 * time.Second
	leaderboardCacheTTL = 30 * time.Second

	leaderboardCachePattern = "leaderboard:*"

	DefaultTokenTTL = 30 * 24 * time.Hour

	DefaultListLimit        = 100
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 200
)

func statisticsCacheKey(userID string) string {
	return "user:stats:" + userID
}

func leaderboardCacheKey(limit int) string {
	return fmt.Sprintf("leaderboard:%d", limit)
}

type CreateUserInput struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
}

type UpdateUserInput struct {
	Email *string `json:"email"`
}

// CreatedUser is a new user together with its API token.
type CreatedUser struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type RatingPoint struct {
	Date   *time.Time `json:"date"`
	Rating int        `json:"rating"`
	Change int        `json:"change"`
}

type UserStatistics struct {
	UserID            string         `json:"user_id"`
	Username          string         `json:"username"`
	Rating            int            `json:"rating"`
	RatingHistory     []RatingPoint  `json:"rating_history"`
	TopicDistribution map[string]int `json:"topic_distribution"`
	WeakTopicsCount   int64          `json:"weak_topics_count"`
	AverageSolveTime  *float64       `json:"average_solve_time"`
	ContestsCompleted int64          `json:"contests_completed"`
	// WinRate is the percentage of completed contests with every problem solved.
	WinRate float64 `json:"win_rate"`
}

type LeaderboardEntry struct {
	Rank                int    `json:"rank"`
	UserID              string `json:"user_id"`
	Username            string `json:"username"`
	Rating              int    `json:"rating"`
	TotalContests       int    `json:"total_contests"`
	TotalProblemsSolved int    `json:"total_problems_solved"`
}

type UserService struct {
	db        *gorm.DB
	cache     *database.Cache
	jwtSecret string
	tokenTTL  time.Duration
}

func NewUserService(db *gorm.DB, cache *database.Cache, jwtSecret string) *UserService {
	return &UserService{
		db:        db,
		cache:     cache,
		jwtSecret: jwtSecret,
		tokenTTL:  DefaultTokenTTL,
	}
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	e := strings.ToLower(strings.TrimSpace(*email))
	if e == "" {
		return nil
	}
	return &e
}

// Create registers a user at the initial rating and issues an API token.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*CreatedUser, error) {
	username := strings.TrimSpace(in.Username)
	if !utils.ValidateUsername(username) {
		return nil, apperrors.BadRequest("Username must be 3-50 characters: letters, digits, '_' or '-'")
	}
	email := normalizeEmail(in.Email)
	if email != nil && !strings.Contains(*email, "@") {
		return nil, apperrors.BadRequest("Invalid email address")
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperrors.Conflict(fmt.Sprintf("Username '%s' already exists", username))
	}
	if email != nil {
		if err := db.Model(&models.User{}).Where("email = ?", *email).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, apperrors.Conflict(fmt.Sprintf("Email '%s' already exists", *email))
		}
	}

	user := &models.User{
		ID:       utils.GenerateID(),
		Username: username,
		Email:    email,
		Rating:   models.InitialRating,
	}
	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("Username or email already exists")
		}
		return nil, err
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("userId", user.ID).Str("username", user.Username).Msg("User created")
	return &CreatedUser{User: user, Token: token}, nil
}

// IssueToken signs an API token for userID.
func (s *UserService) IssueToken(userID string) (string, error) {
	token, err := utils.GenerateToken(s.jwtSecret, userID, s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("TopicRatings", func(db *gorm.DB) *gorm.DB { return db.Order("topic ASC") }).
		Preload("WeakTopics", "is_active = ?", true).
		First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound.WithMessage(fmt.Sprintf("User %s not found", userID))
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("TopicRatings", func(db *gorm.DB) *gorm.DB { return db.Order("topic ASC") }).
		Preload("WeakTopics", "is_active = ?", true).
		First(&user, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound.WithMessage(fmt.Sprintf("User '%s' not found", username))
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns users ordered by rating, highest first.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	var users []models.User
	err := s.db.WithContext(ctx).
		Order("rating DESC").
		Order("username ASC").
		Limit(limit).
		Offset(max(offset, 0)).
		Find(&users).Error
	return users, err
}

func (s *UserService) exists(db *gorm.DB, userID string) error {
	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperrors.ErrUserNotFound.WithMessage(fmt.Sprintf("User %s not found", userID))
	}
	return nil
}

// Update changes the user's email. A nil email leaves it unchanged.
func (s *UserService) Update(ctx context.Context, userID string, in UpdateUserInput) (*models.User, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound.WithMessage(fmt.Sprintf("User %s not found", userID))
		}
		return nil, err
	}

	if in.Email != nil {
		email := normalizeEmail(in.Email)
		if email != nil {
			var count int64
			if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", *email, userID).Count(&count).Error; err != nil {
				return nil, err
			}
			if count > 0 {
				return nil, apperrors.Conflict(fmt.Sprintf("Email '%s' already in use", *email))
			}
		}
		if err := db.Model(&user).Update("email", email).Error; err != nil {
			return nil, err
		}
		user.Email = email
	}
	return &user, nil
}

// Delete removes a user and, through cascading keys, everything they own.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	db := s.db.WithContext(ctx)
	if err := s.exists(db, userID); err != nil {
		return err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var contestIDs []string
		if err := tx.Model(&models.Contest{}).Where("user_id = ?", userID).Pluck("id", &contestIDs).Error; err != nil {
			return err
		}
		if len(contestIDs) > 0 {
			if err := tx.Where("contest_id IN ?", contestIDs).Delete(&models.ProblemReflection{}).Error; err != nil {
				return err
			}
			if err := tx.Where("contest_id IN ?", contestIDs).Delete(&models.ContestProblem{}).Error; err != nil {
				return err
			}
		}
		for _, m := range []any{&models.Contest{}, &models.ProblemHistory{}, &models.WeakTopic{}, &models.TopicRating{}} {
			if err := tx.Where("user_id = ?", userID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.User{}, "id = ?", userID).Error
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	logger.Info().Str("userId", userID).Msg("User deleted")
	return nil
}

func (s *UserService) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, statisticsCacheKey(userID)); err != nil {
		logger.Warn().Err(err).Msg("Failed to invalidate statistics cache")
	}
	if err := s.cache.Invalidate(ctx, leaderboardCachePattern); err != nil {
		logger.Warn().Err(err).Msg("Failed to invalidate leaderboard cache")
	}
}

func (s *UserService) TopicRatings(ctx context.Context, userID string) ([]models.TopicRating, error) {
	db := s.db.WithContext(ctx)
	if err := s.exists(db, userID); err != nil {
		return nil, err
	}
	var ratings []models.TopicRating
	err := db.Where("user_id = ?", userID).Order("rating DESC").Order("topic ASC").Find(&ratings).Error
	return ratings, err
}

func (s *UserService) WeakTopics(ctx context.Context, userID string, activeOnly bool) ([]models.WeakTopic, error) {
	db := s.db.WithContext(ctx)
	if err := s.exists(db, userID); err != nil {
		return nil, err
	}
	q := db.Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var weak []models.WeakTopic
	err := q.Order("detected_at ASC").Find(&weak).Error
	return weak, err
}

// Statistics summarises a user's completed contests. Results are cached
// briefly and dropped whenever one of the user's contests ends.
func (s *UserService) Statistics(ctx context.Context, userID string) (*UserStatistics, error) {
	var cached UserStatistics
	if err := s.cache.Get(ctx, statisticsCacheKey(userID), &cached); err == nil {
		return &cached, nil
	}

	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Preload("TopicRatings").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound.WithMessage(fmt.Sprintf("User %s not found", userID))
		}
		return nil, err
	}

	stats := &UserStatistics{
		UserID:            user.ID,
		Username:          user.Username,
		Rating:            user.Rating,
		RatingHistory:     []RatingPoint{},
		TopicDistribution: make(map[string]int, len(user.TopicRatings)),
	}
	for _, tr := range user.TopicRatings {
		stats.TopicDistribution[tr.Topic] = tr.Solved
	}

	var completed []models.Contest
	if err := db.Where("user_id = ? AND status = ?", userID, models.ContestStatusCompleted).
		Order("ended_at ASC").
		Find(&completed).Error; err != nil {
		return nil, err
	}
	perfect := 0
	for _, c := range completed {
		stats.RatingHistory = append(stats.RatingHistory, RatingPoint{
			Date:   c.EndedAt,
			Rating: c.RatingAtStart + c.RatingChange,
			Change: c.RatingChange,
		})
		if c.ProblemsSolved == c.NumProblems {
			perfect++
		}
	}
	stats.ContestsCompleted = int64(len(completed))
	if len(completed) > 0 {
		stats.WinRate = float64(perfect) / float64(len(completed)) * 100
	}

	var avg struct {
		Avg   *float64
		Count int64
	}
	if err := db.Model(&models.ContestProblem{}).
		Select("AVG(contest_problems.time_taken_seconds) AS avg, COUNT(*) AS count").
		Joins("JOIN contests ON contests.id = contest_problems.contest_id").
		Where("contests.user_id = ? AND contest_problems.status = ? AND contest_problems.time_taken_seconds IS NOT NULL",
			userID, models.ProblemStatusSolved).
		Scan(&avg).Error; err != nil {
		return nil, err
	}
	if avg.Count > 0 {
		stats.AverageSolveTime = avg.Avg
	}

	if err := db.Model(&models.WeakTopic{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&stats.WeakTopicsCount).Error; err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, statisticsCacheKey(userID), stats, statisticsCacheTTL); err != nil {
		logger.Warn().Err(err).Str("userId", userID).Msg("Failed to cache statistics")
	}
	return stats, nil
}

// Leaderboard ranks users by rating, then by problems solved.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	limit = min(limit, MaxLeaderboardLimit)

	var cached []LeaderboardEntry
	if err := s.cache.Get(ctx, leaderboardCacheKey(limit), &cached); err == nil {
		return cached, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).
		Order("rating DESC").
		Order("total_problems_solved DESC").
		Order("username ASC").
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = LeaderboardEntry{
			Rank:                i + 1,
			UserID:              u.ID,
			Username:            u.Username,
			Rating:              u.Rating,
			TotalContests:       u.TotalContests,
			TotalProblemsSolved: u.TotalProblemsSolved,
		}
	}

	if err := s.cache.Set(ctx, leaderboardCacheKey(limit), entries, leaderboardCacheTTL); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache leaderboard")
	}
	return entries, nil
}
