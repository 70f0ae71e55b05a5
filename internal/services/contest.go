package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/catalog"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/database"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/models"
	apperrors "github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Contest parameters.
const (
	DefaultNumProblems = 5
	MinNumProblems     = 3
	MaxNumProblems     = 10

	DefaultTimeLimitMinutes = 120
	MinTimeLimitMinutes     = 30
	MaxTimeLimitMinutes     = 300

	// TargetDifficultyOffset is added to the user's rating to get the
	// contest's target difficulty.
	TargetDifficultyOffset = 10

	// RecentProblemWindow is how long an attempted problem stays excluded
	// from new contests.
	RecentProblemWindow = 30 * 24 * time.Hour

	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50

	maxApproachLength = 5000
)

// CreateContestInput holds the options for a new contest. Zero values pick
// the defaults.
type CreateContestInput struct {
	NumProblems       int   `json:"num_problems"`
	TimeLimitMinutes  int   `json:"time_limit_minutes"`
	IncludeWeakTopics *bool `json:"include_weak_topics"`
}

func (in *CreateContestInput) normalize() error {
	if in.NumProblems == 0 {
		in.NumProblems = DefaultNumProblems
	}
	if in.TimeLimitMinutes == 0 {
		in.TimeLimitMinutes = DefaultTimeLimitMinutes
	}
	if in.IncludeWeakTopics == nil {
		include := true
		in.IncludeWeakTopics = &include
	}
	if in.NumProblems < MinNumProblems || in.NumProblems > MaxNumProblems {
		return apperrors.BadRequest(fmt.Sprintf("num_problems must be between %d and %d", MinNumProblems, MaxNumProblems))
	}
	if in.TimeLimitMinutes < MinTimeLimitMinutes || in.TimeLimitMinutes > MaxTimeLimitMinutes {
		return apperrors.BadRequest(fmt.Sprintf("time_limit_minutes must be between %d and %d", MinTimeLimitMinutes, MaxTimeLimitMinutes))
	}
	return nil
}

// SubmitInput is one problem submission.
type SubmitInput struct {
	ProblemID        string `json:"problem_id"`
	Solved           bool   `json:"solved"`
	TimeTakenSeconds *int   `json:"time_taken_seconds"`
	UserApproach     string `json:"user_approach"`
}

func (in *SubmitInput) validate() error {
	if in.ProblemID == "" {
		return apperrors.BadRequest("problem_id is required")
	}
	if in.TimeTakenSeconds != nil && *in.TimeTakenSeconds < 0 {
		return apperrors.BadRequest("time_taken_seconds must not be negative")
	}
	return nil
}

// SubmitOutcome reports one item of a batch submission.
type SubmitOutcome struct {
	ContestID        string `json:"contest_id"`
	ProblemID        string `json:"problem_id"`
	Status           string `json:"status"`
	TimeTakenSeconds *int   `json:"time_taken_seconds"`
	Message          string `json:"message"`
}

type ContestService struct {
	db       *gorm.DB
	selector *catalog.Selector
	rating   *RatingService
	cache    *database.Cache
	now      func() time.Time
}

type ContestOption func(*ContestService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ContestOption {
	return func(s *ContestService) {
		s.now = now
	}
}

func NewContestService(db *gorm.DB, selector *catalog.Selector, rating *RatingService, cache *database.Cache, opts ...ContestOption) *ContestService {
	s := &ContestService{
		db:       db,
		selector: selector,
		rating:   rating,
		cache:    cache,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new contest for userID. The active-contest check, the
// selection and the inserts share one transaction; a concurrent creation
// that slips past the check is stopped by the partial unique index.
func (s *ContestService) Create(ctx context.Context, userID string, in CreateContestInput) (*models.Contest, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.now()

	var contest *models.Contest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrUserNotFound
			}
			return err
		}

		var active models.Contest
		err := tx.Select("id").Where("user_id = ? AND status = ?", userID, models.ContestStatusActive).Take(&active).Error
		if err == nil {
			return apperrors.ErrActiveContestExists.WithMessage("User already has an active contest: " + active.ID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		target := user.Rating + TargetDifficultyOffset

		var weak []models.WeakTopic
		if *in.IncludeWeakTopics {
			if err := tx.Where("user_id = ? AND is_active = ?", userID, true).Order("detected_at ASC").Find(&weak).Error; err != nil {
				return err
			}
		}
		weakByTopic := make(map[string]*models.WeakTopic, len(weak))
		weakTopics := make([]string, 0, len(weak))
		for i := range weak {
			weakByTopic[weak[i].Topic] = &weak[i]
			weakTopics = append(weakTopics, weak[i].Topic)
		}

		excluded, err := recentProblemIDs(tx, userID, now.Add(-RecentProblemWindow))
		if err != nil {
			return err
		}

		start := time.Now()
		selected := s.selector.Select(catalog.SelectRequest{
			TargetDifficulty:  target,
			Count:             in.NumProblems,
			WeakTopics:        weakTopics,
			ExcludedIDs:       excluded,
			IncludeWeakTopics: *in.IncludeWeakTopics,
		})
		selectionDuration.Observe(time.Since(start).Seconds())

		if len(selected) < in.NumProblems {
			selectorShortfall.Inc()
			logger.Warn().
				Str("userId", userID).
				Int("target", target).
				Int("found", len(selected)).
				Int("needed", in.NumProblems).
				Msg("Selector shortfall")
			return apperrors.ErrInsufficientProblems.WithMessage(
				fmt.Sprintf("Could not find enough problems. Found %d, needed %d", len(selected), in.NumProblems))
		}

		contest = &models.Contest{
			ID:               utils.GenerateID(),
			UserID:           userID,
			Status:           models.ContestStatusActive,
			RatingAtStart:    user.Rating,
			NumProblems:      in.NumProblems,
			TargetDifficulty: target,
			TimeLimitMinutes: in.TimeLimitMinutes,
			StartedAt:        now,
			Problems:         make([]models.ContestProblem, 0, len(selected)),
		}
		for i, item := range selected {
			itemTarget := item.TargetDifficulty
			if item.IsWeakTopicProblem {
				if wt, ok := weakByTopic[item.Topic]; ok {
					itemTarget = wt.CurrentLevel
				}
			}
			contest.Problems = append(contest.Problems, models.ContestProblem{
				ID:                 utils.GenerateID(),
				ProblemID:          item.Problem.ID,
				ProblemName:        item.Problem.Name,
				ProblemURL:         item.Problem.URL,
				ProblemSource:      item.Problem.Source,
				Topic:              item.Topic,
				Difficulty:         item.Problem.Difficulty,
				TargetDifficulty:   itemTarget,
				IsWeakTopicProblem: item.IsWeakTopicProblem,
				Position:           i + 1,
				Status:             models.ProblemStatusPending,
			})
		}

		if err := tx.Create(contest).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrActiveContestExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	contestsCreated.Inc()
	logger.Info().
		Str("contestId", contest.ID).
		Str("userId", userID).
		Int("target", contest.TargetDifficulty).
		Int("problems", contest.NumProblems).
		Msg("Contest created")

	return contest, nil
}

func recentProblemIDs(tx *gorm.DB, userID string, since time.Time) (map[string]struct{}, error) {
	var ids []string
	if err := tx.Model(&models.ProblemHistory{}).
		Where("user_id = ? AND last_attempted_at >= ?", userID, since).
		Pluck("problem_id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func preloadProblems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func loadContest(tx *gorm.DB, contestID string) (*models.Contest, error) {
	var contest models.Contest
	if err := tx.Preload("Problems", preloadProblems).First(&contest, "id = ?", contestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrContestNotFound
		}
		return nil, err
	}
	return &contest, nil
}

func loadActiveContest(tx *gorm.DB, contestID string) (*models.Contest, error) {
	contest, err := loadContest(tx, contestID)
	if err != nil {
		return nil, err
	}
	if contest.Status != models.ContestStatusActive {
		return nil, apperrors.ErrContestNotActive.WithMessage(fmt.Sprintf("Contest %s is not active", contestID))
	}
	return contest, nil
}

func findProblem(contest *models.Contest, problemID string) (*models.ContestProblem, error) {
	for i := range contest.Problems {
		if contest.Problems[i].ProblemID == problemID {
			return &contest.Problems[i], nil
		}
	}
	return nil, apperrors.ErrProblemNotInContest.WithMessage(
		fmt.Sprintf("Problem %s not found in contest %s", problemID, contest.ID))
}

// Get returns a contest with its problems in selection order.
func (s *ContestService) Get(ctx context.Context, contestID string) (*models.Contest, error) {
	return loadContest(s.db.WithContext(ctx), contestID)
}

// OwnerOf returns the id of the user a contest belongs to.
func (s *ContestService) OwnerOf(ctx context.Context, contestID string) (string, error) {
	var contest models.Contest
	if err := s.db.WithContext(ctx).Select("id", "user_id").First(&contest, "id = ?", contestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrContestNotFound
		}
		return "", err
	}
	return contest.UserID, nil
}

// GetActive returns the user's active contest.
func (s *ContestService) GetActive(ctx context.Context, userID string) (*models.Contest, error) {
	var contest models.Contest
	err := s.db.WithContext(ctx).
		Preload("Problems", preloadProblems).
		Where("user_id = ? AND status = ?", userID, models.ContestStatusActive).
		First(&contest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrContestNotFound.WithMessage("No active contest")
	}
	if err != nil {
		return nil, err
	}
	return &contest, nil
}

// History lists the user's contests, newest first.
func (s *ContestService) History(ctx context.Context, userID string, limit, offset int) ([]models.Contest, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)
	offset = max(offset, 0)

	var contests []models.Contest
	err := s.db.WithContext(ctx).
		Preload("Problems", preloadProblems).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&contests).Error
	return contests, err
}

// StartProblem records the first time the user opened a problem. Calling it
// again leaves the timestamp alone.
func (s *ContestService) StartProblem(ctx context.Context, contestID, problemID string) (*models.ContestProblem, error) {
	var cp *models.ContestProblem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contest, err := loadActiveContest(tx, contestID)
		if err != nil {
			return err
		}
		cp, err = findProblem(contest, problemID)
		if err != nil {
			return err
		}
		if cp.StartedAt != nil {
			return nil
		}
		now := s.now()
		cp.StartedAt = &now
		return tx.Model(cp).Update("started_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// withActiveContest runs fn on an ACTIVE contest inside a transaction. If the
// contest's time limit has run out, the contest is ended instead, that end is
// committed, and ErrTimeLimitExceeded is returned.
func (s *ContestService) withActiveContest(ctx context.Context, contestID string, fn func(tx *gorm.DB, contest *models.Contest, now time.Time) error) error {
	now := s.now()

	var expired *models.Contest
	var result *ContestResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contest, err := loadActiveContest(tx, contestID)
		if err != nil {
			return err
		}
		if contest.Expired(now) {
			result, err = s.finish(tx, contest, now)
			if err != nil {
				return err
			}
			expired = contest
			return nil
		}
		return fn(tx, contest, now)
	})
	if err != nil {
		return err
	}

	if expired != nil {
		s.afterFinish(ctx, expired, "EXPIRED", result)
		return apperrors.ErrTimeLimitExceeded
	}
	return nil
}

// Submit records a solve or a failure for one problem. Resubmitting is
// allowed and overwrites the status; every call counts as an attempt.
func (s *ContestService) Submit(ctx context.Context, contestID string, in SubmitInput) (*models.ContestProblem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var cp *models.ContestProblem
	err := s.withActiveContest(ctx, contestID, func(tx *gorm.DB, contest *models.Contest, now time.Time) error {
		var err error
		cp, err = findProblem(contest, in.ProblemID)
		if err != nil {
			return err
		}

		cp.SubmittedAt = &now
		cp.Attempts++
		if in.TimeTakenSeconds != nil {
			taken := *in.TimeTakenSeconds
			cp.TimeTakenSeconds = &taken
		} else if cp.StartedAt != nil {
			taken := int(now.Sub(*cp.StartedAt).Seconds())
			cp.TimeTakenSeconds = &taken
		}
		if in.Solved {
			cp.Status = models.ProblemStatusSolved
		} else {
			cp.Status = models.ProblemStatusFailed
		}
		if in.UserApproach != "" {
			cp.UserApproach = utils.CleanUserText(in.UserApproach, maxApproachLength)
		}

		if err := tx.Omit(clause.Associations).Save(cp).Error; err != nil {
			return err
		}
		return recordAttempt(tx, contest.UserID, cp.ProblemID, in.Solved, cp.TimeTakenSeconds, now)
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// SubmitAll applies each submission in order. A failing item is reported in
// its outcome and does not stop the rest.
func (s *ContestService) SubmitAll(ctx context.Context, contestID string, items []SubmitInput) []SubmitOutcome {
	outcomes := make([]SubmitOutcome, 0, len(items))
	for _, item := range items {
		cp, err := s.Submit(ctx, contestID, item)
		if err != nil {
			outcomes = append(outcomes, SubmitOutcome{
				ContestID: contestID,
				ProblemID: item.ProblemID,
				Status:    "error",
				Message:   submitErrorMessage(err),
			})
			continue
		}
		outcomes = append(outcomes, SubmitOutcome{
			ContestID:        contestID,
			ProblemID:        item.ProblemID,
			Status:           string(cp.Status),
			TimeTakenSeconds: cp.TimeTakenSeconds,
			Message:          "Problem submitted successfully",
		})
	}
	return outcomes
}

func submitErrorMessage(err error) string {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.Message
	}
	logger.Error().Err(err).Msg("Batch submission failed")
	return "Internal server error"
}

// recordAttempt upserts the user's history row for problemID.
func recordAttempt(tx *gorm.DB, userID, problemID string, solved bool, timeTaken *int, now time.Time) error {
	var h models.ProblemHistory
	err := tx.Where("user_id = ? AND problem_id = ?", userID, problemID).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h = models.ProblemHistory{
			ID:              utils.GenerateID(),
			UserID:          userID,
			ProblemID:       problemID,
			TimesAttempted:  1,
			LastAttemptedAt: now,
		}
		if solved {
			h.TimesSolved = 1
			h.BestTimeSeconds = copyInt(timeTaken)
		}
		return tx.Create(&h).Error
	}
	if err != nil {
		return err
	}

	h.TimesAttempted++
	h.LastAttemptedAt = now
	if solved {
		h.TimesSolved++
		if timeTaken != nil && *timeTaken > 0 && (h.BestTimeSeconds == nil || *timeTaken < *h.BestTimeSeconds) {
			h.BestTimeSeconds = copyInt(timeTaken)
		}
	}
	return tx.Save(&h).Error
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Skip marks a problem as skipped. It does not count as an attempt and is
// scored as a failure when the contest ends.
func (s *ContestService) Skip(ctx context.Context, contestID, problemID string) (*models.ContestProblem, error) {
	var cp *models.ContestProblem
	err := s.withActiveContest(ctx, contestID, func(tx *gorm.DB, contest *models.Contest, now time.Time) error {
		var err error
		cp, err = findProblem(contest, problemID)
		if err != nil {
			return err
		}
		cp.Status = models.ProblemStatusSkipped
		cp.SubmittedAt = &now
		return tx.Omit(clause.Associations).Save(cp).Error
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// End completes an active contest and rates it.
func (s *ContestService) End(ctx context.Context, contestID string) (*ContestResult, error) {
	now := s.now()

	var contest *models.Contest
	var result *ContestResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		contest, err = loadActiveContest(tx, contestID)
		if err != nil {
			return err
		}
		result, err = s.finish(tx, contest, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterFinish(ctx, contest, string(models.ContestStatusCompleted), result)
	return result, nil
}

// finish is the single ACTIVE -> COMPLETED transition, shared by End and the
// time-limit guard. Unresolved problems become failures and only solved
// problems contribute to the total time.
func (s *ContestService) finish(tx *gorm.DB, contest *models.Contest, now time.Time) (*ContestResult, error) {
	total := 0
	for i := range contest.Problems {
		p := &contest.Problems[i]
		if p.Status == models.ProblemStatusPending || p.Status == models.ProblemStatusSkipped {
			p.Status = models.ProblemStatusFailed
			if err := tx.Model(p).Update("status", p.Status).Error; err != nil {
				return nil, err
			}
		}
		if p.Status == models.ProblemStatusSolved && p.TimeTakenSeconds != nil {
			total += *p.TimeTakenSeconds
		}
	}

	contest.Status = models.ContestStatusCompleted
	contest.EndedAt = &now
	contest.TotalTimeSeconds = total

	result, err := s.rating.CalculateContestResult(tx, contest, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Omit(clause.Associations).Save(contest).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ContestService) afterFinish(ctx context.Context, contest *models.Contest, label string, result *ContestResult) {
	contestsFinished.WithLabelValues(label).Inc()
	s.invalidateUserCaches(ctx, contest.UserID)

	event := logger.Info().
		Str("contestId", contest.ID).
		Str("userId", contest.UserID).
		Str("reason", label)
	if result != nil {
		event = event.Int("solved", result.ProblemsSolved).Int("ratingChange", result.RatingChange)
	}
	event.Msg("Contest ended")
}

func (s *ContestService) invalidateUserCaches(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, statisticsCacheKey(userID)); err != nil {
		logger.Warn().Err(err).Str("userId", userID).Msg("Failed to invalidate statistics cache")
	}
	if err := s.cache.Invalidate(ctx, leaderboardCachePattern); err != nil {
		logger.Warn().Err(err).Msg("Failed to invalidate leaderboard cache")
	}
}

// Abandon gives up an active contest. Ratings, topic ratings and weak topics
// are left untouched.
func (s *ContestService) Abandon(ctx context.Context, contestID string) (*models.Contest, error) {
	now := s.now()

	var contest *models.Contest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		contest, err = loadActiveContest(tx, contestID)
		if err != nil {
			return err
		}
		contest.Status = models.ContestStatusAbandoned
		contest.EndedAt = &now
		return tx.Omit(clause.Associations).Save(contest).Error
	})
	if err != nil {
		return nil, err
	}

	s.afterFinish(ctx, contest, string(models.ContestStatusAbandoned), nil)
	return contest, nil
}
