package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/models"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/utils"
	"gorm.io/gorm"
)

// Rating rules.
const (
	// RatingIncrease is applied to the overall rating on a clean sweep only.
	RatingIncrease = 10

	WeakTopicSolvesToAdvance     = 2
	WeakTopicLevelStep           = 5
	WeakTopicMinLevel            = 10
	WeakTopicFailureRegressAfter = 3
	// WeakTopicSeedOffset places a new weak topic this far below the rating.
	WeakTopicSeedOffset = 20

	TopicSolveGain = 5
	TopicFailLoss  = 3
	TopicRatingMin = 100
	TopicRatingMax = 3000

	// weakDetectionMinAttempts and weakDetectionFailureRate gate weak-topic
	// detection on the regular path.
	weakDetectionMinAttempts = 2
	weakDetectionFailureRate = 0.5
)

// ProblemOutcome is the per-problem part of a contest result.
type ProblemOutcome struct {
	ProblemID          string `json:"problem_id"`
	ProblemName        string `json:"problem_name"`
	Topic              string `json:"topic"`
	Difficulty         int    `json:"difficulty"`
	Solved             bool   `json:"solved"`
	TimeTakenSeconds   *int   `json:"time_taken_seconds"`
	IsWeakTopicProblem bool   `json:"is_weak_topic_problem"`
}

// ContestResult summarises a finished contest.
type ContestResult struct {
	ContestID          string               `json:"contest_id"`
	Status             models.ContestStatus `json:"status"`
	ProblemsSolved     int                  `json:"problems_solved"`
	TotalProblems      int                  `json:"total_problems"`
	TotalTimeSeconds   int                  `json:"total_time_seconds"`
	OldRating          int                  `json:"old_rating"`
	NewRating          int                  `json:"new_rating"`
	RatingChange       int                  `json:"rating_change"`
	TopicsPassed       []string             `json:"topics_passed"`
	TopicsFailed       []string             `json:"topics_failed"`
	NewWeakTopics      []string             `json:"new_weak_topics"`
	WeakTopicsImproved []string             `json:"weak_topics_improved"`
	WeakTopicsResolved []string             `json:"weak_topics_resolved"`
	TopicChanges       map[string]int       `json:"topic_changes"`
	Problems           []ProblemOutcome     `json:"problems"`
}

func newContestResult(contest *models.Contest) *ContestResult {
	return &ContestResult{
		ContestID:          contest.ID,
		Status:             contest.Status,
		TopicsPassed:       []string{},
		TopicsFailed:       []string{},
		NewWeakTopics:      []string{},
		WeakTopicsImproved: []string{},
		WeakTopicsResolved: []string{},
		TopicChanges:       map[string]int{},
		Problems:           []ProblemOutcome{},
	}
}

// RatingService turns contest outcomes into rating, topic-rating and
// weak-topic updates.
type RatingService struct {
	db *gorm.DB
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db}
}

// CalculateContestResult applies the rating rules for a completed contest
// inside tx and returns the summary. contest.Problems must be loaded and
// already carry their final statuses. The contest's RatingChange and
// ProblemsSolved fields are set but not saved; the caller owns the contest row.
func (s *RatingService) CalculateContestResult(tx *gorm.DB, contest *models.Contest, now time.Time) (*ContestResult, error) {
	var user models.User
	if err := tx.First(&user, "id = ?", contest.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("rate contest %s: user %s missing: %w", contest.ID, contest.UserID, err)
		}
		return nil, err
	}

	result := newContestResult(contest)
	// Every rule below sees the rating the user had before this contest.
	rating := user.Rating
	result.OldRating = rating

	solved := 0
	for i := range contest.Problems {
		p := &contest.Problems[i]
		ok := p.Status == models.ProblemStatusSolved
		if ok {
			solved++
			result.TopicsPassed = append(result.TopicsPassed, p.Topic)
		} else {
			result.TopicsFailed = append(result.TopicsFailed, p.Topic)
		}

		var err error
		if p.IsWeakTopicProblem {
			err = s.applyWeakTopicOutcome(tx, user.ID, p.Topic, ok, now, result)
		} else {
			err = s.applyTopicOutcome(tx, user.ID, rating, p.Topic, ok, now, result)
		}
		if err != nil {
			return nil, err
		}

		result.Problems = append(result.Problems, ProblemOutcome{
			ProblemID:          p.ProblemID,
			ProblemName:        p.ProblemName,
			Topic:              p.Topic,
			Difficulty:         p.Difficulty,
			Solved:             ok,
			TimeTakenSeconds:   p.TimeTakenSeconds,
			IsWeakTopicProblem: p.IsWeakTopicProblem,
		})
	}

	total := len(contest.Problems)
	if total > 0 && solved == total {
		result.RatingChange = RatingIncrease
	}
	result.NewRating = rating + result.RatingChange
	result.ProblemsSolved = solved
	result.TotalProblems = total
	result.TotalTimeSeconds = contest.TotalTimeSeconds

	user.Rating = result.NewRating
	user.TotalContests++
	user.TotalProblemsSolved += solved
	user.TotalProblemsAttempted += total
	if err := tx.Save(&user).Error; err != nil {
		return nil, err
	}

	contest.RatingChange = result.RatingChange
	contest.ProblemsSolved = solved

	logger.Info().
		Str("contestId", contest.ID).
		Str("userId", user.ID).
		Int("oldRating", result.OldRating).
		Int("newRating", result.NewRating).
		Int("solved", solved).
		Int("total", total).
		Msg("Contest rated")

	return result, nil
}

// applyWeakTopicOutcome moves the remediation ladder for topic. A weak-topic
// problem whose weak topic was resolved in the meantime changes nothing.
func (s *RatingService) applyWeakTopicOutcome(tx *gorm.DB, userID, topic string, solved bool, now time.Time, result *ContestResult) error {
	weak, err := activeWeakTopic(tx, userID, topic)
	if err != nil || weak == nil {
		return err
	}

	weak.TotalAttempts++
	weak.LastAttemptAt = &now

	if solved {
		weak.ConsecutiveSolves++
		if weak.ConsecutiveSolves >= WeakTopicSolvesToAdvance {
			weak.CurrentLevel += WeakTopicLevelStep
			weak.ConsecutiveSolves = 0
			result.WeakTopicsImproved = append(result.WeakTopicsImproved, topic)

			if weak.CurrentLevel >= weak.TargetLevel {
				weak.IsActive = false
				weak.ResolvedAt = &now
				result.WeakTopicsResolved = append(result.WeakTopicsResolved, topic)
				weakTopicsResolved.Inc()
				logger.Info().Str("userId", userID).Str("topic", topic).Int("level", weak.CurrentLevel).Msg("Weak topic resolved")
			}
		}
	} else {
		weak.TotalFailures++
		weak.ConsecutiveSolves = 0
		if weak.TotalFailures > WeakTopicFailureRegressAfter && weak.CurrentLevel > WeakTopicMinLevel {
			weak.CurrentLevel = max(WeakTopicMinLevel, weak.CurrentLevel-WeakTopicLevelStep)
		}
	}

	return tx.Save(weak).Error
}

// applyTopicOutcome updates the broad topic rating and opens a weak topic
// when the topic's all-time failure rate reaches one half.
func (s *RatingService) applyTopicOutcome(tx *gorm.DB, userID string, rating int, topic string, solved bool, now time.Time, result *ContestResult) error {
	var tr models.TopicRating
	isNew := false
	err := tx.Where("user_id = ? AND topic = ?", userID, topic).First(&tr).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		isNew = true
		tr = models.TopicRating{
			ID:     utils.GenerateID(),
			UserID: userID,
			Topic:  topic,
			Rating: rating,
		}
	case err != nil:
		return err
	}

	tr.Attempted++
	if solved {
		tr.Solved++
		tr.Rating = clampTopicRating(tr.Rating + TopicSolveGain)
		result.TopicChanges[topic] += TopicSolveGain
	} else {
		if tr.Attempted >= weakDetectionMinAttempts && 1-tr.SolveRate() >= weakDetectionFailureRate {
			if err := s.openWeakTopic(tx, userID, rating, topic, now, result); err != nil {
				return err
			}
		}
		tr.Rating = clampTopicRating(tr.Rating - TopicFailLoss)
		result.TopicChanges[topic] -= TopicFailLoss
	}

	if isNew {
		return tx.Create(&tr).Error
	}
	return tx.Save(&tr).Error
}

func clampTopicRating(r int) int {
	return min(max(r, TopicRatingMin), TopicRatingMax)
}

func (s *RatingService) openWeakTopic(tx *gorm.DB, userID string, rating int, topic string, now time.Time, result *ContestResult) error {
	existing, err := activeWeakTopic(tx, userID, topic)
	if err != nil || existing != nil {
		return err
	}

	weak := models.WeakTopic{
		ID:           utils.GenerateID(),
		UserID:       userID,
		Topic:        topic,
		CurrentLevel: max(WeakTopicMinLevel, rating-WeakTopicSeedOffset),
		TargetLevel:  rating + RatingIncrease,
		IsActive:     true,
		DetectedAt:   now,
	}
	if err := tx.Create(&weak).Error; err != nil {
		return err
	}

	result.NewWeakTopics = append(result.NewWeakTopics, topic)
	weakTopicsDetected.Inc()
	logger.Info().Str("userId", userID).Str("topic", topic).Int("level", weak.CurrentLevel).Int("target", weak.TargetLevel).Msg("Weak topic detected")
	return nil
}

// ActiveWeakTopics lists the user's active weak topics, oldest first, which
// is the order the selector reserves slots in.
func (s *RatingService) ActiveWeakTopics(ctx context.Context, userID string) ([]models.WeakTopic, error) {
	var weak []models.WeakTopic
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("detected_at ASC").
		Find(&weak).Error
	return weak, err
}

// activeWeakTopic returns the active weak topic for (user, topic), or nil.
func activeWeakTopic(tx *gorm.DB, userID, topic string) (*models.WeakTopic, error) {
	var weak models.WeakTopic
	err := tx.Where("user_id = ? AND topic = ? AND is_active = ?", userID, topic, true).First(&weak).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &weak, nil
}
