package models

import (
	"time"
)

// TopicRating tracks a user's broad competence in one topic. It is created
// lazily on the first non-weak attempt, seeded from the overall rating.
type TopicRating struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	UserID    string    `gorm:"type:text;not null;uniqueIndex:idx_topic_ratings_user_topic" json:"user_id"`
	Topic     string    `gorm:"size:100;not null;uniqueIndex:idx_topic_ratings_user_topic" json:"topic"`
	Rating    int       `gorm:"not null" json:"rating"`
	Solved    int       `gorm:"column:problems_solved;default:0" json:"problems_solved"`
	Attempted int       `gorm:"column:problems_attempted;default:0" json:"problems_attempted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TopicRating) TableName() string {
	return "topic_ratings"
}

// SolveRate is solved/attempted, zero before the first attempt.
func (t *TopicRating) SolveRate() float64 {
	if t.Attempted == 0 {
		return 0
	}
	return float64(t.Solved) / float64(t.Attempted)
}

// WeakTopic is a topic under remediation. Problems for it are drawn at
// CurrentLevel until the level reaches TargetLevel. At most one active row
// exists per (user, topic); the partial unique index lives in migrations.
type WeakTopic struct {
	ID                string     `gorm:"primaryKey;type:text" json:"id"`
	UserID            string     `gorm:"type:text;not null;index" json:"user_id"`
	Topic             string     `gorm:"size:100;not null" json:"topic"`
	CurrentLevel      int        `gorm:"not null" json:"current_level"`
	TargetLevel       int        `gorm:"not null" json:"target_level"`
	ConsecutiveSolves int        `gorm:"default:0" json:"consecutive_solves"`
	TotalAttempts     int        `gorm:"default:0" json:"total_attempts"`
	TotalFailures     int        `gorm:"default:0" json:"total_failures"`
	IsActive          bool       `gorm:"not null;index" json:"is_active"`
	DetectedAt        time.Time  `json:"detected_at"`
	LastAttemptAt     *time.Time `json:"last_attempt_at"`
	ResolvedAt        *time.Time `json:"resolved_at"`
}

func (WeakTopic) TableName() string {
	return "weak_topics"
}
