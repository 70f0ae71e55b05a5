package models

import (
	"time"
)

type ContestStatus string

const (
	ContestStatusActive    ContestStatus = "ACTIVE"
	ContestStatusCompleted ContestStatus = "COMPLETED"
	ContestStatusAbandoned ContestStatus = "ABANDONED"
)

type ProblemStatus string

const (
	ProblemStatusPending ProblemStatus = "PENDING"
	ProblemStatusSolved  ProblemStatus = "SOLVED"
	ProblemStatusFailed  ProblemStatus = "FAILED"
	ProblemStatusSkipped ProblemStatus = "SKIPPED"
)

type Contest struct {
	ID     string        `gorm:"primaryKey;type:text" json:"id"`
	UserID string        `gorm:"type:text;not null;index" json:"user_id"`
	User   *User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Status ContestStatus `gorm:"type:text;default:'ACTIVE';not null;index" json:"status"`

	RatingAtStart    int `gorm:"not null" json:"rating_at_start"`
	RatingChange     int `gorm:"default:0" json:"rating_change"`
	NumProblems      int `gorm:"not null" json:"num_problems"`
	TargetDifficulty int `gorm:"not null" json:"target_difficulty"`
	TimeLimitMinutes int `gorm:"not null" json:"time_limit_minutes"`

	StartedAt time.Time  `gorm:"not null" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`

	ProblemsSolved   int `gorm:"default:0" json:"problems_solved"`
	TotalTimeSeconds int `gorm:"default:0" json:"total_time_seconds"`

	Problems []ContestProblem `gorm:"foreignKey:ContestID;constraint:OnDelete:CASCADE" json:"problems,omitempty"`
}

func (Contest) TableName() string {
	return "contests"
}

// Deadline is the moment the time limit runs out.
func (c *Contest) Deadline() time.Time {
	return c.StartedAt.Add(time.Duration(c.TimeLimitMinutes) * time.Minute)
}

// Expired reports whether the time limit has elapsed at now.
func (c *Contest) Expired(now time.Time) bool {
	return now.After(c.Deadline())
}

// ContestProblem snapshots a catalog problem at selection time so later
// catalog changes never rewrite contest history.
type ContestProblem struct {
	ID        string `gorm:"primaryKey;type:text" json:"id"`
	ContestID string `gorm:"type:text;not null;index;uniqueIndex:idx_contest_problems_contest_problem" json:"contest_id"`

	ProblemID     string `gorm:"size:100;not null;uniqueIndex:idx_contest_problems_contest_problem" json:"problem_id"`
	ProblemName   string `gorm:"size:255" json:"problem_name"`
	ProblemURL    string `gorm:"size:500" json:"problem_url"`
	ProblemSource string `gorm:"size:50" json:"problem_source"`
	Topic         string `gorm:"size:100;not null;index" json:"topic"`
	Difficulty    int    `gorm:"not null" json:"difficulty"`

	// TargetDifficulty is the level the slot was filled for: the contest
	// target, or the live weak-topic level for remediation slots.
	TargetDifficulty   int  `gorm:"not null" json:"target_difficulty"`
	IsWeakTopicProblem bool `gorm:"default:false" json:"is_weak_topic_problem"`
	Position           int  `gorm:"not null" json:"position"`

	Status           ProblemStatus `gorm:"type:text;default:'PENDING';not null" json:"status"`
	StartedAt        *time.Time    `json:"started_at"`
	SubmittedAt      *time.Time    `json:"submitted_at"`
	TimeTakenSeconds *int          `json:"time_taken_seconds"`
	Attempts         int           `gorm:"default:0" json:"attempts"`
	UserApproach     string        `gorm:"type:text" json:"user_approach,omitempty"`

	Reflection *ProblemReflection `gorm:"foreignKey:ContestProblemID;constraint:OnDelete:CASCADE" json:"reflection,omitempty"`
}

func (ContestProblem) TableName() string {
	return "contest_problems"
}

// ProblemHistory records a user's attempts at one catalog problem across all
// contests. Selection uses LastAttemptedAt to avoid recent repeats.
type ProblemHistory struct {
	ID              string    `gorm:"primaryKey;type:text" json:"id"`
	UserID          string    `gorm:"type:text;not null;uniqueIndex:idx_problem_history_user_problem" json:"user_id"`
	ProblemID       string    `gorm:"size:100;not null;uniqueIndex:idx_problem_history_user_problem" json:"problem_id"`
	TimesAttempted  int       `gorm:"default:0" json:"times_attempted"`
	TimesSolved     int       `gorm:"default:0" json:"times_solved"`
	BestTimeSeconds *int      `json:"best_time_seconds"`
	LastAttemptedAt time.Time `gorm:"index" json:"last_attempted_at"`
}

func (ProblemHistory) TableName() string {
	return "problem_history"
}
