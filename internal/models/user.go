package models

import (
	"time"
)

// InitialRating is the overall rating every new user starts at.
const InitialRating = 20

type User struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Username string  `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email    *string `gorm:"uniqueIndex" json:"email"`

	// Overall skill rating on the 1-100 difficulty scale. Only the rating
	// engine changes it, at contest completion.
	Rating int `gorm:"default:20;not null" json:"rating"`

	TotalContests          int `gorm:"default:0" json:"total_contests"`
	TotalProblemsSolved    int `gorm:"default:0" json:"total_problems_solved"`
	TotalProblemsAttempted int `gorm:"default:0" json:"total_problems_attempted"`

	TopicRatings []TopicRating `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"topic_ratings,omitempty"`
	WeakTopics   []WeakTopic   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"weak_topics,omitempty"`
}

func (User) TableName() string {
	return "users"
}
