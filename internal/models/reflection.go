package models

import (
	"time"
)

// ProblemReflection holds the editorial a user pasted for a contest problem
// and the generated post-contest reflection. One row per ContestProblem;
// regenerating overwrites it.
type ProblemReflection struct {
	ID               string `gorm:"primaryKey;type:text" json:"id"`
	ContestID        string `gorm:"type:text;not null;index" json:"contest_id"`
	ContestProblemID string `gorm:"type:text;not null;uniqueIndex" json:"contest_problem_id"`

	EditorialText string `gorm:"type:text" json:"editorial_text,omitempty"`
	EditorialURL  string `gorm:"size:500" json:"editorial_url,omitempty"`

	PivotSentence  string `gorm:"type:text" json:"pivot_sentence"`
	Tips           string `gorm:"type:text" json:"tips"`
	WhatToImprove  string `gorm:"type:text" json:"what_to_improve"`
	MasterApproach string `gorm:"type:text" json:"master_approach"`
	FullReflection string `gorm:"type:text" json:"full_reflection"`

	ModelUsed       string     `gorm:"size:100" json:"model_used"`
	GeneratedAt     *time.Time `json:"generated_at"`
	GenerationError string     `gorm:"type:text" json:"generation_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ProblemReflection) TableName() string {
	return "problem_reflections"
}

// Generated reports whether a reflection was produced without error.
func (r *ProblemReflection) Generated() bool {
	return r.PivotSentence != "" && r.GenerationError == ""
}
