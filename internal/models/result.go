package models

import (
	"time"
)

type ResultStatus string

const (
	ResultPending  ResultStatus = "PENDING"
	ResultReleased ResultStatus = "RELEASED"
)

type Result struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	AttemptID uint `json:"attempt_id" gorm:"not null;uniqueIndex"`
	ExamID    uint `json:"exam_id" gorm:"not null;index:idx_results_exam_status"`
	StudentID uint `json:"student_id" gorm:"not null;index"`

	// Scoring
	TotalScore        float64 `json:"total_score"`
	MaxScore          float64 `json:"max_score"`
	Percentage        float64 `json:"percentage" gorm:"index"`
	Grade             string  `json:"grade" gorm:"size:2"`
	QuestionsAnswered int     `json:"questions_answered"`
	CorrectAnswers    int     `json:"correct_answers"`

	// Visibility
	Status     ResultStatus `json:"status" gorm:"not null;size:10;default:PENDING;index:idx_results_exam_status"`
	ReleasedAt *time.Time   `json:"released_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`

	// Computed fields (not stored)
	Position *int `json:"position,omitempty" gorm:"-"`
}

func (Result) TableName() string {
	return "results"
}

func (r *Result) IsReleased() bool {
	return r.Status == ResultReleased
}
