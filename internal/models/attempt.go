package models

import (
	"time"
)

// ExamAttempt is one sitting of an exam by a student. At most one incomplete
// attempt may exist per (exam, student); the database enforces it with the
// partial unique index ux_exam_attempts_open.
type ExamAttempt struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	ExamID    uint `json:"exam_id" gorm:"not null;index"`
	StudentID uint `json:"student_id" gorm:"not null;index"`

	IsCompleted bool `json:"is_completed" gorm:"not null;default:false;index"`

	// Timing
	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt *time.Time `json:"submitted_at"`
	TimeSpent   int        `json:"time_spent"` // seconds

	// Audit
	IPAddress *string `json:"ip_address" gorm:"size:45"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam    *Exam    `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

type Answer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;uniqueIndex:ux_answers_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:ux_answers_attempt_question"`

	// Raw response
	SelectedOption *string `json:"selected_option" gorm:"size:500"`
	AnswerText     *string `json:"answer_text" gorm:"type:text"`

	// Grading
	IsCorrect bool    `json:"is_correct"`
	Score     float64 `json:"score"`

	CreatedAt time.Time `json:"created_at"`
}

func (Answer) TableName() string {
	return "answers"
}
