package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	Theory         QuestionType = "THEORY"
)

// DefaultAccuracyTolerance applies to theory questions stored without a tolerance.
const DefaultAccuracyTolerance = 70

type Question struct {
	ID       uint         `json:"id" gorm:"primaryKey"`
	ExamID   uint         `json:"exam_id" gorm:"not null;index"`
	Type     QuestionType `json:"type" gorm:"not null;size:20"`
	Text     string       `json:"text" gorm:"type:text;not null"`
	ImageURL *string      `json:"image,omitempty" gorm:"size:500"`
	MaxMarks float64      `json:"max_marks" gorm:"not null"`
	Order    int          `json:"order" gorm:"column:order_index;not null;default:0;index"`

	// MULTIPLE_CHOICE
	Options       datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"` // ["option", ...]
	CorrectAnswer *string        `json:"correct_answer,omitempty" gorm:"size:500"`

	// THEORY
	ExpectedAnswer    *string `json:"expected_answer,omitempty" gorm:"type:text"`
	AccuracyTolerance *int    `json:"accuracy_tolerance,omitempty"` // percent, 70-100

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Question) TableName() string {
	return "questions"
}

// OptionList decodes the stored option list. A question without options yields nil.
func (q *Question) OptionList() ([]string, error) {
	if len(q.Options) == 0 {
		return nil, nil
	}
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

func (q *Question) SetOptions(opts []string) error {
	raw, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	q.Options = datatypes.JSON(raw)
	return nil
}

// Tolerance returns the accuracy tolerance as a ratio in (0,1].
func (q *Question) Tolerance() float64 {
	if q.AccuracyTolerance == nil || *q.AccuracyTolerance <= 0 {
		return float64(DefaultAccuracyTolerance) / 100
	}
	return float64(*q.AccuracyTolerance) / 100
}
