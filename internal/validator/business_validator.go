package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/cbt-service/internal/models"
)

const (
	minExamDuration = 1
	maxExamDuration = 600
	maxExamAttempts = 10
	minTolerance    = 70
	maxTolerance    = 100
	minMCOptions    = 2
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

func NewBusinessValidator() *BusinessValidator {
	bv := &BusinessValidator{validate: validator.New()}
	bv.registerBusinessRules()
	return bv
}

// Validate validates struct tags for any request
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	if err := bv.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateExamUpdate checks the window after applying the update to existing.
func (bv *BusinessValidator) ValidateExamUpdate(req *models.ExamUpdateRequest, existing *models.Exam) ValidationErrors {
	var errors ValidationErrors
	errors = append(errors, bv.Validate(req)...)

	start, end := existing.StartDate, existing.EndDate
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	if !end.After(start) {
		errors = append(errors, ValidationError{
			Field:   "end_date",
			Message: "must be after start_date",
			Value:   end.Format(time.RFC3339),
			Rule:    "window",
		})
	}

	return errors
}

// ValidateQuestion checks the type-specific fields of a question.
func (bv *BusinessValidator) ValidateQuestion(q *models.Question) ValidationErrors {
	var errors ValidationErrors

	if q.MaxMarks <= 0 {
		errors = append(errors, ValidationError{Field: "max_marks", Message: "must be greater than 0", Value: q.MaxMarks, Rule: "gt"})
	}

	switch q.Type {
	case models.MultipleChoice:
		opts, err := q.OptionList()
		if err != nil {
			errors = append(errors, ValidationError{Field: "options", Message: "must be a list of strings", Rule: "format"})
			break
		}
		if len(opts) < minMCOptions {
			errors = append(errors, ValidationError{
				Field:   "options",
				Message: fmt.Sprintf("must have at least %d options", minMCOptions),
				Value:   len(opts),
				Rule:    "min",
			})
		}
		if hasDuplicate(opts) {
			errors = append(errors, ValidationError{Field: "options", Message: "must be unique", Rule: "unique"})
		}
		if q.CorrectAnswer == nil || *q.CorrectAnswer == "" {
			errors = append(errors, ValidationError{Field: "correct_answer", Message: "is required", Rule: "required"})
		} else if !contains(opts, *q.CorrectAnswer) {
			errors = append(errors, ValidationError{
				Field:   "correct_answer",
				Message: "must match one of the options",
				Value:   *q.CorrectAnswer,
				Rule:    "oneof",
			})
		}

	case models.Theory:
		if q.ExpectedAnswer == nil || strings.TrimSpace(*q.ExpectedAnswer) == "" {
			errors = append(errors, ValidationError{Field: "expected_answer", Message: "is required", Rule: "required"})
		}
		if q.AccuracyTolerance != nil && (*q.AccuracyTolerance < minTolerance || *q.AccuracyTolerance > maxTolerance) {
			errors = append(errors, ValidationError{
				Field:   "accuracy_tolerance",
				Message: fmt.Sprintf("must be between %d and %d", minTolerance, maxTolerance),
				Value:   *q.AccuracyTolerance,
				Rule:    "accuracy_tolerance",
			})
		}

	default:
		errors = append(errors, ValidationError{Field: "type", Message: "must be MULTIPLE_CHOICE or THEORY", Value: q.Type, Rule: "question_type"})
	}

	return errors
}

// ValidateStudent validates an imported or created student profile.
func (bv *BusinessValidator) ValidateStudent(req *models.StudentCreateRequest) ValidationErrors {
	errors := bv.Validate(req)
	if strings.ContainsAny(req.AdmissionNumber, " \t\n") {
		errors = append(errors, ValidationError{
			Field:   "admission_number",
			Message: "must not contain whitespace",
			Value:   req.AdmissionNumber,
			Rule:    "format",
		})
	}
	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	bv.validate.RegisterValidation("exam_duration", func(fl validator.FieldLevel) bool {
		d := fl.Field().Int()
		return d >= minExamDuration && d <= maxExamDuration
	})

	bv.validate.RegisterValidation("max_attempts", func(fl validator.FieldLevel) bool {
		n := fl.Field().Int()
		return n >= 1 && n <= maxExamAttempts
	})

	bv.validate.RegisterValidation("exam_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	bv.validate.RegisterValidation("accuracy_tolerance", func(fl validator.FieldLevel) bool {
		t := fl.Field().Int()
		return t >= minTolerance && t <= maxTolerance
	})

	bv.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		switch models.QuestionType(fl.Field().String()) {
		case models.MultipleChoice, models.Theory:
			return true
		}
		return false
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func hasDuplicate(list []string) bool {
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
