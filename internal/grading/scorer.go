package grading

import (
	"strings"

	"github.com/SAP-F-2025/cbt-service/internal/models"
)

// AnswerInput is one submitted response.
type AnswerInput struct {
	QuestionID     uint
	SelectedOption *string
	AnswerText     *string
}

type AnswerScore struct {
	QuestionID     uint
	SelectedOption *string
	AnswerText     *string
	Score          float64
	MaxMarks       float64
	IsCorrect      bool
	Similarity     *float64 // theory only
}

type Summary struct {
	TotalScore        float64
	MaxScore          float64
	Percentage        float64 // unrounded
	Grade             string
	QuestionsAnswered int
	CorrectAnswers    int
	Answers           []AnswerScore
}

type Scorer struct {
	similarity SimilarityScorer
}

// NewScorer builds a scorer around a similarity strategy. nil selects Jaccard.
func NewScorer(similarity SimilarityScorer) *Scorer {
	if similarity == nil {
		similarity = JaccardSimilarity{}
	}
	return &Scorer{similarity: similarity}
}

// ScoreQuestion grades a single response against its question.
func (s *Scorer) ScoreQuestion(q *models.Question, selectedOption, answerText *string) AnswerScore {
	result := AnswerScore{
		QuestionID:     q.ID,
		SelectedOption: selectedOption,
		AnswerText:     answerText,
		MaxMarks:       q.MaxMarks,
	}

	switch q.Type {
	case models.MultipleChoice:
		if q.CorrectAnswer != nil && selectedOption != nil && *q.CorrectAnswer == *selectedOption {
			result.IsCorrect = true
			result.Score = q.MaxMarks
		}

	case models.Theory:
		if !present(answerText) || !present(q.ExpectedAnswer) {
			return result
		}
		tolerance := q.Tolerance()
		sim := s.similarity.Similarity(*answerText, *q.ExpectedAnswer, tolerance)
		result.Similarity = &sim
		if sim >= tolerance {
			result.IsCorrect = true
			result.Score = q.MaxMarks
		} else {
			result.Score = q.MaxMarks * (sim / tolerance)
		}
	}

	return result
}

// ScoreSubmission grades a batch of answers. Answers for questions outside
// the set are skipped; a repeated question id only counts the first answer.
func (s *Scorer) ScoreSubmission(questions []models.Question, answers []AnswerInput) Summary {
	byID := make(map[uint]*models.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	var summary Summary
	seen := make(map[uint]struct{}, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			continue
		}
		if _, dup := seen[a.QuestionID]; dup {
			continue
		}
		seen[a.QuestionID] = struct{}{}

		scored := s.ScoreQuestion(q, a.SelectedOption, a.AnswerText)
		summary.Answers = append(summary.Answers, scored)
		summary.MaxScore += q.MaxMarks
		summary.TotalScore += scored.Score
		summary.QuestionsAnswered++
		if scored.IsCorrect {
			summary.CorrectAnswers++
		}
	}

	summary.Percentage = Percentage(summary.TotalScore, summary.MaxScore)
	summary.Grade = GradeFor(summary.Percentage)
	return summary
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
