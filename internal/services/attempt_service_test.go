package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/cbt-service/internal/events"
	"github.com/SAP-F-2025/cbt-service/internal/grading"
	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/validator"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

type fixture struct {
	repo      *memRepo
	store     *memStore
	publisher *events.MockEventPublisher
	clock     time.Time
	logger    *slog.Logger
	attempts  AttemptService
	results   ResultService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, store := newMemRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		repo:      repo,
		store:     store,
		publisher: events.NewMockEventPublisher(logger),
		clock:     baseTime,
		logger:    logger,
	}
	v := validator.New()
	f.attempts = NewAttemptService(repo, logger, v, f.publisher,
		WithClock(func() time.Time { return f.clock }),
		WithShuffler(grading.NewShuffler(rand.NewPCG(1, 2))),
	)
	f.results = NewResultService(repo, logger, v, f.publisher)
	return f
}

func (f *fixture) addExam(t *testing.T, mutate func(*models.Exam)) *models.Exam {
	t.Helper()
	exam := &models.Exam{
		Title:       "Biology Mid-Term",
		Subject:     "Biology",
		Duration:    60,
		StartDate:   baseTime.Add(-time.Hour),
		EndDate:     baseTime.Add(2 * time.Hour),
		MaxAttempts: 2,
		CreatedBy:   "teacher-1",
	}
	if mutate != nil {
		mutate(exam)
	}
	require.NoError(t, f.repo.Exam().Create(context.Background(), exam))
	return exam
}

func (f *fixture) addStudent(t *testing.T, userID string) *models.Student {
	t.Helper()
	st := &models.Student{UserID: userID, AdmissionNumber: "ADM-" + userID, FullName: "Student " + userID}
	require.NoError(t, f.repo.Student().Create(context.Background(), st))
	return st
}

func (f *fixture) addMC(t *testing.T, examID uint, order int, correct string, marks float64, options ...string) *models.Question {
	t.Helper()
	q := &models.Question{ExamID: examID, Type: models.MultipleChoice, Text: "Pick one", MaxMarks: marks, Order: order, CorrectAnswer: strPtr(correct)}
	require.NoError(t, q.SetOptions(options))
	require.NoError(t, f.repo.Question().Create(context.Background(), q))
	return q
}

func (f *fixture) addTheory(t *testing.T, examID uint, order int, expected string, marks float64) *models.Question {
	t.Helper()
	q := &models.Question{ExamID: examID, Type: models.Theory, Text: "Explain", MaxMarks: marks, Order: order, ExpectedAnswer: strPtr(expected)}
	require.NoError(t, f.repo.Question().Create(context.Background(), q))
	return q
}

func (f *fixture) start(examID uint, userID, password string) (*StartAttemptResponse, error) {
	return f.attempts.StartOrResumeAttempt(context.Background(), &models.StartAttemptRequest{ExamID: examID, Password: password}, userID, "10.0.0.1")
}

func (f *fixture) submit(attemptID uint, userID string, answers ...models.SubmittedAnswer) (*SubmitAttemptResponse, error) {
	return f.attempts.SubmitAttempt(context.Background(), attemptID, userID, &models.SubmitAttemptRequest{Answers: answers})
}

func TestStartOrResumeAttempt_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.Exam)
		examID   func(*models.Exam) uint
		userID   string
		password string
		clock    time.Time
		wantErr  error
		wantKind ErrorKind
	}{
		{
			name:     "exam not found",
			examID:   func(*models.Exam) uint { return 999 },
			userID:   "student-1",
			wantErr:  ErrExamNotFound,
			wantKind: KindNotFound,
		},
		{
			name:     "no student profile",
			userID:   "ghost",
			wantErr:  ErrStudentProfileNotFound,
			wantKind: KindNotFound,
		},
		{
			name:     "before start date",
			userID:   "student-1",
			clock:    baseTime.Add(-2 * time.Hour),
			wantErr:  ErrExamNotActive,
			wantKind: KindPreconditionFailed,
		},
		{
			name:     "after end date",
			userID:   "student-1",
			clock:    baseTime.Add(3 * time.Hour),
			wantErr:  ErrExamNotActive,
			wantKind: KindPreconditionFailed,
		},
		{
			name:     "wrong password",
			mutate:   func(e *models.Exam) { e.Password = strPtr("Secret") },
			userID:   "student-1",
			password: "secret",
			wantErr:  ErrInvalidExamPassword,
			wantKind: KindUnauthorized,
		},
		{
			name:     "window checked before password",
			mutate:   func(e *models.Exam) { e.Password = strPtr("Secret") },
			userID:   "student-1",
			clock:    baseTime.Add(3 * time.Hour),
			wantErr:  ErrExamNotActive,
			wantKind: KindPreconditionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			exam := f.addExam(t, tt.mutate)
			f.addStudent(t, "student-1")
			if !tt.clock.IsZero() {
				f.clock = tt.clock
			}

			examID := exam.ID
			if tt.examID != nil {
				examID = tt.examID(exam)
			}

			resp, err := f.start(examID, tt.userID, tt.password)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Empty(t, f.store.attempts, "no attempt row may be created")
			assert.Empty(t, f.publisher.GetPublishedEvents())
		})
	}
}

func TestStartOrResumeAttempt_WindowIsInclusive(t *testing.T) {
	for _, at := range []time.Time{baseTime.Add(-time.Hour), baseTime.Add(2 * time.Hour)} {
		f := newFixture(t)
		exam := f.addExam(t, nil)
		f.addStudent(t, "student-1")
		f.clock = at

		_, err := f.start(exam.ID, "student-1", "")
		assert.NoError(t, err, "start at %s", at)
	}
}

func TestStartOrResumeAttempt_CreatesThenResumes(t *testing.T) {
	f := newFixture(t)
	exam := f.addExam(t, func(e *models.Exam) { e.Password = strPtr("Secret") })
	student := f.addStudent(t, "student-1")
	f.addMC(t, exam.ID, 1, "B", 5, "A", "B", "C", "D")

	first, err := f.start(exam.ID, "student-1", "Secret")
	require.NoError(t, err)
	assert.False(t, first.Resumed)
	assert.Equal(t, baseTime, first.StartedAt)

	f.clock = baseTime.Add(10 * time.Minute)
	second, err := f.start(exam.ID, "student-1", "Secret")
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.AttemptID, second.AttemptID)
	assert.Equal(t, baseTime, second.StartedAt, "resuming must not reset the start time")

	require.Len(t, f.store.attempts, 1)
	stored := f.store.attempts[first.AttemptID]
	assert.Equal(t, student.ID, stored.StudentID)
	assert.False(t, stored.IsCompleted)
	require.NotNil(t, stored.IPAddress)
	assert.Equal(t, "10.0.0.1", *stored.IPAddress)

	started := f.publisher.EventsOfType(events.AttemptStarted)
	require.Len(t, started, 2)
	assert.False(t, started[0].Data.(events.AttemptStartedEvent).Resumed)
	assert.True(t, started[1].Data.(events.AttemptStartedEvent).Resumed)
}

func TestStartOrResumeAttempt_ConcurrentStartsShareOneAttempt(t *testing.T) {
	f := newFixture(t)
	exam := f.addExam(t, nil)
	f.addStudent(t, "student-1")

	// Hold both callers until each has passed the open-attempt lookup.
	var arrived sync.WaitGroup
	arrived.Add(2)
	f.store.beforeCreateAttempt = func() {
		arrived.Done()
		arrived.Wait()
	}

	var wg sync.WaitGroup
	responses := make([]*StartAttemptResponse, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i], errs[i] = f.start(exam.ID, "student-1", "")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, responses[0].AttemptID, responses[1].AttemptID)
	assert.Len(t, f.store.attempts, 1)
	assert.NotEqual(t, responses[0].Resumed, responses[1].Resumed, "exactly one caller creates the attempt")
}

func TestStartOrResumeAttempt_ServesSanitizedQuestions(t *testing.T) {
	f := newFixture(t)
	exam := f.addExam(t, nil)
	f.addStudent(t, "student-1")
	theory := f.addTheory(t, exam.ID, 2, "the cell is the basic unit of life", 10)
	mc := f.addMC(t, exam.ID, 1, "B", 5, "A", "B", "C", "D")

	resp, err := f.start(exam.ID, "student-1", "")
	require.NoError(t, err)

	require.Len(t, resp.Exam.Questions, 2)
	assert.Equal(t, mc.ID, resp.Exam.Questions[0].ID, "without randomization questions follow their order")
	assert.Equal(t, theory.ID, resp.Exam.Questions[1].ID)
	assert.Equal(t, []string{"A", "B", "C", "D"}, resp.Exam.Questions[0].Options)
	assert.Nil(t, resp.Exam.Questions[1].Options)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct_answer")
	assert.NotContains(t, string(raw), "expected_answer")
	assert.NotContains(t, string(raw), "basic unit of life")
}

func TestStartOrResumeAttempt_Randomization(t *testing.T) {
	f := newFixture(t)
	exam := f.addExam(t, func(e *models.Exam) {
		e.RandomizeQuestions = true
		e.RandomizeOptions = true
	})
	f.addStudent(t, "student-1")

	ids := make(map[uint]bool)
	for i := 0; i < 8; i++ {
		q := f.addMC(t, exam.ID, i+1, "A", 1, "A", "B", "C", "D", "E")
		ids[q.ID] = true
	}

	orders := make(map[string]bool)
	for i := 0; i < 5; i++ {
		resp, err := f.start(exam.ID, "student-1", "")
		require.NoError(t, err)

		served := make(map[uint]bool)
		key := ""
		for _, q := range resp.Exam.Questions {
			served[q.ID] = true
			assert.ElementsMatch(t, []string{"A", "B", "C", "D", "E"}, q.Options)
			key += string(rune('a' + q.ID))
		}
		assert.Equal(t, ids, served, "every question is served exactly once")
		orders[key] = true
	}
	assert.Greater(t, len(orders), 1, "each serve draws a fresh order")
	assert.Len(t, f.store.attempts, 1)
}

func TestStartOrResumeAttempt_MaxAttempts(t *testing.T) {
	f := newFixture(t)
	exam := f.addExam(t, func(e *models.Exam) { e.MaxAttempts = 2 })
	f.addStudent(t, "student-1")
	mc := f.addMC(t, exam.ID, 1, "B", 5, "A", "B")

	for i := 0; i < 2; i++ {
		resp, err := f.start(exam.ID, "student-1", "")
		require.NoError(t, err)
		assert.False(t, resp.Resumed)
		_, err = f.submit(resp.AttemptID, "student-1", models.SubmittedAnswer{QuestionID: mc.ID, SelectedOption: strPtr("B")})
		require.NoError(t, err)
	}

	_, err := f.start(exam.ID, "student-1", "")
	assert.ErrorIs(t, err, ErrMaxAttemptsReached)
	assert.Equal(t, KindPreconditionFailed, KindOf(err))
	assert.Len(t, f.store.attempts, 2)
	assert.Len(t, f.store.results, 2)
}

func TestSubmitAttempt_ScoresAndReleases(t *testing.T) {
	f := newFixture(t)
	exam := f.addExam(t, func(e *models.Exam) { e.ShowResultsImmediately = true })
	f.addStudent(t, "student-1")
	mc := f.addMC(t, exam.ID, 1, "B", 5, "A", "B", "C", "D")
	theory := f.addTheory(t, exam.ID, 2, "the cell is the basic unit of life", 10)

	started, err := f.start(exam.ID, "student-1", "")
	require.NoError(t, err)

	f.clock = baseTime.Add(25*time.Minute + 900*time.Millisecond)
	resp, err := f.submit(started.AttemptID, "student-1",
		models.SubmittedAnswer{QuestionID: mc.ID, SelectedOption: strPtr("B")},
		models.SubmittedAnswer{QuestionID: theory.ID, AnswerText: strPtr("cell is basic unit of life")},
		models.SubmittedAnswer{QuestionID: 4242, SelectedOption: strPtr("A")},
	)
	require.NoError(t, err)

	assert.Equal(t, 15.0, resp.TotalScore)
	assert.Equal(t, 15.0, resp.MaxScore)
	assert.Equal(t, 100.0, resp.Percentage)
	assert.Equal(t, "A", resp.Grade)
	assert.True(t, resp.ShowResults)
	assert.Equal(t, 2, resp.QuestionsAnswered)
	assert.Equal(t, 2, resp.CorrectAnswers)
	require.NotNil(t, resp.Position)
	assert.Equal(t, 1, *resp.Position)

	attempt := f.store.attempts[started.AttemptID]
	assert.True(t, attempt.IsCompleted)
	assert.Equal(t, 25*60, attempt.TimeSpent)
	require.NotNil(t, attempt.SubmittedAt)

	assert.Len(t, f.store.answers, 2, "answers to unknown questions are not stored")
	require.Len(t, f.store.results, 1)
	for _, r := range f.store.results {
		assert.Equal(t, models.ResultReleased, r.Status)
		assert.NotNil(t, r.ReleasedAt)
	}

	assert.Len(t, f.publisher.EventsOfType(events.AttemptSubmitted), 1)
	assert.Len(t, f.publisher.EventsOfType(events.ResultReleased), 1)
}

func TestSubmitAttempt_PendingResult(t *testing.T) {
	f := newFixture(t)
	exam := f.addExam(t, nil)
	f.addStudent(t, "student-1")
	mc := f.addMC(t, exam.ID, 1, "B", 5, "A", "B", "C")
	f.addTheory(t, exam.ID, 2, "osmosis moves water across a membrane", 10)

	started, err := f.start(exam.ID, "student-1", "")
	require.NoError(t, err)

	resp, err := f.submit(started.AttemptID, "student-1",
		models.SubmittedAnswer{QuestionID: mc.ID, SelectedOption: strPtr("C")},
	)
	require.NoError(t, err)

	assert.Equal(t, 0.0, resp.TotalScore)
	assert.Equal(t, 5.0, resp.MaxScore, "only answered questions count toward the maximum")
	assert.Equal(t, "F", resp.Grade)
	assert.False(t, resp.ShowResults)
	assert.Nil(t, resp.Position)

	for _, r := range f.store.results {
		assert.Equal(t, models.ResultPending, r.Status)
		assert.Nil(t, r.ReleasedAt)
	}
	assert.Empty(t, f.publisher.EventsOfType(events.ResultReleased))
}

func TestSubmitAttempt_AlreadySubmittedPerformsNoWrites(t *testing.T) {
	f := newFixture(t)
	exam := f.addExam(t, nil)
	f.addStudent(t, "student-1")
	mc := f.addMC(t, exam.ID, 1, "B", 5, "A", "B")

	started, err := f.start(exam.ID, "student-1", "")
	require.NoError(t, err)
	_, err = f.submit(started.AttemptID, "student-1", models.SubmittedAnswer{QuestionID: mc.ID, SelectedOption: strPtr("B")})
	require.NoError(t, err)

	writes := f.store.writes
	_, err = f.submit(started.AttemptID, "student-1", models.SubmittedAnswer{QuestionID: mc.ID, SelectedOption: strPtr("A")})
	assert.ErrorIs(t, err, ErrAttemptAlreadySubmitted)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, writes, f.store.writes)
	assert.Len(t, f.store.results, 1)
	assert.Len(t, f.store.answers, 1)
}

func TestSubmitAttempt_LostCompletionRaceIsConflict(t *testing.T) {
	f := newFixture(t)
	exam := f.addExam(t, nil)
	f.addStudent(t, "student-1")
	mc := f.addMC(t, exam.ID, 1, "B", 5, "A", "B")

	started, err := f.start(exam.ID, "student-1", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.submit(started.AttemptID, "student-1", models.SubmittedAnswer{QuestionID: mc.ID, SelectedOption: strPtr("B")})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAttemptAlreadySubmitted):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, conflicts)
	assert.Len(t, f.store.results, 1)
	assert.Len(t, f.store.answers, 1)
}

func TestSubmitAttempt_NotOwner(t *testing.T) {
	f := newFixture(t)
	exam := f.addExam(t, nil)
	f.addStudent(t, "student-1")
	f.addStudent(t, "student-2")

	started, err := f.start(exam.ID, "student-1", "")
	require.NoError(t, err)

	_, err = f.submit(started.AttemptID, "student-2")
	var permErr *PermissionError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, KindUnauthorized, KindOf(err))
	assert.False(t, f.store.attempts[started.AttemptID].IsCompleted)

	_, err = f.submit(9999, "student-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestSubmitAttempt_RollsBackOnFailure(t *testing.T) {
	for _, op := range []string{"answer.create_batch", "result.create"} {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t)
			exam := f.addExam(t, nil)
			f.addStudent(t, "student-1")
			mc := f.addMC(t, exam.ID, 1, "B", 5, "A", "B")

			started, err := f.start(exam.ID, "student-1", "")
			require.NoError(t, err)

			f.store.failOn[op] = true
			_, err = f.submit(started.AttemptID, "student-1", models.SubmittedAnswer{QuestionID: mc.ID, SelectedOption: strPtr("B")})
			require.ErrorIs(t, err, errInjected)
			assert.Equal(t, KindInternal, KindOf(err))

			assert.False(t, f.store.attempts[started.AttemptID].IsCompleted)
			assert.Empty(t, f.store.answers)
			assert.Empty(t, f.store.results)
			assert.Empty(t, f.publisher.EventsOfType(events.AttemptSubmitted))

			// The attempt is still open and can be submitted once the fault clears.
			delete(f.store.failOn, op)
			_, err = f.submit(started.AttemptID, "student-1", models.SubmittedAnswer{QuestionID: mc.ID, SelectedOption: strPtr("B")})
			require.NoError(t, err)
		})
	}
}

func TestSubmitAttempt_EventFailureDoesNotFailSubmission(t *testing.T) {
	f := newFixture(t)
	exam := f.addExam(t, nil)
	f.addStudent(t, "student-1")

	started, err := f.start(exam.ID, "student-1", "")
	require.NoError(t, err)

	f.publisher.FailWith(errors.New("broker down"))
	_, err = f.submit(started.AttemptID, "student-1")
	require.NoError(t, err)
	assert.True(t, f.store.attempts[started.AttemptID].IsCompleted)
}

func TestGetAttempt_Visibility(t *testing.T) {
	f := newFixture(t)
	exam := f.addExam(t, nil)
	f.addStudent(t, "student-1")
	f.addStudent(t, "student-2")
	mc := f.addMC(t, exam.ID, 1, "B", 5, "A", "B")

	started, err := f.start(exam.ID, "student-1", "")
	require.NoError(t, err)
	_, err = f.submit(started.AttemptID, "student-1", models.SubmittedAnswer{QuestionID: mc.ID, SelectedOption: strPtr("B")})
	require.NoError(t, err)

	ctx := context.Background()
	owner := &models.User{ID: "student-1", Role: models.RoleStudent}
	other := &models.User{ID: "student-2", Role: models.RoleStudent}
	teacher := &models.User{ID: "teacher-1", Role: models.RoleTeacher}

	resp, err := f.attempts.GetAttempt(ctx, started.AttemptID, owner)
	require.NoError(t, err)
	assert.Nil(t, resp.Result, "pending results stay hidden from the student")
	assert.Empty(t, resp.Answers)

	resp, err = f.attempts.GetAttempt(ctx, started.AttemptID, teacher)
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.Len(t, resp.Answers, 1)

	_, err = f.attempts.GetAttempt(ctx, started.AttemptID, other)
	assert.Equal(t, KindUnauthorized, KindOf(err))

	attempts, err := f.attempts.ListStudentAttempts(ctx, exam.ID, "student-1")
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}
