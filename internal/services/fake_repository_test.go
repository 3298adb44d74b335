package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory stand-in for the postgres repositories. It
// enforces the open-attempt uniqueness rule and rolls back failed
// transactions.
type memStore struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	nextID uint

	exams     map[uint]models.Exam
	questions map[uint]models.Question
	attempts  map[uint]models.ExamAttempt
	answers   map[uint]models.Answer
	results   map[uint]models.Result
	students  map[uint]models.Student
	users     map[string]models.User

	// failOn makes the named operation return errInjected.
	failOn map[string]bool
	writes int

	// beforeCreateAttempt runs outside the lock ahead of an attempt insert.
	beforeCreateAttempt func()
}

func newMemStore() *memStore {
	return &memStore{
		exams:     make(map[uint]models.Exam),
		questions: make(map[uint]models.Question),
		attempts:  make(map[uint]models.ExamAttempt),
		answers:   make(map[uint]models.Answer),
		results:   make(map[uint]models.Result),
		students:  make(map[uint]models.Student),
		users:     make(map[string]models.User),
		failOn:    make(map[string]bool),
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *memStore) fail(op string) error {
	if s.failOn[op] {
		return errInjected
	}
	return nil
}

type memSnapshot struct {
	nextID    uint
	exams     map[uint]models.Exam
	questions map[uint]models.Question
	attempts  map[uint]models.ExamAttempt
	answers   map[uint]models.Answer
	results   map[uint]models.Result
	students  map[uint]models.Student
	writes    int
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		nextID:    s.nextID,
		exams:     copyMap(s.exams),
		questions: copyMap(s.questions),
		attempts:  copyMap(s.attempts),
		answers:   copyMap(s.answers),
		results:   copyMap(s.results),
		students:  copyMap(s.students),
		writes:    s.writes,
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.exams = snap.exams
	s.questions = snap.questions
	s.attempts = snap.attempts
	s.answers = snap.answers
	s.results = snap.results
	s.students = snap.students
	s.writes = snap.writes
}

// ===== Repository =====

type memRepo struct{ s *memStore }

func newMemRepo() (*memRepo, *memStore) {
	s := newMemStore()
	return &memRepo{s: s}, s
}

func (r *memRepo) Exam() repositories.ExamRepository         { return memExams{r.s} }
func (r *memRepo) Question() repositories.QuestionRepository { return memQuestions{r.s} }
func (r *memRepo) Attempt() repositories.AttemptRepository   { return memAttempts{r.s} }
func (r *memRepo) Answer() repositories.AnswerRepository     { return memAnswers{r.s} }
func (r *memRepo) Result() repositories.ResultRepository     { return memResults{r.s} }
func (r *memRepo) Student() repositories.StudentRepository   { return memStudents{r.s} }
func (r *memRepo) User() repositories.UserRepository         { return memUsers{r.s} }
func (r *memRepo) Ping(ctx context.Context) error            { return nil }
func (r *memRepo) Close() error                              { return nil }

func (r *memRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()

	snap := r.s.snapshot()
	if err := fn(r); err != nil {
		r.s.restore(snap)
		return err
	}
	return nil
}

// ===== Exams =====

type memExams struct{ s *memStore }

func (m memExams) Create(ctx context.Context, exam *models.Exam) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	exam.ID = m.s.id()
	m.s.exams[exam.ID] = *exam
	return nil
}

func (m memExams) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.exams[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	e.HasPassword = e.RequiresPassword()
	return &e, nil
}

func (m memExams) Update(ctx context.Context, exam *models.Exam) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.exams[exam.ID]; !ok {
		return repositories.ErrNotFound
	}
	m.s.exams[exam.ID] = *exam
	return nil
}

func (m memExams) Delete(ctx context.Context, id uint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.exams[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.s.exams, id)
	return nil
}

func (m memExams) List(ctx context.Context, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Exam
	for _, e := range m.s.exams {
		if filters.Subject != "" && e.Subject != filters.Subject {
			continue
		}
		if filters.CreatedBy != nil && e.CreatedBy != *filters.CreatedBy {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	if filters.Offset < len(out) {
		out = out[filters.Offset:]
	} else {
		out = nil
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

// ===== Questions =====

type memQuestions struct{ s *memStore }

func (m memQuestions) Create(ctx context.Context, q *models.Question) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	q.ID = m.s.id()
	m.s.questions[q.ID] = *q
	return nil
}

func (m memQuestions) CreateBatch(ctx context.Context, qs []*models.Question) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.fail("question.create_batch"); err != nil {
		return err
	}
	for _, q := range qs {
		q.ID = m.s.id()
		m.s.questions[q.ID] = *q
	}
	return nil
}

func (m memQuestions) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	q, ok := m.s.questions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &q, nil
}

func (m memQuestions) Update(ctx context.Context, q *models.Question) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.questions[q.ID] = *q
	return nil
}

func (m memQuestions) Delete(ctx context.Context, id uint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.questions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.s.questions, id)
	return nil
}

func (m memQuestions) GetByExam(ctx context.Context, examID uint) ([]models.Question, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.Question
	for _, q := range m.s.questions {
		if q.ExamID == examID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m memQuestions) NextOrder(ctx context.Context, examID uint) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	next := 1
	for _, q := range m.s.questions {
		if q.ExamID == examID && q.Order >= next {
			next = q.Order + 1
		}
	}
	return next, nil
}

// ===== Attempts =====

type memAttempts struct{ s *memStore }

func (m memAttempts) Create(ctx context.Context, a *models.ExamAttempt) error {
	if hook := m.s.beforeCreateAttempt; hook != nil {
		hook()
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.attempts {
		if existing.ExamID == a.ExamID && existing.StudentID == a.StudentID && !existing.IsCompleted {
			return repositories.ErrDuplicate
		}
	}
	a.ID = m.s.id()
	m.s.attempts[a.ID] = *a
	m.s.writes++
	return nil
}

func (m memAttempts) GetByID(ctx context.Context, id uint) (*models.ExamAttempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	a, ok := m.s.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (m memAttempts) GetOpenAttempt(ctx context.Context, examID, studentID uint) (*models.ExamAttempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, a := range m.s.attempts {
		if a.ExamID == examID && a.StudentID == studentID && !a.IsCompleted {
			return &a, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m memAttempts) CountCompleted(ctx context.Context, examID, studentID uint) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, a := range m.s.attempts {
		if a.ExamID == examID && a.StudentID == studentID && a.IsCompleted {
			n++
		}
	}
	return n, nil
}

func (m memAttempts) CountByExam(ctx context.Context, examID uint) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, a := range m.s.attempts {
		if a.ExamID == examID {
			n++
		}
	}
	return n, nil
}

func (m memAttempts) ListByStudent(ctx context.Context, examID, studentID uint) ([]*models.ExamAttempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.ExamAttempt
	for _, a := range m.s.attempts {
		if a.ExamID == examID && a.StudentID == studentID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m memAttempts) MarkCompleted(ctx context.Context, id uint, submittedAt time.Time, timeSpent int) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.fail("attempt.mark_completed"); err != nil {
		return false, err
	}
	a, ok := m.s.attempts[id]
	if !ok || a.IsCompleted {
		return false, nil
	}
	a.IsCompleted = true
	a.SubmittedAt = &submittedAt
	a.TimeSpent = timeSpent
	m.s.attempts[id] = a
	m.s.writes++
	return true, nil
}

// ===== Answers =====

type memAnswers struct{ s *memStore }

func (m memAnswers) CreateBatch(ctx context.Context, answers []*models.Answer) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.fail("answer.create_batch"); err != nil {
		return err
	}
	for _, a := range answers {
		a.ID = m.s.id()
		m.s.answers[a.ID] = *a
		m.s.writes++
	}
	return nil
}

func (m memAnswers) GetByAttempt(ctx context.Context, attemptID uint) ([]*models.Answer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Answer
	for _, a := range m.s.answers {
		if a.AttemptID == attemptID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== Results =====

type memResults struct{ s *memStore }

func (m memResults) withStudent(r models.Result) *models.Result {
	if st, ok := m.s.students[r.StudentID]; ok {
		r.Student = &st
	}
	return &r
}

func (m memResults) Create(ctx context.Context, r *models.Result) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.fail("result.create"); err != nil {
		return err
	}
	for _, existing := range m.s.results {
		if existing.AttemptID == r.AttemptID {
			return repositories.ErrDuplicate
		}
	}
	r.ID = m.s.id()
	m.s.results[r.ID] = *r
	m.s.writes++
	return nil
}

func (m memResults) GetByID(ctx context.Context, id uint) (*models.Result, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.results[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return m.withStudent(r), nil
}

func (m memResults) GetByAttempt(ctx context.Context, attemptID uint) (*models.Result, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.results {
		if r.AttemptID == attemptID {
			return m.withStudent(r), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m memResults) ListByExam(ctx context.Context, examID uint, filters repositories.ResultFilters) ([]*models.Result, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Result
	for _, r := range m.s.results {
		if r.ExamID != examID {
			continue
		}
		if filters.Status != nil && r.Status != *filters.Status {
			continue
		}
		out = append(out, m.withStudent(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].ID < out[j].ID
	})
	total := int64(len(out))
	if filters.Offset < len(out) {
		out = out[filters.Offset:]
	} else {
		out = nil
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (m memResults) CountReleasedAbove(ctx context.Context, examID uint, percentage float64, excludeID uint) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, r := range m.s.results {
		if r.ExamID == examID && r.ID != excludeID && r.Status == models.ResultReleased && r.Percentage > percentage {
			n++
		}
	}
	return n, nil
}

func (m memResults) ListByStudent(ctx context.Context, studentID uint) ([]*models.Result, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Result
	for _, r := range m.s.results {
		if r.StudentID == studentID {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m memResults) ReleasePending(ctx context.Context, examID uint, releasedAt time.Time) ([]*models.Result, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Result
	for id, r := range m.s.results {
		if r.ExamID == examID && r.Status == models.ResultPending {
			r.Status = models.ResultReleased
			r.ReleasedAt = &releasedAt
			m.s.results[id] = r
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== Students and users =====

type memStudents struct{ s *memStore }

func (m memStudents) Create(ctx context.Context, st *models.Student) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.students {
		if existing.UserID == st.UserID || existing.AdmissionNumber == st.AdmissionNumber {
			return repositories.ErrDuplicate
		}
	}
	st.ID = m.s.id()
	m.s.students[st.ID] = *st
	return nil
}

func (m memStudents) GetByID(ctx context.Context, id uint) (*models.Student, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	st, ok := m.s.students[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &st, nil
}

func (m memStudents) GetByUserID(ctx context.Context, userID string) (*models.Student, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, st := range m.s.students {
		if st.UserID == userID {
			return &st, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m memStudents) GetByIDs(ctx context.Context, ids []uint) ([]*models.Student, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Student
	for _, id := range ids {
		if st, ok := m.s.students[id]; ok {
			out = append(out, &st)
		}
	}
	return out, nil
}

func (m memStudents) ExistsByAdmissionNumber(ctx context.Context, admissionNumber string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, st := range m.s.students {
		if st.AdmissionNumber == admissionNumber {
			return true, nil
		}
	}
	return false, nil
}

type memUsers struct{ s *memStore }

func (m memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (m memUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, err := m.GetByID(ctx, id); err == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m memUsers) ExistsByID(ctx context.Context, id string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.users[id]
	return ok, nil
}
