package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
	"github.com/SAP-F-2025/cbt-service/internal/services"
	"github.com/SAP-F-2025/cbt-service/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// stubParser maps bearer tokens to claims.
type stubParser map[string]*casdoorsdk.Claims

func (p stubParser) ParseJwtToken(token string) (*casdoorsdk.Claims, error) {
	claims, ok := p[token]
	if !ok {
		return nil, errors.New("token rejected")
	}
	return claims, nil
}

func claimsFor(id, userType string) *casdoorsdk.Claims {
	return &casdoorsdk.Claims{User: casdoorsdk.User{Id: id, Name: id, Type: userType}}
}

var testTokens = stubParser{
	"student-token": claimsFor("stu-1", "student"),
	"teacher-token": claimsFor("teacher-1", "teacher"),
	"admin-token":   {User: casdoorsdk.User{Id: "admin-1", IsAdmin: true}},
}

type stubUserRepo struct {
	users map[string]*models.User
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *stubUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *stubUserRepo) ExistsByID(_ context.Context, id string) (bool, error) {
	_, ok := r.users[id]
	return ok, nil
}

type stubAttemptService struct {
	start  func(req *models.StartAttemptRequest, userID, ip string) (*services.StartAttemptResponse, error)
	submit func(attemptID uint, userID string, req *models.SubmitAttemptRequest) (*services.SubmitAttemptResponse, error)
}

func (s *stubAttemptService) StartOrResumeAttempt(_ context.Context, req *models.StartAttemptRequest, userID, ip string) (*services.StartAttemptResponse, error) {
	return s.start(req, userID, ip)
}

func (s *stubAttemptService) SubmitAttempt(_ context.Context, attemptID uint, userID string, req *models.SubmitAttemptRequest) (*services.SubmitAttemptResponse, error) {
	return s.submit(attemptID, userID, req)
}

func (s *stubAttemptService) GetAttempt(context.Context, uint, *models.User) (*services.AttemptResponse, error) {
	return nil, services.ErrAttemptNotFound
}

func (s *stubAttemptService) ListStudentAttempts(context.Context, uint, string) ([]*models.ExamAttempt, error) {
	return []*models.ExamAttempt{}, nil
}

type stubResultService struct {
	export  func(examID uint) ([]byte, error)
	release func(examID uint) (int, error)
}

func (s *stubResultService) GetAttemptResult(context.Context, uint, *models.User) (*models.Result, error) {
	return nil, services.ErrResultNotReleased
}

func (s *stubResultService) ListExamResults(_ context.Context, _ uint, params *models.ListResultsParams, _ *models.User) (*models.PaginatedResponse, error) {
	return models.NewPaginatedResponse([]*models.Result{}, 0, 0, params.Page, params.Size), nil
}

func (s *stubResultService) ExportExamResults(_ context.Context, examID uint, _ *models.User) ([]byte, error) {
	return s.export(examID)
}

func (s *stubResultService) ReleaseExamResults(_ context.Context, examID uint, _ *models.User) (int, error) {
	return s.release(examID)
}

func (s *stubResultService) GetPosition(context.Context, *models.Result) (int, error) {
	return 0, nil
}

// stubServiceManager serves only the attempt and result services; the
// others are nil and must not be reached by a test.
type stubServiceManager struct {
	attempts  services.AttemptService
	results   services.ResultService
	healthErr error
}

func (m *stubServiceManager) Exam() services.ExamService       { return nil }
func (m *stubServiceManager) Attempt() services.AttemptService { return m.attempts }
func (m *stubServiceManager) Result() services.ResultService   { return m.results }
func (m *stubServiceManager) Student() services.StudentService { return nil }

func (m *stubServiceManager) Initialize(context.Context) error  { return nil }
func (m *stubServiceManager) HealthCheck(context.Context) error { return m.healthErr }
func (m *stubServiceManager) Shutdown(context.Context) error    { return nil }

func newTestRouter(t *testing.T, sm *stubServiceManager, rl *RateLimiter) *gin.Engine {
	t.Helper()
	logger := testLogger()
	userRepo := &stubUserRepo{users: map[string]*models.User{}}
	auth := NewCasdoorAuthMiddlewareWithParser(testTokens, userRepo, logger)

	router := gin.New()
	SetupMiddleware(router, logger, []string{"https://cbt.example.edu"})
	NewHandlerManager(sm, logger, auth, nil, rl, userRepo).SetupRoutes(router)
	return router
}

func doRequest(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
