package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/auth"
	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/monitoring"
	"github.com/SAP-F-2025/quiz-service/internal/repositories/memory"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type apiFixture struct {
	router *gin.Engine
	sm     services.ServiceManager
	clock  *testClock

	admin      services.Actor
	adminToken string
	user       services.Actor
	userToken  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logger := utils.NewSlogLogger(slogger)
	repo := memory.NewRepository()
	revocations := auth.NewMemoryRevocationStore()
	tokens := auth.NewJWTManager("test-secret", time.Hour, "quiz-test", revocations)
	clock := &testClock{t: time.Now().UTC().Truncate(time.Second)}
	metrics := monitoring.NewMetrics()

	sm := services.NewServiceManager(services.Dependencies{
		Repo:        repo,
		Cache:       cache.NewCacheManager(nil),
		Publisher:   events.NewMockEventPublisher(slogger),
		Metrics:     metrics,
		Tokens:      tokens,
		Revocations: revocations,
		Clock:       clock,
		Logger:      slogger,
		Validator:   validator.New(),
	}, services.ServiceManagerConfig{DefaultPassingScore: 60})
	if err := sm.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	router := gin.New()
	SetupMiddleware(router, logger, MiddlewareConfig{Metrics: metrics})
	NewHandlerManager(sm, tokens, metrics, RouterConfig{RateLimitRPS: 100, RateLimitBurst: 100}, logger).SetupRoutes(router)

	f := &apiFixture{router: router, sm: sm, clock: clock}

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range []*models.User{
		{Email: "admin@example.com", PasswordHash: hash, FirstName: "Ada", LastName: "Admin", Role: models.RoleAdmin},
		{Email: "user@example.com", PasswordHash: hash, FirstName: "Uma", LastName: "User", Role: models.RoleUser},
	} {
		if err := repo.User().Create(context.Background(), u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		token, _, err := tokens.Issue(u)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		actor := services.Actor{UserID: u.ID, Role: u.Role}
		if u.Role == models.RoleAdmin {
			f.admin, f.adminToken = actor, token
		} else {
			f.user, f.userToken = actor, token
		}
	}
	return f
}

// createTest seeds a test with one single-answer question through the catalog service
func (f *apiFixture) createTest(t *testing.T, timeLimit, maxAttempts int) (*models.Test, *models.Question) {
	t.Helper()
	ctx := context.Background()
	now := f.clock.Now()
	test, err := f.sm.Tests().CreateTest(ctx, &services.CreateTestRequest{
		Title:       "HTTP basics",
		TimeLimit:   timeLimit,
		MaxAttempts: maxAttempts,
		StartTime:   now.Add(-time.Hour),
		EndTime:     now.Add(24 * time.Hour),
	}, f.admin)
	if err != nil {
		t.Fatalf("CreateTest() error = %v", err)
	}
	q, err := f.sm.Tests().AddQuestion(ctx, test.ID, &services.CreateQuestionRequest{
		QuestionText: "Which status means Gone?",
		AnswerType:   string(models.SingleChoice),
		MaxPoints:    5,
		Options: []services.CreateOptionRequest{
			{OptionText: "410", Score: 5},
			{OptionText: "404", Score: 0},
		},
	}, f.admin)
	if err != nil {
		t.Fatalf("AddQuestion() error = %v", err)
	}
	return test, q
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (%s)", err, w.Body.String())
		}
	}
	return w, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	test, q := f.createTest(t, 600, 2)

	w, env := f.do(t, http.MethodPost, "/api/v1/attempts/start", f.userToken, gin.H{"testId": test.ID})
	if w.Code != http.StatusCreated || !env.Success {
		t.Fatalf("start: status = %d, body = %s", w.Code, w.Body.String())
	}
	var started services.StartAttemptResponse
	decodeData(t, env, &started)
	if started.AttemptNumber != 1 || started.TimeLimit != 600 {
		t.Errorf("start = %+v, want attempt 1 with 600s", started)
	}

	base := fmt.Sprintf("/api/v1/attempts/%d", started.AttemptID)
	w, _ = f.do(t, http.MethodPost, base+"/answers", f.userToken, gin.H{"questionId": q.ID, "answerId": q.Options[0].ID})
	if w.Code != http.StatusOK {
		t.Fatalf("submit: status = %d, body = %s", w.Code, w.Body.String())
	}

	w, env = f.do(t, http.MethodGet, base, f.userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("progress: status = %d", w.Code)
	}
	var progress services.AttemptProgress
	decodeData(t, env, &progress)
	if progress.IsFinished || len(progress.AnsweredQuestions) != 1 || progress.TimeRemaining != 600 {
		t.Errorf("progress = %+v", progress)
	}

	w, env = f.do(t, http.MethodPost, base+"/finish", f.userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("finish: status = %d, body = %s", w.Code, w.Body.String())
	}
	var result services.AttemptResult
	decodeData(t, env, &result)
	if result.Score != 5 || result.MaxScore != 5 || !result.Passed {
		t.Errorf("result = %+v, want 5/5 passed", result)
	}

	// finish again returns the stored result
	w, env = f.do(t, http.MethodPost, base+"/finish", f.userToken, nil)
	var again services.AttemptResult
	decodeData(t, env, &again)
	if w.Code != http.StatusOK || !again.EndTime.Equal(result.EndTime) {
		t.Errorf("second finish = %d %+v, want same result", w.Code, again)
	}

	w, _ = f.do(t, http.MethodPost, base+"/answers", f.userToken, gin.H{"questionId": q.ID, "answerId": q.Options[1].ID})
	if w.Code != http.StatusConflict {
		t.Errorf("submit after finish status = %d, want 409", w.Code)
	}

	w, env = f.do(t, http.MethodGet, base+"/details", f.userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("details: status = %d", w.Code)
	}
	var details services.AttemptDetails
	decodeData(t, env, &details)
	if len(details.Questions) != 1 || !details.Questions[0].IsCorrect {
		t.Errorf("details questions = %+v", details.Questions)
	}
}

func TestErrorMapping(t *testing.T) {
	f := newAPIFixture(t)
	test, q := f.createTest(t, 60, 1)

	// consume the only allowed attempt
	_, env := f.do(t, http.MethodPost, "/api/v1/attempts/start", f.userToken, gin.H{"testId": test.ID})
	var started services.StartAttemptResponse
	decodeData(t, env, &started)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing token",
			method:     http.MethodGet,
			path:       "/api/v1/users/me",
			wantStatus: http.StatusUnauthorized,
			wantCode:   string(services.KindUnauthorized),
		},
		{
			name:       "garbage token",
			method:     http.MethodGet,
			path:       "/api/v1/users/me",
			token:      "not-a-jwt",
			wantStatus: http.StatusUnauthorized,
			wantCode:   string(services.KindUnauthorized),
		},
		{
			name:       "non admin creates test",
			method:     http.MethodPost,
			path:       "/api/v1/tests",
			token:      f.userToken,
			body:       gin.H{"title": "x"},
			wantStatus: http.StatusForbidden,
			wantCode:   string(services.KindForbidden),
		},
		{
			name:       "malformed json",
			method:     http.MethodPost,
			path:       "/api/v1/attempts/start",
			token:      f.userToken,
			body:       "{",
			wantStatus: http.StatusBadRequest,
			wantCode:   string(services.KindValidation),
		},
		{
			name:       "invalid id parameter",
			method:     http.MethodGet,
			path:       "/api/v1/attempts/abc",
			token:      f.userToken,
			wantStatus: http.StatusBadRequest,
			wantCode:   string(services.KindValidation),
		},
		{
			name:       "unknown test",
			method:     http.MethodGet,
			path:       "/api/v1/tests/9999",
			wantStatus: http.StatusNotFound,
			wantCode:   string(services.KindNotFound),
		},
		{
			name:       "second start while open",
			method:     http.MethodPost,
			path:       "/api/v1/attempts/start",
			token:      f.userToken,
			body:       gin.H{"testId": test.ID},
			wantStatus: http.StatusConflict,
			wantCode:   string(services.KindAttemptNotAllowed),
		},
		{
			name:       "details while in progress",
			method:     http.MethodGet,
			path:       fmt.Sprintf("/api/v1/attempts/%d/details", started.AttemptID),
			token:      f.userToken,
			wantStatus: http.StatusConflict,
			wantCode:   string(services.KindAttemptInProgress),
		},
		{
			name:       "question outside the test",
			method:     http.MethodPost,
			path:       fmt.Sprintf("/api/v1/attempts/%d/answers", started.AttemptID),
			token:      f.userToken,
			body:       gin.H{"questionId": q.ID + 100, "answerId": 1},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   string(services.KindInvalidQuestion),
		},
		{
			name:       "other user's attempt",
			method:     http.MethodGet,
			path:       fmt.Sprintf("/api/v1/attempts/%d", started.AttemptID),
			token:      f.adminToken,
			wantStatus: http.StatusOK,
		},
		{
			name:       "register with invalid email",
			method:     http.MethodPost,
			path:       "/api/v1/users/register",
			body:       gin.H{"email": "nope", "password": "password123", "firstName": "A", "lastName": "B"},
			wantStatus: http.StatusBadRequest,
			wantCode:   string(services.KindValidation),
		},
		{
			name:       "register taken email",
			method:     http.MethodPost,
			path:       "/api/v1/users/register",
			body:       gin.H{"email": "user@example.com", "password": "password123", "firstName": "A", "lastName": "B"},
			wantStatus: http.StatusConflict,
			wantCode:   string(services.KindConflict),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := f.do(t, tt.method, tt.path, tt.token, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode == "" {
				return
			}
			if env.Success {
				t.Error("success = true on an error response")
			}
			if env.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", env.Code, tt.wantCode)
			}
		})
	}
}

func TestStartRefusedCarriesRule(t *testing.T) {
	f := newAPIFixture(t)
	test, _ := f.createTest(t, 60, 1)

	_, env := f.do(t, http.MethodPost, "/api/v1/attempts/start", f.userToken, gin.H{"testId": test.ID})
	var started services.StartAttemptResponse
	decodeData(t, env, &started)
	f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/attempts/%d/finish", started.AttemptID), f.userToken, nil)

	w, env := f.do(t, http.MethodPost, "/api/v1/attempts/start", f.userToken, gin.H{"testId": test.ID})
	if w.Code != http.StatusConflict || env.Code != string(services.KindAttemptNotAllowed) {
		t.Fatalf("start = %d %q, want 409 ATTEMPT_NOT_ALLOWED", w.Code, env.Code)
	}
	var details struct {
		Rule string `json:"rule"`
	}
	if err := json.Unmarshal(env.Details, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details.Rule == "" {
		t.Error("details.rule is empty")
	}
}

func TestExpiredAttemptReturnsGone(t *testing.T) {
	f := newAPIFixture(t)
	test, q := f.createTest(t, 30, 1)

	_, env := f.do(t, http.MethodPost, "/api/v1/attempts/start", f.userToken, gin.H{"testId": test.ID})
	var started services.StartAttemptResponse
	decodeData(t, env, &started)

	f.clock.Advance(31 * time.Second)

	w, env := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/attempts/%d/answers", started.AttemptID), f.userToken,
		gin.H{"questionId": q.ID, "answerId": q.Options[0].ID})
	if w.Code != http.StatusGone || env.Code != string(services.KindAttemptExpired) {
		t.Fatalf("submit = %d %q, want 410 ATTEMPT_EXPIRED", w.Code, env.Code)
	}

	w, env = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/attempts/%d", started.AttemptID), f.userToken, nil)
	var progress services.AttemptProgress
	decodeData(t, env, &progress)
	if w.Code != http.StatusOK || !progress.IsFinished || progress.TimeRemaining != 0 {
		t.Errorf("progress after expiry = %d %+v", w.Code, progress)
	}
}

func TestLoginLogoutRevokesToken(t *testing.T) {
	f := newAPIFixture(t)

	w, env := f.do(t, http.MethodPost, "/api/v1/users/login", "", gin.H{"email": "user@example.com", "password": "password123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	var login services.LoginResponse
	decodeData(t, env, &login)
	if login.Token == "" || login.User == nil || login.User.Email != "user@example.com" {
		t.Fatalf("login = %+v", login)
	}

	if w, _ := f.do(t, http.MethodGet, "/api/v1/users/me", login.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("me status = %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodPost, "/api/v1/users/logout", login.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}

	w, env = f.do(t, http.MethodGet, "/api/v1/users/me", login.Token, nil)
	if w.Code != http.StatusUnauthorized || env.Error != "token revoked" {
		t.Errorf("me after logout = %d %q, want 401 token revoked", w.Code, env.Error)
	}

	w, _ = f.do(t, http.MethodPost, "/api/v1/users/login", "", gin.H{"email": "user@example.com", "password": "wrong-password"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", w.Code)
	}
}

func TestCatalogHidesOptionScoresFromAnonymous(t *testing.T) {
	f := newAPIFixture(t)
	test, _ := f.createTest(t, 60, 1)

	w, env := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tests/%d/questions", test.ID), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if bytes.Contains(env.Data, []byte(`"score"`)) {
		t.Errorf("anonymous question listing leaks option scores: %s", env.Data)
	}

	_, env = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tests/%d/questions", test.ID), f.adminToken, nil)
	if !bytes.Contains(env.Data, []byte(`"score"`)) {
		t.Errorf("admin question listing has no option scores: %s", env.Data)
	}
}

func TestExportRequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)
	test, _ := f.createTest(t, 60, 1)
	path := fmt.Sprintf("/api/v1/tests/%d/results/export", test.ID)

	if w, _ := f.do(t, http.MethodGet, path, f.userToken, nil); w.Code != http.StatusForbidden {
		t.Errorf("user export status = %d, want 403", w.Code)
	}

	w, _ := f.do(t, http.MethodGet, path, f.adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin export status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Disposition"); got == "" {
		t.Error("missing Content-Disposition header")
	}
	// xlsx files are zip archives
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Error("export body is not an xlsx archive")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	w, env := f.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !env.Success {
		t.Errorf("health = %d %+v", w.Code, env)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("http_requests_total")) {
		t.Errorf("metrics = %d, body missing http_requests_total", rec.Code)
	}
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatal("burst requests should be allowed")
	}
	if limiter.Allow("10.0.0.1") {
		t.Error("request beyond burst should be refused")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Error("another ip has its own bucket")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.POST("/login", RateLimitMiddleware(NewIPRateLimiter(0.001, 1)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}
