package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskmanager/internal/auth"
	"taskmanager/internal/config"
	"taskmanager/internal/db"
	"taskmanager/internal/errors"
	"taskmanager/internal/handler"
	"taskmanager/internal/model"
	"taskmanager/internal/notify"
	"taskmanager/internal/repository"
	"taskmanager/internal/service"
)

type testServer struct {
	e     *echo.Echo
	users service.UserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gdb, err := db.NewSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, false))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := zap.NewNop()
	cfg := &config.Config{AppEnv: "test", RequestTimeout: 5 * time.Second}
	userRepo := repository.NewUserRepository(gdb)
	taskRepo := repository.NewTaskRepository(gdb)
	jwtService := auth.NewJWTService("test-secret", time.Minute, time.Hour)
	tokenStore := auth.NewTokenStore(nil)

	users := service.NewUserService(userRepo, nil, log)
	notifications := service.NewNotificationService(taskRepo, users, notify.Nop{}, log)
	analytics := service.NewAnalyticsService(taskRepo, userRepo, nil, 0, log)
	tasks := service.NewTaskService(taskRepo, userRepo, notifications, analytics, log)

	e := echo.New()
	Register(e, Options{
		Config:       cfg,
		Logger:       log,
		JWT:          jwtService,
		TokenStore:   tokenStore,
		Users:        users,
		Auth:         handler.NewAuthHandler(service.NewAuthService(userRepo, jwtService, tokenStore, log)),
		User:         handler.NewUserHandler(users),
		Task:         handler.NewTaskHandler(tasks),
		Notification: handler.NewNotificationHandler(notifications, notify.Nop{}, log),
		Analytics:    handler.NewAnalyticsHandler(analytics),
	})
	return &testServer{e: e, users: users}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func (s *testServer) register(t *testing.T, name, email string) (string, model.User) {
	t.Helper()
	res := s.session(t, name, email)
	return res.AccessToken, *res.User
}

// session registers a user and returns both tokens.
func (s *testServer) session(t *testing.T, name, email string) service.AuthResult {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res service.AuthResult
	decode(t, rec, &res)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
	return res
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestTaskFlow(t *testing.T) {
	s := newTestServer(t)
	tokenA, userA := s.register(t, "Ann", "ann@example.com")

	rec := s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ANN@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/tasks", tokenA, map[string]interface{}{
		"title":      "T1",
		"dueDate":    time.Now().Add(48 * time.Hour).Format("2006-01-02"),
		"assignedTo": userA.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.TaskView
	decode(t, rec, &created)
	assert.Equal(t, model.StatusToDo, created.Status)
	assert.Equal(t, model.PriorityMedium, created.Priority)
	assert.Equal(t, userA.ID, created.CreatedBy)
	require.Len(t, created.AuditLog, 1)
	assert.Equal(t, model.AuditCreated, created.AuditLog[0].Action)

	rec = s.do(t, http.MethodGet, "/api/notifications?unread=true", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var unread []model.Notification
	decode(t, rec, &unread)
	require.Len(t, unread, 1)
	assert.Equal(t, created.ID, unread[0].TaskID)
	assert.False(t, unread[0].Read)

	path := "/api/tasks/" + created.ID.String() + "/notifications/" + unread[0].ID.String() + "/read"
	rec = s.do(t, http.MethodPut, path, tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodGet, "/api/notifications?unread=true", tokenA, nil)
	decode(t, rec, &unread)
	assert.Empty(t, unread)

	tokenB, _ := s.register(t, "Bob", "bob@example.com")

	rec = s.do(t, http.MethodPut, "/api/tasks/"+created.ID.String(), tokenB, map[string]string{"title": "stolen"})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/tasks/"+created.ID.String(), tokenB, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/tasks", tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.TaskView
	decode(t, rec, &list)
	assert.Empty(t, list)

	rec = s.do(t, http.MethodPut, "/api/tasks/"+created.ID.String(), tokenA, map[string]string{"status": "Completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated model.TaskView
	decode(t, rec, &updated)
	assert.Equal(t, model.StatusCompleted, updated.Status)

	rec = s.do(t, http.MethodGet, "/api/analytics", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum service.Summary
	decode(t, rec, &sum)
	assert.Equal(t, 1, sum.TotalTasks)
	assert.Equal(t, float64(100), sum.CompletionRate)

	rec = s.do(t, http.MethodDelete, "/api/tasks/"+created.ID.String(), tokenA, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/tasks/"+created.ID.String(), tokenA, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrors(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "Ann", "ann@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
		code   string
	}{
		{"missing token", http.MethodGet, "/api/tasks", "", nil, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"bad token", http.MethodGet, "/api/tasks", "garbage", nil, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"duplicate email", http.MethodPost, "/api/users/register", "", map[string]string{"name": "Ann", "email": "ann@example.com", "password": "secret123"}, http.StatusConflict, "CONFLICT"},
		{"short password", http.MethodPost, "/api/users/register", "", map[string]string{"name": "X", "email": "x@example.com", "password": "123"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"wrong password", http.MethodPost, "/api/users/login", "", map[string]string{"email": "ann@example.com", "password": "nope"}, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"invalid priority", http.MethodPost, "/api/tasks", token, map[string]string{"title": "x", "dueDate": "2030-01-01", "priority": "Urgent"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"invalid task id", http.MethodGet, "/api/tasks/not-a-uuid", token, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"admin only", http.MethodGet, "/api/users/all", token, nil, http.StatusForbidden, "FORBIDDEN"},
		{"unknown route", http.MethodGet, "/api/nope", token, nil, http.StatusNotFound, "NOT_FOUND"},
		{"stream without transport", http.MethodGet, "/api/notifications/stream", token, nil, http.StatusServiceUnavailable, "TRANSIENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			var res struct {
				Code string `json:"code"`
			}
			decode(t, rec, &res)
			assert.Equal(t, tt.code, res.Code)
		})
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "Root", "root@example.com")
	_, bob := s.register(t, "Bob", "bob@example.com")

	rec := s.do(t, http.MethodGet, "/api/users/all", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, err := s.users.PromoteByEmail(context.Background(), "root@example.com", string(model.RoleAdmin))
	require.NoError(t, err)

	// Roles are loaded per request, so the existing token picks up the promotion.
	rec = s.do(t, http.MethodGet, "/api/users/all", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var users []model.User
	decode(t, rec, &users)
	assert.Len(t, users, 2)

	rec = s.do(t, http.MethodPut, "/api/users/"+bob.ID.String()+"/role", token, map[string]string{"role": "manager"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var promoted model.User
	decode(t, rec, &promoted)
	assert.Equal(t, model.RoleManager, promoted.Role)

	rec = s.do(t, http.MethodPut, "/api/users/"+bob.ID.String()+"/role", token, map[string]string{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/users/"+bob.ID.String()+"/manager", token, map[string]interface{}{"managerId": bob.ID.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestTokenTypes(t *testing.T) {
	s := newTestServer(t)
	res := s.session(t, "Ann", "ann@example.com")

	assertUnauthenticated := func(rec *httptest.ResponseRecorder) {
		t.Helper()
		require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
		var body errors.ErrorResponse
		decode(t, rec, &body)
		assert.Equal(t, "UNAUTHENTICATED", body.Code)
	}

	// A refresh token is never a bearer credential.
	assertUnauthenticated(s.do(t, http.MethodGet, "/api/tasks", res.RefreshToken, nil))
	assertUnauthenticated(s.do(t, http.MethodPost, "/api/tasks", res.RefreshToken, map[string]string{"title": "x", "dueDate": "2030-01-01"}))

	// Nor is an access token accepted for refresh.
	assertUnauthenticated(s.do(t, http.MethodPost, "/api/users/refresh", "", map[string]string{"refreshToken": res.AccessToken}))

	rec := s.do(t, http.MethodGet, "/api/tasks", res.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/users/logout", res.AccessToken, map[string]string{"refreshToken": res.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Still rejected once the session is gone.
	assertUnauthenticated(s.do(t, http.MethodGet, "/api/tasks", res.RefreshToken, nil))
	assertUnauthenticated(s.do(t, http.MethodPost, "/api/users/refresh", "", map[string]string{"refreshToken": res.RefreshToken}))
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "Ann", "ann@example.com")

	rec := s.do(t, http.MethodPut, "/api/users/profile", token, map[string]interface{}{
		"name":                    "Annie",
		"notificationPreferences": map[string]bool{"email": false},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me model.User
	decode(t, rec, &me)
	assert.Equal(t, "Annie", me.Name)
	assert.False(t, me.NotificationPreferences.Email)
	assert.True(t, me.NotificationPreferences.InApp)

	rec = s.do(t, http.MethodPost, "/api/users/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
