package handler_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sprintium/internal/auth"
	"github.com/sakif/sprintium/internal/handler"
	sqliteRepo "github.com/sakif/sprintium/internal/repository/sqlite"
	"github.com/sakif/sprintium/internal/service"
)

// testEnv is a router over real services on an in-memory database.
// Requests authenticate with the X-Test-User header instead of a JWT.
type testEnv struct {
	router http.Handler
	db     *sqliteRepo.DB
	access *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	access, err := auth.NewTokenService("handler-test-access-secret")
	require.NoError(t, err)
	reset, err := auth.NewTokenService("handler-test-reset-secret!",
		auth.WithAudience(auth.AudienceReset), auth.WithTTL(15*time.Minute))
	require.NoError(t, err)

	authSvc := service.NewAuthService(service.AuthDeps{
		Users:     db,
		Denylist:  db,
		Access:    access,
		Reset:     reset,
		Passwords: auth.NewPasswordServiceForTest(4),
	}, logger)
	projects := service.NewProjectService(db, db, logger)
	members := service.NewMembershipService(db, db, nil, logger)
	issues := service.NewIssueService(db, db, db, nil, logger)

	ah := handler.NewAuthHandler(authSvc, logger)
	ph := handler.NewProjectHandler(projects, members, logger)
	ih := handler.NewIssueHandler(issues, logger)

	r := chi.NewRouter()
	r.Post("/auth/register", ah.HandleRegister)
	r.Post("/auth/login", ah.HandleLogin)
	r.Post("/auth/forgot-password", ah.HandleForgotPassword)
	r.Post("/auth/reset-password", ah.HandleResetPassword)
	r.Group(func(r chi.Router) {
		r.Use(testUser)
		r.Post("/auth/logout", ah.HandleLogout)
		r.Get("/auth/me", ah.HandleMe)
		r.Get("/projects", ph.HandleList)
		r.Post("/projects", ph.HandleCreate)
		r.Get("/projects/{id}", ph.HandleGet)
		r.Put("/projects/{id}", ph.HandleUpdate)
		r.Delete("/projects/{id}", ph.HandleDelete)
		r.Post("/projects/{id}/members", ph.HandleAddMember)
		r.Patch("/projects/{id}/members/{email}", ph.HandleSetMemberRole)
		r.Delete("/projects/{id}/members/{email}", ph.HandleRemoveMember)
		r.Get("/projects/{id}/issues", ih.HandleList)
		r.Post("/projects/{id}/issues", ih.HandleCreate)
		r.Delete("/projects/{id}/issues/{iid}", ih.HandleDelete)
	})

	return &testEnv{router: r, db: db, access: access}
}

func testUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if email := r.Header.Get("X-Test-User"); email != "" {
			claims := &auth.Claims{Subject: email, TokenID: "test-" + email, ExpiresAt: time.Now().Add(time.Hour)}
			r = r.WithContext(auth.WithClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

// do sends a request as user ("" for anonymous) and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

// createProject creates a project as owner and returns its id.
func (e *testEnv) createProject(t *testing.T, owner, key string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/projects", owner, map[string]string{"name": key + " board", "key": key})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]any](t, rec)["id"].(string)
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[handler.ErrorResponse](t, rec)
	assert.Equal(t, code, body.Error)
	assert.NotEmpty(t, body.Message)
}

// ptr returns a pointer to v so pointer-receiver methods can be called on
// decoded values.
func ptr[T any](v T) *T { return &v }
