package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/auth"
	"github.com/sakif/sprintium/internal/config"
	"github.com/sakif/sprintium/internal/server"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		DBPath:      ":memory:",
		JWTSecret:   "cli-test-access-secret-value",
		ResetSecret: "cli-test-reset-secret-value!",
		AccessTTL:   30 * time.Minute,
		ResetTTL:    15 * time.Minute,
		Rate:        config.RateConfig{AuthPerMinute: 1000, APIPerMinute: 1000},
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv, err := server.New(context.Background(), cfg, logger,
		server.WithPasswordService(auth.NewPasswordServiceForTest(4)))
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// user is one sprintctl installation: its own session file.
type user struct {
	t       *testing.T
	server  string
	session string
}

func newUser(t *testing.T, ts *httptest.Server, name string) *user {
	return &user{t: t, server: ts.URL, session: filepath.Join(t.TempDir(), name+".json")}
}

func (u *user) run(args ...string) (string, error) {
	u.t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(&out, &errOut)
	root.SetArgs(append([]string{
		"--server", u.server,
		"--session-file", u.session,
		"--color", "never",
	}, args...))
	err := root.Execute()
	return out.String() + errOut.String(), err
}

func (u *user) mustRun(args ...string) string {
	u.t.Helper()
	out, err := u.run(args...)
	require.NoError(u.t, err, "sprintctl %v\n%s", args, out)
	return out
}

func (u *user) signUp(email string) {
	u.t.Helper()
	u.mustRun("register", "--username", "someone", "--email", email, "--password", "password1")
	u.mustRun("login", "--email", email, "--password", "password1")
}

var createdID = regexp.MustCompile(`Created project \w+ \(([^)]+)\)`)

func createProject(t *testing.T, u *user, key string) string {
	t.Helper()
	out := u.mustRun("project", "create", "--name", "Project "+key, "--key", key)
	m := createdID.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	return m[1]
}

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
}

// ==== Account ====

func TestCLI_RegisterLoginWhoamiLogout(t *testing.T) {
	isolateConfig(t)
	ts := startServer(t)
	ana := newUser(t, ts, "ana")

	out := ana.mustRun("register", "--username", "ana", "--email", "ana@example.com", "--password", "password1")
	assert.Contains(t, out, "Registered ana (ana@example.com)")

	out = ana.mustRun("login", "--email", "ana@example.com", "--password", "password1")
	assert.Contains(t, out, "Logged in as ana@example.com")
	assert.FileExists(t, ana.session)

	out = ana.mustRun("whoami")
	assert.Contains(t, out, "ana <ana@example.com>")

	ana.mustRun("logout")
	assert.NoFileExists(t, ana.session)

	_, err := ana.run("whoami")
	assert.True(t, errors.Is(err, apperror.ErrUnauthenticated), "got %v", err)
}

func TestCLI_LoginWrongPassword(t *testing.T) {
	isolateConfig(t)
	ts := startServer(t)
	ana := newUser(t, ts, "ana")
	ana.mustRun("register", "--username", "ana", "--email", "ana@example.com", "--password", "password1")

	_, err := ana.run("login", "--email", "ana@example.com", "--password", "wrong-password")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrUnauthenticated), "got %v", err)
	assert.NoFileExists(t, ana.session)
}

func TestCLI_PasswordReset(t *testing.T) {
	isolateConfig(t)
	ts := startServer(t)
	ana := newUser(t, ts, "ana")
	ana.mustRun("register", "--username", "ana", "--email", "ana@example.com", "--password", "password1")

	out := ana.mustRun("forgot-password", "--email", "ana@example.com")
	lines := regexp.MustCompile(`(?m)^(\S+\.\S+\.\S+)$`).FindStringSubmatch(out)
	require.Len(t, lines, 2, out)

	ana.mustRun("reset-password", "--token", lines[1], "--password", "password2")
	ana.mustRun("login", "--email", "ana@example.com", "--password", "password2")
}

func TestCLI_NoSessionRequiresLogin(t *testing.T) {
	isolateConfig(t)
	ts := startServer(t)
	ana := newUser(t, ts, "ana")

	for _, args := range [][]string{
		{"project", "list"},
		{"project", "create", "--name", "X", "--key", "XX"},
		{"member", "add", "p1", "bo@example.com"},
		{"issue", "board", "p1"},
	} {
		_, err := ana.run(args...)
		assert.True(t, errors.Is(err, apperror.ErrUnauthenticated), "%v: got %v", args, err)
	}
}

// ==== Projects, members and issues ====

func TestCLI_ProjectWorkflow(t *testing.T) {
	isolateConfig(t)
	ts := startServer(t)
	ana := newUser(t, ts, "ana")
	bo := newUser(t, ts, "bo")
	ana.signUp("ana@example.com")
	bo.signUp("bo@example.com")

	out := ana.mustRun("project", "list")
	assert.Contains(t, out, "not a member of any project")

	id := createProject(t, ana, "WEB")

	out = ana.mustRun("project", "list")
	assert.Contains(t, out, "WEB")
	assert.Contains(t, out, "Admin")

	out = ana.mustRun("member", "add", id, "bo@example.com", "--role", "Viewer")
	assert.Contains(t, out, "Added bo@example.com to WEB as Viewer")

	out = ana.mustRun("project", "show", id)
	assert.Contains(t, out, "bo@example.com")
	assert.Contains(t, out, "Viewer")

	// Viewer can read but not write.
	bo.mustRun("issue", "board", id)
	_, err := bo.run("issue", "create", id, "--title", "Nope")
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "got %v", err)

	ana.mustRun("member", "role", id, "bo@example.com", "Member")
	out = bo.mustRun("issue", "create", id, "--title", "Fix login", "--status", "In Progress")
	assert.Contains(t, out, "Issue created")
	assert.Contains(t, out, "Fix login")
	assert.Contains(t, out, "bo@example.com")

	out = ana.mustRun("issue", "board", id)
	assert.Contains(t, out, "To Do (0)")
	assert.Contains(t, out, "In Progress (1)")
	assert.Contains(t, out, "Done (0)")

	_, err = ana.run("member", "add", id, "bo@example.com")
	assert.True(t, errors.Is(err, apperror.ErrAlreadyMember), "got %v", err)

	out = ana.mustRun("project", "edit", id, "--name", "Website")
	assert.Contains(t, out, "Updated project WEB")
	out = ana.mustRun("project", "show", id)
	assert.Contains(t, out, "Website")

	ana.mustRun("member", "remove", id, "bo@example.com")
	_, err = bo.run("issue", "board", id)
	assert.True(t, errors.Is(err, apperror.ErrNotAMember), "got %v", err)

	out = ana.mustRun("project", "delete", id)
	assert.Contains(t, out, fmt.Sprintf("Project %s deleted", id))
	out = ana.mustRun("project", "list")
	assert.NotContains(t, out, "WEB")
}

func TestCLI_IssueDelete(t *testing.T) {
	isolateConfig(t)
	ts := startServer(t)
	ana := newUser(t, ts, "ana")
	ana.signUp("ana@example.com")
	id := createProject(t, ana, "OPS")

	ana.mustRun("issue", "create", id, "--title", "Rotate keys")
	out := ana.mustRun("issue", "board", id)
	assert.Contains(t, out, "To Do (1)")

	issueID := regexp.MustCompile(`([0-9a-v]{20})`).FindString(out)
	require.NotEmpty(t, issueID, out)

	out = ana.mustRun("issue", "delete", id, issueID)
	assert.Contains(t, out, "To Do (0)")

	_, err := ana.run("issue", "delete", id, issueID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
}

func TestCLI_BadArguments(t *testing.T) {
	isolateConfig(t)
	ts := startServer(t)
	ana := newUser(t, ts, "ana")
	ana.signUp("ana@example.com")
	id := createProject(t, ana, "ARG")

	_, err := ana.run("member", "add", id, "bo@example.com", "--role", "Owner")
	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)

	_, err = ana.run("issue", "create", id, "--title", "x", "--status", "Blocked")
	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)

	_, err = ana.run("--color", "sometimes", "whoami")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, describe(apperror.Unauthenticated("no session")), "sprintctl login")
	assert.Contains(t, describe(apperror.AlreadyMember("p1", "bo@example.com")), "member role")
	assert.Contains(t, describe(apperror.Remote("listing projects", errors.New("dial tcp: refused"))), "server unreachable")
	assert.Equal(t, "plain", describe(errors.New("plain")))
}
