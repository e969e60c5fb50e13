package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sakif/sprintium/internal/model"
	"github.com/sakif/sprintium/internal/permission"
)

// ==== Auth ====

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetTokenResponse struct {
	ResetToken string `json:"reset_token"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (c *Client) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	var u model.User
	err := c.call(ctx, false, http.MethodPost, "/auth/register",
		registerRequest{Username: username, Email: email, Password: password}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Login exchanges credentials for an access token. The caller decides
// where to keep it.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var tr tokenResponse
	err := c.call(ctx, false, http.MethodPost, "/auth/login",
		credentialsRequest{Email: email, Password: password}, &tr)
	if err != nil {
		return "", err
	}
	return tr.AccessToken, nil
}

// ForgotPassword returns the reset token, or "" when the server issued
// none (unknown e-mail).
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var rt resetTokenResponse
	if err := c.call(ctx, false, http.MethodPost, "/auth/forgot-password", emailRequest{Email: email}, &rt); err != nil {
		return "", err
	}
	return rt.ResetToken, nil
}

func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	return c.call(ctx, false, http.MethodPost, "/auth/reset-password",
		resetPasswordRequest{Token: token, NewPassword: newPassword}, nil)
}

// Logout revokes the current access token on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, true, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.call(ctx, true, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ==== Projects ====

// ProjectInput is the body of project create and update. Key is ignored
// on update.
type ProjectInput struct {
	Name        string `json:"name"`
	Key         string `json:"key,omitempty"`
	Description string `json:"description"`
	Type        string `json:"type,omitempty"`
}

func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	var ps []model.Project
	if err := c.call(ctx, true, http.MethodGet, "/projects", nil, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

func (c *Client) CreateProject(ctx context.Context, in ProjectInput) (*model.Project, error) {
	var p model.Project
	if err := c.call(ctx, true, http.MethodPost, "/projects", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	var p model.Project
	if err := c.call(ctx, true, http.MethodGet, "/projects/"+url.PathEscape(projectID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProject(ctx context.Context, projectID string, in ProjectInput) (*model.Project, error) {
	in.Key = ""
	var p model.Project
	if err := c.call(ctx, true, http.MethodPut, "/projects/"+url.PathEscape(projectID), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.call(ctx, true, http.MethodDelete, "/projects/"+url.PathEscape(projectID), nil, nil)
}

// ==== Members ====

type memberRequest struct {
	Email string          `json:"email,omitempty"`
	Role  permission.Role `json:"role"`
}

func (c *Client) AddMember(ctx context.Context, projectID, email string, role permission.Role) (*model.Project, error) {
	var p model.Project
	err := c.call(ctx, true, http.MethodPost, "/projects/"+url.PathEscape(projectID)+"/members",
		memberRequest{Email: email, Role: role}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) SetMemberRole(ctx context.Context, projectID, email string, role permission.Role) (*model.Project, error) {
	var p model.Project
	err := c.call(ctx, true, http.MethodPatch, memberPath(projectID, email), memberRequest{Role: role}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) RemoveMember(ctx context.Context, projectID, email string) (*model.Project, error) {
	var p model.Project
	if err := c.call(ctx, true, http.MethodDelete, memberPath(projectID, email), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func memberPath(projectID, email string) string {
	return "/projects/" + url.PathEscape(projectID) + "/members/" + url.PathEscape(email)
}

// ==== Issues ====

type issueRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      model.Status `json:"status,omitempty"`
	Assignee    string       `json:"assignee,omitempty"`
}

func (c *Client) ListIssues(ctx context.Context, projectID string) ([]model.Issue, error) {
	var is []model.Issue
	if err := c.call(ctx, true, http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/issues", nil, &is); err != nil {
		return nil, err
	}
	return is, nil
}

// CreateIssue posts issue to the project. The server sets the id, the
// timestamps and the reporter (from the bearer token).
func (c *Client) CreateIssue(ctx context.Context, projectID string, issue model.Issue) (*model.Issue, error) {
	var created model.Issue
	err := c.call(ctx, true, http.MethodPost, "/projects/"+url.PathEscape(projectID)+"/issues", issueRequest{
		Title:       issue.Title,
		Description: issue.Description,
		Status:      issue.Status,
		Assignee:    issue.Assignee,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) DeleteIssue(ctx context.Context, projectID, issueID string) error {
	return c.call(ctx, true, http.MethodDelete,
		"/projects/"+url.PathEscape(projectID)+"/issues/"+url.PathEscape(issueID), nil, nil)
}
