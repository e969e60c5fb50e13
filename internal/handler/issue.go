package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/sprintium/internal/service"
)

// IssueHandler serves /projects/{id}/issues.
type IssueHandler struct {
	issues *service.IssueService
	logger *slog.Logger
}

func NewIssueHandler(issues *service.IssueService, logger *slog.Logger) *IssueHandler {
	return &IssueHandler{issues: issues, logger: logger}
}

type createIssueRequest struct {
	Title       string `json:"title"       validate:"required,max=200"`
	Description string `json:"description"`
	Status      string `json:"status"      validate:"omitempty,oneof='To Do' 'In Progress' Done"`
	Assignee    string `json:"assignee"    validate:"omitempty,email"`
}

// HandleList returns the project's issues.
//
// HTTP: GET /projects/{id}/issues
func (h *IssueHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, err := callerEmail(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	issues, err := h.issues.List(r.Context(), caller, pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

// HandleCreate creates an issue reported by the caller.
//
// HTTP: POST /projects/{id}/issues
func (h *IssueHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerEmail(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req createIssueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	issue, err := h.issues.Create(r.Context(), caller, pathParam(r, "id"), service.IssueInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Assignee:    req.Assignee,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

// HandleDelete removes an issue.
//
// HTTP: DELETE /projects/{id}/issues/{iid}
func (h *IssueHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, err := callerEmail(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.issues.Delete(r.Context(), caller, pathParam(r, "id"), pathParam(r, "iid")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
