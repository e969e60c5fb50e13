package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/sprintium/internal/permission"
	"github.com/sakif/sprintium/internal/service"
)

// ProjectHandler serves /projects and the membership endpoints under it.
type ProjectHandler struct {
	projects *service.ProjectService
	members  *service.MembershipService
	logger   *slog.Logger
}

func NewProjectHandler(projects *service.ProjectService, members *service.MembershipService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, members: members, logger: logger}
}

type createProjectRequest struct {
	Name        string `json:"name"        validate:"required,max=100"`
	Key         string `json:"key"         validate:"required,min=2,max=10"`
	Description string `json:"description"`
	Type        string `json:"type"        validate:"omitempty,oneof=software service"`
}

type updateProjectRequest struct {
	Name        string `json:"name"        validate:"required,max=100"`
	Description string `json:"description"`
	Type        string `json:"type"        validate:"omitempty,oneof=software service"`
}

type addMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role"  validate:"required"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// HandleList returns the caller's projects.
//
// HTTP: GET /projects
func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, err := callerEmail(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	projects, err := h.projects.List(r.Context(), caller)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// HandleCreate creates a project owned by the caller.
//
// HTTP: POST /projects
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerEmail(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.projects.Create(r.Context(), caller, service.ProjectInput{
		Name:        req.Name,
		Key:         req.Key,
		Description: req.Description,
		Type:        req.Type,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleGet returns one project with the caller's role.
//
// HTTP: GET /projects/{id}
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, err := callerEmail(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.projects.Get(r.Context(), caller, pathParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdate edits name, description and type.
//
// HTTP: PUT /projects/{id}
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerEmail(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.projects.Update(r.Context(), caller, pathParam(r, "id"), service.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete removes a project with its issues and members.
//
// HTTP: DELETE /projects/{id}
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, err := callerEmail(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.projects.Delete(r.Context(), caller, pathParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddMember adds a member.
//
// HTTP: POST /projects/{id}/members  {"email": "...", "role": "Member"}
func (h *ProjectHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	caller, err := callerEmail(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	role, err := permission.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.members.Add(r.Context(), caller, pathParam(r, "id"), req.Email, role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleSetMemberRole changes a member's role. The role comes from the JSON
// body or, for older clients, the ?role= query parameter.
//
// HTTP: PATCH /projects/{id}/members/{email}
func (h *ProjectHandler) HandleSetMemberRole(w http.ResponseWriter, r *http.Request) {
	caller, err := callerEmail(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	raw := r.URL.Query().Get("role")
	if raw == "" {
		var req setRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		raw = req.Role
	}
	role, err := permission.ParseRole(raw)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.members.SetRole(r.Context(), caller, pathParam(r, "id"), pathParam(r, "email"), role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleRemoveMember removes a member.
//
// HTTP: DELETE /projects/{id}/members/{email}
func (h *ProjectHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	caller, err := callerEmail(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.members.Remove(r.Context(), caller, pathParam(r, "id"), pathParam(r, "email"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
