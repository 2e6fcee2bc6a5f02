package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-student-records/internal/middleware"
	"github.com/noah-isme/sma-student-records/internal/models"
	"github.com/noah-isme/sma-student-records/internal/panel"
	"github.com/noah-isme/sma-student-records/internal/session"
	appErrors "github.com/noah-isme/sma-student-records/pkg/errors"
	"github.com/noah-isme/sma-student-records/pkg/response"
)

type workspaceRegistry interface {
	Acquire(ctx context.Context, principal *models.Principal) *panel.Workspace
}

// PanelHandler drives the dashboard workspace of the calling staff member. Every mutating endpoint
// answers with the resulting view state.
type PanelHandler struct {
	registry workspaceRegistry
}

// NewPanelHandler constructs PanelHandler.
func NewPanelHandler(registry workspaceRegistry) *PanelHandler {
	return &PanelHandler{registry: registry}
}

type searchRequest struct {
	Query string `json:"query"`
}

func (h *PanelHandler) workspace(c *gin.Context) (*panel.Workspace, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return h.registry.Acquire(c.Request.Context(), claims.Principal()), true
}

func (h *PanelHandler) state(c *gin.Context, ws *panel.Workspace, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ws.Controller.Snapshot())
}

// Route godoc
// @Summary Resolve a dashboard path
// @Description Returns where a path lands for the caller, including redirects. Callers without a
// @Description valid panel token resolve as signed out.
// @Tags Panel
// @Produce json
// @Param path query string true "Client path"
// @Success 200 {object} response.Envelope
// @Router /panel/route [get]
func (h *PanelHandler) Route(c *gin.Context) {
	claims := claimsFromContext(c)
	if !middleware.HasRole(claims, middleware.PanelRoles...) {
		response.JSON(c, http.StatusOK, session.Resolve(false, c.Query("path")))
		return
	}
	ws := h.registry.Acquire(c.Request.Context(), claims.Principal())
	response.JSON(c, http.StatusOK, ws.Gate.Resolve(c.Query("path")))
}

// Shell godoc
// @Summary Dashboard chrome
// @Tags Panel
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/shell [get]
func (h *PanelHandler) Shell(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, ws.Shell())
}

// State godoc
// @Summary Current list and modal state
// @Tags Panel
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/state [get]
func (h *PanelHandler) State(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	h.state(c, ws, nil)
}

// Load godoc
// @Summary Reload the record list
// @Description A store failure keeps the previous list
// @Tags Panel
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/load [post]
func (h *PanelHandler) Load(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	ws.Controller.Load(c.Request.Context())
	h.state(c, ws, nil)
}

// Search godoc
// @Summary Set the search text
// @Tags Panel
// @Accept json
// @Produce json
// @Param payload body searchRequest true "Search text"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/search [put]
func (h *PanelHandler) Search(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid search payload"))
		return
	}
	ws.Controller.SetSearch(req.Query)
	h.state(c, ws, nil)
}

// OpenCreate godoc
// @Summary Open the form for a new record
// @Tags Panel
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/form [post]
func (h *PanelHandler) OpenCreate(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	ws.Controller.OpenCreate()
	h.state(c, ws, nil)
}

// Edit godoc
// @Summary Open the form on a listed record
// @Tags Panel
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/records/{id}/edit [post]
func (h *PanelHandler) Edit(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	h.state(c, ws, ws.Controller.Edit(c.Param("id")))
}

// ApplyDraft godoc
// @Summary Edit draft fields
// @Description Only the fields present in the payload change. An invalid value rejects the whole patch
// @Tags Panel
// @Accept json
// @Produce json
// @Param payload body panel.DraftPatch true "Changed fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/form [patch]
func (h *PanelHandler) ApplyDraft(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	var patch panel.DraftPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid draft payload"))
		return
	}
	h.state(c, ws, ws.Controller.ApplyDraft(patch))
}

// ToggleSubject godoc
// @Summary Toggle a subject on the draft
// @Tags Panel
// @Produce json
// @Param subject path string true "Subject"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/form/subjects/{subject} [post]
func (h *PanelHandler) ToggleSubject(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	h.state(c, ws, ws.Controller.ToggleSubject(c.Param("subject")))
}

// SubmitForm godoc
// @Summary Submit the form
// @Description Validates the draft, closes the form and saves. Save failures are not reported
// @Tags Panel
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/form/submit [post]
func (h *PanelHandler) SubmitForm(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	h.state(c, ws, ws.Controller.SubmitForm(c.Request.Context()))
}

// CloseForm godoc
// @Summary Cancel the form
// @Tags Panel
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/form [delete]
func (h *PanelHandler) CloseForm(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	ws.Controller.CloseForm()
	h.state(c, ws, nil)
}

// View godoc
// @Summary Open the detail view of a record
// @Tags Panel
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/records/{id}/view [post]
func (h *PanelHandler) View(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	h.state(c, ws, ws.Controller.View(c.Param("id")))
}

// CloseDetail godoc
// @Summary Close the detail view
// @Tags Panel
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/detail [delete]
func (h *PanelHandler) CloseDetail(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	ws.Controller.CloseDetail()
	h.state(c, ws, nil)
}

// RequestDelete godoc
// @Summary Ask to delete a record
// @Tags Panel
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/records/{id}/delete [post]
func (h *PanelHandler) RequestDelete(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	ws.Controller.RequestDelete(c.Param("id"))
	h.state(c, ws, nil)
}

// ConfirmDelete godoc
// @Summary Confirm the pending delete
// @Description Delete failures are not reported; the confirmation closes either way
// @Tags Panel
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/delete/confirm [post]
func (h *PanelHandler) ConfirmDelete(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	h.state(c, ws, ws.Controller.ConfirmDelete(c.Request.Context()))
}

// CancelDelete godoc
// @Summary Dismiss the delete confirmation
// @Tags Panel
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/delete [delete]
func (h *PanelHandler) CancelDelete(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	ws.Controller.CancelDelete()
	h.state(c, ws, nil)
}

// ToggleTheme godoc
// @Summary Switch between light and dark mode
// @Tags Panel
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/theme/toggle [post]
func (h *PanelHandler) ToggleTheme(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	ws.Theme.Toggle()
	response.JSON(c, http.StatusOK, ws.Shell())
}

// SignOut godoc
// @Summary Sign out of the panel
// @Description Revokes the refresh tokens of the caller and tears down the workspace on every instance
// @Tags Panel
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /panel/sign-out [post]
func (h *PanelHandler) SignOut(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	ws.Gate.SignOut(c.Request.Context())
	response.JSON(c, http.StatusOK, ws.Gate.Resolve(session.PathDashboard))
}
