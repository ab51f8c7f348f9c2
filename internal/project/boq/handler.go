package boq

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rencana-app/rencana/internal/money"
	"github.com/rencana-app/rencana/internal/platform/httpx"
	"github.com/rencana-app/rencana/internal/rbac"
	"github.com/rencana-app/rencana/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountProjectRoutes registers the project-scoped listing and creation
// routes; mounted under /projects/{id}.
func (h *Handler) MountProjectRoutes(r chi.Router) {
	r.Route("/categories", func(r chi.Router) {
		r.With(h.rbac.RequireAny(shared.PermProjectView, shared.PermProjectManage)).Get("/", h.ListCategories)
		r.With(h.rbac.RequireAny(shared.PermProjectManage)).Post("/", h.CreateCategory)
	})
	r.Route("/boq", func(r chi.Router) {
		r.With(h.rbac.RequireAny(shared.PermProjectView, shared.PermProjectManage)).Get("/", h.ListLines)
		r.With(h.rbac.RequireAny(shared.PermProjectManage)).Post("/", h.CreateLine)
	})
}

// MountRootRoutes registers the row-addressed mutation routes.
func (h *Handler) MountRootRoutes(r chi.Router) {
	r.Route("/categories", func(r chi.Router) {
		r.With(h.rbac.RequireAny(shared.PermProjectManage)).Put("/{id}", h.UpdateCategory)
		r.With(h.rbac.RequireAny(shared.PermProjectManage)).Delete("/{id}", h.DeleteCategory)
	})
	r.Route("/boq", func(r chi.Router) {
		r.With(h.rbac.RequireAny(shared.PermProjectView, shared.PermProjectManage)).Get("/{id}", h.ShowLine)
		r.With(h.rbac.RequireAny(shared.PermProjectManage)).Put("/{id}", h.UpdateLine)
		r.With(h.rbac.RequireAny(shared.PermProjectManage)).Delete("/{id}", h.DeleteLine)
	})
}

type categoryRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	ParentID  *int64 `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
}

type lineRequest struct {
	CategoryID int64  `json:"category_id" validate:"required,gt=0"`
	Kind       string `json:"kind" validate:"required,oneof=derived custom"`
	AnalysisID *int64 `json:"analysis_id,omitempty" validate:"omitempty,gt=0"`
	Code       string `json:"code" validate:"max=30"`
	Name       string `json:"name" validate:"required,max=300"`
	Unit       string `json:"unit" validate:"max=20"`
	Volume     string `json:"volume" validate:"required"`
	UnitPrice  string `json:"unit_price" validate:"omitempty"`
	SortOrder  int    `json:"sort_order" validate:"gte=0"`
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "id", "invalid project id")
	if !ok {
		return
	}
	cats, err := h.service.ListCategories(r.Context(), projectID)
	if err != nil {
		h.logger.Error("list categories failed", "error", err, "project_id", projectID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": cats})
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "id", "invalid project id")
	if !ok {
		return
	}
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.CreateCategory(r.Context(), Category{
		ProjectID: projectID,
		ParentID:  req.ParentID,
		Name:      req.Name,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		h.logger.Error("create category failed", "error", err, "project_id", projectID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid category id")
	if !ok {
		return
	}
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	existing, err := h.service.CategoryByID(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	err = h.service.UpdateCategory(r.Context(), existing.ProjectID, id, Category{
		ParentID:  req.ParentID,
		Name:      req.Name,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		h.logger.Error("update category failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid category id")
	if !ok {
		return
	}
	existing, err := h.service.CategoryByID(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteCategory(r.Context(), existing.ProjectID, id); err != nil {
		h.logger.Error("delete category subtree failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) ListLines(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "id", "invalid project id")
	if !ok {
		return
	}
	lines, err := h.service.ListLines(r.Context(), projectID)
	if err != nil {
		h.logger.Error("list boq lines failed", "error", err, "project_id", projectID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": lines})
}

func (h *Handler) ShowLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid boq line id")
	if !ok {
		return
	}
	line, err := h.service.LineByID(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) CreateLine(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "id", "invalid project id")
	if !ok {
		return
	}
	line, err := h.decodeLine(r, projectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.CreateLine(r.Context(), line)
	if err != nil {
		h.logger.Error("create boq line failed", "error", err, "project_id", projectID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid boq line id")
	if !ok {
		return
	}
	existing, err := h.service.LineByID(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	line, err := h.decodeLine(r, existing.ProjectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.UpdateLine(r.Context(), existing.ProjectID, id, line); err != nil {
		h.logger.Error("update boq line failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid boq line id")
	if !ok {
		return
	}
	existing, err := h.service.LineByID(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteLine(r.Context(), existing.ProjectID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) decodeLine(r *http.Request, projectID int64) (Line, error) {
	var req lineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return Line{}, shared.ErrValidation
	}
	if err := httpx.Validate(req); err != nil {
		return Line{}, err
	}
	volume, err := money.ParseQuantity(req.Volume)
	if err != nil {
		return Line{}, shared.ErrValidation
	}
	line := Line{
		ProjectID:  projectID,
		CategoryID: req.CategoryID,
		Kind:       LineKind(req.Kind),
		AnalysisID: req.AnalysisID,
		Code:       req.Code,
		Name:       req.Name,
		Unit:       req.Unit,
		Volume:     volume,
		SortOrder:  req.SortOrder,
	}
	if req.UnitPrice != "" {
		line.UnitPrice, err = money.ParseAmount(req.UnitPrice)
		if err != nil {
			return Line{}, shared.ErrValidation
		}
	}
	return line, nil
}

func pathID(w http.ResponseWriter, r *http.Request, name, msg string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", msg)
		return 0, false
	}
	return id, true
}
