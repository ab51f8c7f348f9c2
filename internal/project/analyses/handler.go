package analyses

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rencana-app/rencana/internal/ahsp"
	"github.com/rencana-app/rencana/internal/masterdata/items"
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

// MountRoutes registers under /projects/{id}/analyses.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermProjectView, shared.PermProjectManage)).Get("/", h.List)
	r.With(h.rbac.RequireAny(shared.PermProjectView, shared.PermProjectManage)).Get("/{analysisID}", h.Show)
	r.With(h.rbac.RequireAny(shared.PermProjectView, shared.PermProjectManage)).Get("/{analysisID}/resolve", h.Resolve)
	r.With(h.rbac.RequireAny(shared.PermProjectManage)).Post("/", h.Create)
	r.With(h.rbac.RequireAny(shared.PermProjectManage)).Put("/{analysisID}/entries", h.ReplaceEntries)
	r.With(h.rbac.RequireAny(shared.PermProjectManage)).Post("/{analysisID}/sync", h.Sync)
	r.With(h.rbac.RequireAny(shared.PermProjectManage)).Delete("/{analysisID}", h.Delete)
}

// createRequest either copies a master analysis (master_id set) or
// creates a custom one (code/name/unit_id set).
type createRequest struct {
	MasterID int64  `json:"master_id" validate:"omitempty,gt=0"`
	Code     string `json:"code" validate:"omitempty,max=30"`
	Name     string `json:"name" validate:"omitempty,max=200"`
	UnitID   int64  `json:"unit_id" validate:"omitempty,gt=0"`
}

type entryRequest struct {
	ItemID      int64  `json:"item_id" validate:"required,gt=0"`
	Category    string `json:"category" validate:"required,oneof=material labor equipment"`
	Coefficient string `json:"coefficient" validate:"required"`
}

type entriesRequest struct {
	Entries []entryRequest `json:"entries" validate:"dive"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r, "id", "invalid project id")
	if !ok {
		return
	}
	list, err := h.service.List(r.Context(), projectID)
	if err != nil {
		h.logger.Error("list project analyses failed", "error", err, "project_id", projectID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r, "id", "invalid project id")
	if !ok {
		return
	}
	analysisID, ok := h.pathID(w, r, "analysisID", "invalid analysis id")
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), projectID, analysisID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r, "id", "invalid project id")
	if !ok {
		return
	}
	analysisID, ok := h.pathID(w, r, "analysisID", "invalid analysis id")
	if !ok {
		return
	}
	res, err := h.service.Resolve(r.Context(), projectID, analysisID)
	if err != nil {
		h.logger.Error("resolve project analysis failed", "error", err, "analysis_id", analysisID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r, "id", "invalid project id")
	if !ok {
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	var created ProjectAnalysis
	var err error
	if req.MasterID > 0 {
		created, err = h.service.CopyFromMaster(r.Context(), projectID, req.MasterID)
	} else {
		created, err = h.service.CreateCustom(r.Context(), ProjectAnalysis{
			ProjectID: projectID,
			Code:      req.Code,
			Name:      req.Name,
			UnitID:    req.UnitID,
		})
	}
	if err != nil {
		h.logger.Error("create project analysis failed", "error", err, "project_id", projectID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) ReplaceEntries(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r, "id", "invalid project id")
	if !ok {
		return
	}
	analysisID, ok := h.pathID(w, r, "analysisID", "invalid analysis id")
	if !ok {
		return
	}
	var req entriesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries := make([]ahsp.CompositionEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		coeff, err := money.ParseQuantity(e.Coefficient)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid coefficient")
			return
		}
		entries = append(entries, ahsp.CompositionEntry{
			AnalysisID:  analysisID,
			ItemID:      e.ItemID,
			Category:    items.ItemCategory(e.Category),
			Coefficient: coeff,
		})
	}
	if err := h.service.ReplaceEntries(r.Context(), projectID, analysisID, entries); err != nil {
		h.logger.Error("replace project entries failed", "error", err, "analysis_id", analysisID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"replaced": len(entries)})
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r, "id", "invalid project id")
	if !ok {
		return
	}
	analysisID, ok := h.pathID(w, r, "analysisID", "invalid analysis id")
	if !ok {
		return
	}
	if err := h.service.Sync(r.Context(), projectID, analysisID); err != nil {
		h.logger.Error("sync project analysis failed", "error", err, "analysis_id", analysisID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"synced": true})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r, "id", "invalid project id")
	if !ok {
		return
	}
	analysisID, ok := h.pathID(w, r, "analysisID", "invalid analysis id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), projectID, analysisID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name, msg string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", msg)
		return 0, false
	}
	return id, true
}
