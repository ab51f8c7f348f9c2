package ahsp

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

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

func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermAHSPManage, shared.PermProjectView)).Get("/", h.List)
	r.With(h.rbac.RequireAny(shared.PermAHSPManage, shared.PermProjectView)).Get("/{id}", h.Show)
	r.With(h.rbac.RequireAny(shared.PermAHSPManage, shared.PermProjectView)).Get("/{id}/resolve", h.Resolve)
	r.With(h.rbac.RequireAny(shared.PermAHSPManage)).Post("/", h.Create)
	r.With(h.rbac.RequireAny(shared.PermAHSPManage)).Put("/{id}", h.Update)
	r.With(h.rbac.RequireAny(shared.PermAHSPManage)).Put("/{id}/entries", h.ReplaceEntries)
	r.With(h.rbac.RequireAny(shared.PermAHSPManage)).Delete("/{id}", h.Delete)
}

type analysisRequest struct {
	Code   string `json:"code" validate:"required,max=30"`
	Name   string `json:"name" validate:"required,max=200"`
	UnitID int64  `json:"unit_id" validate:"required,gt=0"`
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
	filters := shared.ParseListFilters(r)
	analyses, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list analyses failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       analyses,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid analysis id")
		return
	}
	analysis, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, analysis)
}

// Resolve prices the composition against a region's current price list.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid analysis id")
		return
	}
	regionID, err := strconv.ParseInt(r.URL.Query().Get("region_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "region_id query parameter is required")
		return
	}
	res, err := h.service.Preview(r.Context(), id, regionID)
	if err != nil {
		h.logger.Error("resolve analysis failed", "error", err, "id", id, "region_id", regionID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), Analysis{Code: req.Code, Name: req.Name, UnitID: req.UnitID})
	if err != nil {
		h.logger.Error("create analysis failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid analysis id")
		return
	}
	var req analysisRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	err = h.service.Update(r.Context(), id, Analysis{Code: req.Code, Name: req.Name, UnitID: req.UnitID})
	if err != nil {
		h.logger.Error("update analysis failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) ReplaceEntries(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid analysis id")
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
	entries := make([]CompositionEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		coeff, err := money.ParseQuantity(e.Coefficient)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid coefficient")
			return
		}
		entries = append(entries, CompositionEntry{
			AnalysisID:  id,
			ItemID:      e.ItemID,
			Category:    items.ItemCategory(e.Category),
			Coefficient: coeff,
		})
	}
	if err := h.service.ReplaceEntries(r.Context(), id, entries); err != nil {
		h.logger.Error("replace entries failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"replaced": len(entries)})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid analysis id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}
