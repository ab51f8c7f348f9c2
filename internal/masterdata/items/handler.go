package items

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

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
	r.With(h.rbac.RequireAny(shared.PermMasterdataManage, shared.PermProjectView)).Get("/", h.List)
	r.With(h.rbac.RequireAny(shared.PermMasterdataManage, shared.PermProjectView)).Get("/{id}", h.Show)
	r.With(h.rbac.RequireAny(shared.PermMasterdataManage)).Post("/", h.Create)
	r.With(h.rbac.RequireAny(shared.PermMasterdataManage)).Put("/{id}", h.Update)
	r.With(h.rbac.RequireAny(shared.PermMasterdataManage)).Delete("/{id}", h.Delete)
}

type itemRequest struct {
	Code     string `json:"code" validate:"required,max=30"`
	Name     string `json:"name" validate:"required,max=150"`
	Category string `json:"category" validate:"required,oneof=material labor equipment"`
	UnitID   int64  `json:"unit_id" validate:"required,gt=0"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{
		ListFilters: shared.ParseListFilters(r),
		Category:    ItemCategory(r.URL.Query().Get("category")),
	}
	if filters.Category != "" && !filters.Category.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown item category")
		return
	}
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list items failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), Item{
		Code:     req.Code,
		Name:     req.Name,
		Category: ItemCategory(req.Category),
		UnitID:   req.UnitID,
	})
	if err != nil {
		h.logger.Error("create item failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	err = h.service.Update(r.Context(), id, Item{
		Code:     req.Code,
		Name:     req.Name,
		Category: ItemCategory(req.Category),
		UnitID:   req.UnitID,
	})
	if err != nil {
		h.logger.Error("update item failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}
