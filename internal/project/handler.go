package project

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

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
	r.With(h.rbac.RequireAny(shared.PermProjectView, shared.PermProjectManage)).Get("/", h.List)
	r.With(h.rbac.RequireAny(shared.PermProjectView, shared.PermProjectManage)).Get("/{id}", h.Show)
	r.With(h.rbac.RequireAny(shared.PermProjectView, shared.PermProjectManage)).Get("/{id}/prices", h.SnapshotPrices)
	r.With(h.rbac.RequireAny(shared.PermProjectManage)).Post("/", h.Create)
	r.With(h.rbac.RequireAny(shared.PermProjectManage)).Put("/{id}", h.Update)
	r.With(h.rbac.RequireAny(shared.PermProjectManage)).Post("/{id}/status", h.UpdateStatus)
	r.With(h.rbac.RequireAny(shared.PermProjectManage)).Put("/{id}/prices/{itemID}", h.UpdateSnapshotPrice)
	r.With(h.rbac.RequireAny(shared.PermProjectRecalc, shared.PermProjectManage)).Post("/{id}/recalculate", h.Recalculate)
	r.With(h.rbac.RequireAny(shared.PermProjectManage)).Delete("/{id}", h.Delete)
}

type projectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	RegionID    int64  `json:"region_id" validate:"omitempty,gt=0"`
	OverheadPct string `json:"overhead_pct" validate:"required"`
	ProfitPct   string `json:"profit_pct" validate:"required"`
	TaxPct      string `json:"tax_pct" validate:"required"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft active completed cancelled"`
}

type snapshotPriceRequest struct {
	Amount string `json:"amount" validate:"required"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.ParseListFilters(r)
	projects, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list projects failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       projects,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := h.decodeProject(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if p.RegionID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "region_id is required")
		return
	}
	created, err := h.service.Create(r.Context(), p)
	if err != nil {
		h.logger.Error("create project failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	p, err := h.decodeProject(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Update(r.Context(), id, p); err != nil {
		h.logger.Error("update project failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.UpdateStatus(r.Context(), id, Status(req.Status)); err != nil {
		h.logger.Error("update project status failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": req.Status})
}

func (h *Handler) SnapshotPrices(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	prices, err := h.service.SnapshotPrices(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": prices})
}

func (h *Handler) UpdateSnapshotPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	var req snapshotPriceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	amount, err := money.ParseAmount(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid amount")
		return
	}
	if err := h.service.UpdateSnapshotPrice(r.Context(), id, itemID, amount); err != nil {
		h.logger.Error("update snapshot price failed", "error", err, "project_id", id, "item_id", itemID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	if err := h.service.Recalculate(r.Context(), id); err != nil {
		h.logger.Error("enqueue recalculation failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"enqueued": true})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid project id")
		return 0, false
	}
	return id, true
}

func (h *Handler) decodeProject(r *http.Request) (Project, error) {
	var req projectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return Project{}, shared.ErrValidation
	}
	if err := httpx.Validate(req); err != nil {
		return Project{}, err
	}
	overhead, err := parsePercent(req.OverheadPct)
	if err != nil {
		return Project{}, err
	}
	profit, err := parsePercent(req.ProfitPct)
	if err != nil {
		return Project{}, err
	}
	tax, err := parsePercent(req.TaxPct)
	if err != nil {
		return Project{}, err
	}
	return Project{
		Name:        req.Name,
		Description: req.Description,
		RegionID:    req.RegionID,
		OverheadPct: overhead,
		ProfitPct:   profit,
		TaxPct:      tax,
	}, nil
}

func parsePercent(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, shared.ErrValidation
	}
	if !money.ValidPercent(d) {
		return decimal.Zero, shared.ErrValidation
	}
	return d, nil
}
