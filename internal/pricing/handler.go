package pricing

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

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

// MountRoutes registers price routes. Region-scoped listing and creation
// live under /regions/{regionID}/prices, row mutations under /prices/{id}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/regions/{regionID}/prices", func(r chi.Router) {
		r.With(h.rbac.RequireAny(shared.PermPricingManage, shared.PermProjectView)).Get("/", h.ListByRegion)
		r.With(h.rbac.RequireAny(shared.PermPricingManage)).Post("/", h.Create)
	})
	r.Route("/prices", func(r chi.Router) {
		r.With(h.rbac.RequireAny(shared.PermPricingManage, shared.PermProjectView)).Get("/{id}", h.Show)
		r.With(h.rbac.RequireAny(shared.PermPricingManage)).Put("/{id}", h.Update)
		r.With(h.rbac.RequireAny(shared.PermPricingManage)).Delete("/{id}", h.Delete)
	})
}

type priceRequest struct {
	ItemID        int64   `json:"item_id" validate:"required,gt=0"`
	Amount        string  `json:"amount" validate:"required"`
	EffectiveFrom *string `json:"effective_from,omitempty"`
	EffectiveTo   *string `json:"effective_to,omitempty"`
	Active        *bool   `json:"active,omitempty"`
}

func (h *Handler) ListByRegion(w http.ResponseWriter, r *http.Request) {
	regionID, err := strconv.ParseInt(chi.URLParam(r, "regionID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid region id")
		return
	}
	prices, err := h.service.ListByRegion(r.Context(), regionID)
	if err != nil {
		h.logger.Error("list prices failed", "error", err, "region_id", regionID)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": prices})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid price id")
		return
	}
	price, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, price)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	regionID, err := strconv.ParseInt(chi.URLParam(r, "regionID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid region id")
		return
	}
	price, err := h.decodePrice(r, regionID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), price)
	if err != nil {
		h.logger.Error("create price failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid price id")
		return
	}
	existing, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	price, err := h.decodePrice(r, existing.RegionID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Update(r.Context(), id, price); err != nil {
		h.logger.Error("update price failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid price id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) decodePrice(r *http.Request, regionID int64) (ItemPrice, error) {
	var req priceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return ItemPrice{}, shared.ErrValidation
	}
	if err := httpx.Validate(req); err != nil {
		return ItemPrice{}, err
	}
	amount, err := money.ParseAmount(req.Amount)
	if err != nil {
		return ItemPrice{}, shared.ErrValidation
	}
	price := ItemPrice{
		ItemID:   req.ItemID,
		RegionID: regionID,
		Amount:   amount,
		Active:   true,
	}
	if req.Active != nil {
		price.Active = *req.Active
	}
	if price.EffectiveFrom, err = parseDate(req.EffectiveFrom); err != nil {
		return ItemPrice{}, err
	}
	if price.EffectiveTo, err = parseDate(req.EffectiveTo); err != nil {
		return ItemPrice{}, err
	}
	return price, nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, shared.ErrValidation
	}
	return &t, nil
}
