package rollup

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

// MountRoutes registers under /projects/{id}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermProjectView, shared.PermProjectManage)).Get("/rollup", h.Show)
	r.With(h.rbac.RequireAny(shared.PermProjectView, shared.PermProjectManage)).Get("/rollup/export.csv", h.ExportCSV)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid project id")
		return
	}
	res, err := h.service.Rollup(r.Context(), projectID)
	if err != nil {
		h.logger.Error("rollup failed", "error", err, "project_id", projectID)
		httpx.RespondError(w, err)
		return
	}
	body := map[string]any{"data": res}
	if res.Incomplete {
		body["warnings"] = []string{"recalculation_incomplete"}
	}
	httpx.JSON(w, http.StatusOK, body)
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid project id")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="rollup-`+strconv.FormatInt(projectID, 10)+`.csv"`)
	if err := h.service.ExportCSV(r.Context(), projectID, w); err != nil {
		h.logger.Error("rollup export failed", "error", err, "project_id", projectID)
	}
}
