package handlers

import (
	"context"
	"net/http"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/dashboard"
)

type DashboardService interface {
	Stats(ctx context.Context, actor auth.Identity) (dashboard.Stats, error)
}

type DashboardHandler struct {
	*Pages
	service DashboardService
}

func NewDashboardHandler(pages *Pages, service DashboardService) *DashboardHandler {
	return &DashboardHandler{Pages: pages, service: service}
}

// Show handles GET /dashboard. Account counts are only gathered for
// administrators.
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page := h.page(r, "Dashboard", "dashboard")
	page.Data["Stats"] = stats
	h.html(w, r, http.StatusOK, "dashboard.html", page)
}
