package http

import (
	"net/http"

	"github.com/entradalabs/entrada/internal/gateway/domain"
	"github.com/entradalabs/entrada/internal/gateway/service"
	"github.com/entradalabs/entrada/pkg/httpx"
)

type LayoutHandler struct {
	Admin  *service.Layout
	Client *service.Layout
}

type layoutResponse struct {
	Variant          service.LayoutVariant   `json:"variant"`
	Config           service.LayoutConfig    `json:"config"`
	LayoutClasses    string                  `json:"layout_classes"`
	ContainerClasses string                  `json:"container_classes"`
	Navigation       []domain.NavigationItem `json:"navigation"`
}

// HandleGet returns the layout descriptor for a variant. Navigation is
// filtered by the caller's privilege at render time; an anonymous request
// for the admin variant yields an empty tree, not an error.
func (h *LayoutHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	var layout *service.Layout
	switch service.LayoutVariant(r.PathValue("variant")) {
	case service.LayoutAdmin:
		layout = h.Admin
	case service.LayoutClient:
		layout = h.Client
	default:
		httpx.WriteError(w, http.StatusNotFound, "not_found", "unknown layout variant")
		return
	}

	snap := snapshotFromContext(r.Context())
	httpx.WriteJSON(w, http.StatusOK, layoutResponse{
		Variant:          layout.Variant(),
		Config:           layout.Config(),
		LayoutClasses:    layout.LayoutClasses(),
		ContainerClasses: layout.ContainerClasses(),
		Navigation:       layout.NavigationFor(snap.IsAdmin),
	})
}
