package http

import (
	"net/http"

	"github.com/entradalabs/entrada/internal/gateway/service"
	"github.com/entradalabs/entrada/pkg/httpx"
	"github.com/entradalabs/entrada/pkg/idx"
)

type NotificationsHandler struct {
	Notify *service.NotificationStore
}

func (h *NotificationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, h.Notify.List())
}

// HandleDismiss removes a notification ahead of its expiry. Dismissing an
// already-expired id succeeds; dismissal is idempotent.
func (h *NotificationsHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed notification id")
		return
	}

	h.Notify.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}
