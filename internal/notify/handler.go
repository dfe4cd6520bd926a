package notify

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"servicemarket/marketplace-service/internal/auth"
	"servicemarket/marketplace-service/internal/httpx"
)

// Handler serves the notification routes:
//
//	GET    /notifications               → newest first
//	GET    /notifications/unread        → unread only
//	GET    /notifications/unread/count  → {count}
//	PATCH  /notifications/{id}/read
//	PATCH  /notifications/read-all      → {updated}
//	DELETE /notifications/{id}
type Handler struct {
	svc *Service
}

// NewHandler returns a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the routes on r. Callers must be authenticated.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/notifications", h.list(false))
	r.Get("/notifications/unread", h.list(true))
	r.Get("/notifications/unread/count", h.unreadCount)
	r.Patch("/notifications/read-all", h.markAllRead)
	r.Patch("/notifications/{id}/read", h.markRead)
	r.Delete("/notifications/{id}", h.delete)
}

func (h *Handler) list(unreadOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := auth.MustFromContext(r.Context())
		ns, err := h.svc.List(r.Context(), id.UserID, unreadOnly)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.OK(w, ns)
	}
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	n, err := h.svc.UnreadCount(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, map[string]int{"count": n})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	n, err := h.svc.MarkRead(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, n)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	n, err := h.svc.MarkAllRead(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, map[string]int{"updated": n})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), id.UserID, chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, map[string]string{"message": "notification deleted"})
}
