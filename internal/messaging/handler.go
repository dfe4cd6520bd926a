package messaging

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"servicemarket/marketplace-service/internal/auth"
	"servicemarket/marketplace-service/internal/httpx"
	"servicemarket/marketplace-service/internal/model"
)

// Handler serves the messaging routes:
//
//	GET  /messages                       → everything sent or received
//	POST /messages                       → send (job or admin message)
//	GET  /messages/conversations         → grouped threads
//	GET  /messages/unread/count          → {count}
//	GET  /messages/admin-chat            → admin thread (?userId= for admins)
//	POST /messages/admin-chat            → send to admin chat
//	POST /messages/admin-chat/read-all   → {updated}
//	GET  /messages/{jobId}               → job thread, marks it read
type Handler struct {
	svc *Service
}

// NewHandler returns a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the routes on r. Callers must be authenticated.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/messages", h.listAll)
	r.Post("/messages", h.send)
	r.Get("/messages/conversations", h.conversations)
	r.Get("/messages/unread/count", h.unreadCount)
	r.Get("/messages/admin-chat", h.adminChat)
	r.Post("/messages/admin-chat", h.sendAdminChat)
	r.Post("/messages/admin-chat/read-all", h.readAllAdminChat)
	r.Get("/messages/{jobId}", h.jobThread)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	msgs, err := h.svc.ListAll(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, msgs)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	var in model.MessageInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	msg, err := h.svc.SendMessage(r.Context(), id.UserID, in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, msg)
}

func (h *Handler) conversations(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	convs, err := h.svc.Conversations(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, convs)
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

func (h *Handler) adminChat(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	msgs, err := h.svc.AdminChat(r.Context(), id, r.URL.Query().Get("userId"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, msgs)
}

type adminChatRequest struct {
	Text       string  `json:"text"`
	ReceiverID *string `json:"receiverId"`
}

func (h *Handler) sendAdminChat(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	var req adminChatRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	msg, err := h.svc.SendAdminChat(r.Context(), id, req.Text, req.ReceiverID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, msg)
}

func (h *Handler) readAllAdminChat(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	n, err := h.svc.ReadAllAdminChat(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, map[string]int{"updated": n})
}

func (h *Handler) jobThread(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	msgs, err := h.svc.ListForJob(r.Context(), id, chi.URLParam(r, "jobId"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, msgs)
}
