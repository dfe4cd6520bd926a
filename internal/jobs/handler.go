package jobs

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"servicemarket/marketplace-service/internal/auth"
	"servicemarket/marketplace-service/internal/httpx"
	"servicemarket/marketplace-service/internal/model"
)

// Handler serves the job routes. All routes expect an authenticated caller.
//
//	GET    /jobs                          → listing (?category=&status=&sort=)
//	POST   /jobs                          → post a job
//	GET    /jobs/{id}
//	PATCH  /jobs/{id}/status              → {status}
//	DELETE /jobs/{id}
//	POST   /jobs/{id}/apply               → {message?}
//	GET    /jobs/{id}/applications
//	GET    /jobs/{id}/application-status
//	POST   /jobs/{id}/select-provider     → {applicationId}
//	DELETE /applications/{id}             → withdraw
type Handler struct {
	svc *Service
}

// NewHandler returns a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

var (
	posters   = []model.Role{model.RoleRequester, model.RoleCompany, model.RoleAdmin}
	providers = []model.Role{model.RoleProvider, model.RoleCompany}
)

// Routes mounts the routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/jobs", h.list)
	r.With(auth.RequireRole(posters...)).Post("/jobs", h.create)
	r.Get("/jobs/{id}", h.get)
	r.Patch("/jobs/{id}/status", h.updateStatus)
	r.With(auth.RequireRole(posters...)).Delete("/jobs/{id}", h.delete)

	r.With(auth.RequireRole(providers...)).Post("/jobs/{id}/apply", h.apply)
	r.Get("/jobs/{id}/applications", h.applications)
	r.With(auth.RequireRole(providers...)).Get("/jobs/{id}/application-status", h.applicationStatus)
	r.With(auth.RequireRole(posters...)).Post("/jobs/{id}/select-provider", h.selectProvider)
	r.With(auth.RequireRole(providers...)).Delete("/applications/{id}", h.withdraw)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	q := r.URL.Query()
	jobs, err := h.svc.ListJobs(r.Context(), id, ListQuery{
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Sort:     q.Get("sort"),
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, jobs)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	var in CreateInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	job, err := h.svc.CreateJob(r.Context(), id, in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, job)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	job, err := h.svc.GetJob(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, job)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	var req statusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	job, err := h.svc.UpdateStatus(r.Context(), id, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, job)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	if err := h.svc.DeleteJob(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, map[string]string{"message": "job deleted"})
}

type applyRequest struct {
	Message *string `json:"message"`
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	var req applyRequest
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
	}
	app, err := h.svc.Apply(r.Context(), id, chi.URLParam(r, "id"), req.Message)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, app)
}

func (h *Handler) applications(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	apps, err := h.svc.Applications(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, apps)
}

func (h *Handler) applicationStatus(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	st, err := h.svc.ApplicationStatusFor(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, st)
}

type selectRequest struct {
	ApplicationID string `json:"applicationId"`
}

func (h *Handler) selectProvider(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	var req selectRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	job, err := h.svc.SelectProvider(r.Context(), id, chi.URLParam(r, "id"), req.ApplicationID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, job)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	if err := h.svc.Withdraw(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.OK(w, map[string]string{"message": "application withdrawn"})
}
