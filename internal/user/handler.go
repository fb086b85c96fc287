package user

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/user/repo"
)

// Handler exposes HTTP endpoints for user accounts.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the user routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/users", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/users", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/users/search", h.Search).Methods(http.MethodGet)
	r.HandleFunc("/api/users/librarians", h.ActiveLibrarians).Methods(http.MethodGet)
	r.HandleFunc("/api/users/count", h.Count).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{id:[0-9]+}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/api/users/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/users/{id:[0-9]+}/status", h.ChangeStatus).Methods(http.MethodPatch)
	r.HandleFunc("/api/users/{id:[0-9]+}/promote", h.Promote).Methods(http.MethodPost)
}

// UserRequest is the create/update payload. Password is write-only.
type UserRequest struct {
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Email     string        `json:"email"`
	Password  string        `json:"password"`
	Phone     string        `json:"phone"`
	Address   string        `json:"address"`
	BirthDate *time.Time    `json:"birthDate"`
	Role      entity.Role   `json:"role"`
	Status    entity.Status `json:"status"`
}

func (req UserRequest) user() *entity.User {
	return &entity.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		BirthDate: req.BirthDate,
		Role:      req.Role,
		Status:    req.Status,
	}
}

// List returns all users, or only those with ?role= and/or ?status=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f := userrepo.Filter{}
	if v := httpx.QueryString(r, "role"); v != nil {
		role := entity.Role(*v)
		f.Role = &role
	}
	if v := httpx.QueryString(r, "status"); v != nil {
		status := entity.Status(*v)
		f.Status = &status
	}
	users, err := h.svc.Search(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.Create(r.Context(), req.user(), req.Password)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req UserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.Update(r.Context(), id, req.user(), req.Password)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search accepts optional firstName, lastName, role and status parameters.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	f := userrepo.Filter{
		FirstName: httpx.QueryString(r, "firstName"),
		LastName:  httpx.QueryString(r, "lastName"),
	}
	if v := httpx.QueryString(r, "role"); v != nil {
		role := entity.Role(*v)
		if !role.Valid() {
			httpx.WriteError(w, h.logger, apperr.Invalid("role", "is unknown"))
			return
		}
		f.Role = &role
	}
	if v := httpx.QueryString(r, "status"); v != nil {
		status := entity.Status(*v)
		if !status.Valid() {
			httpx.WriteError(w, h.logger, apperr.Invalid("status", "is unknown"))
			return
		}
		f.Status = &status
	}
	users, err := h.svc.Search(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) ActiveLibrarians(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.FindActiveLibrarians(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

// Count takes exactly one of ?role= or ?status=.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	var (
		n   int64
		err error
	)
	role, status := httpx.QueryString(r, "role"), httpx.QueryString(r, "status")
	switch {
	case role != nil && status == nil:
		n, err = h.svc.CountByRole(r.Context(), entity.Role(*role))
	case status != nil && role == nil:
		n, err = h.svc.CountByStatus(r.Context(), entity.Status(*status))
	default:
		err = apperr.Invalid("query", "needs exactly one of role or status")
	}
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.CountResponse{Count: n})
}

// StatusRequest is the body of PATCH /api/users/{id}/status.
type StatusRequest struct {
	Status entity.Status `json:"status"`
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.ChangeStatus(r.Context(), id, req.Status)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.PromoteToLibrarian(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}
