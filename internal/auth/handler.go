package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user/entity"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the auth routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/register", h.Signup).Methods(http.MethodPost)
	r.Handle("/api/auth/me", h.RequireUser(http.HandlerFunc(h.Me))).Methods(http.MethodGet)
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req user.UserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.Register(r.Context(), &entity.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		BirthDate: req.BirthDate,
	}, req.Password)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, UserFromContext(r.Context()))
}

type ctxKey struct{}

// UserFromContext returns the user RequireUser resolved, or nil.
func UserFromContext(ctx context.Context) *entity.User {
	u, _ := ctx.Value(ctxKey{}).(*entity.User)
	return u
}

// RequireUser rejects requests without a valid Authorization header. Both
// "Authorization: <token>" and "Authorization: Bearer <token>" are accepted.
func (h *Handler) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("Authorization"))
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
		if token == "" {
			httpx.WriteError(w, h.logger, apperr.Unauthorized("missing token"))
			return
		}
		u, err := h.svc.ValidateToken(r.Context(), token)
		if err != nil {
			httpx.WriteError(w, h.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}
