package loan

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/loan/entity"
)

// Handler exposes the loan desk over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the loan routes on r, including the per-user and
// per-book loan listings.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/loans", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/loans", h.Borrow).Methods(http.MethodPost)
	r.HandleFunc("/api/loans/active", h.listWith(h.svc.FindActive)).Methods(http.MethodGet)
	r.HandleFunc("/api/loans/overdue", h.listWith(h.svc.FindOverdue)).Methods(http.MethodGet)
	r.HandleFunc("/api/loans/due-soon", h.listWith(h.svc.FindDueSoon)).Methods(http.MethodGet)
	r.HandleFunc("/api/loans/stats", h.Stats).Methods(http.MethodGet)
	r.HandleFunc("/api/loans/count", h.Count).Methods(http.MethodGet)
	r.HandleFunc("/api/loans/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/loans/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/loans/{id:[0-9]+}/return", h.Return).Methods(http.MethodPut)
	r.HandleFunc("/api/loans/{id:[0-9]+}/renew", h.Renew).Methods(http.MethodPut)
	r.HandleFunc("/api/loans/{id:[0-9]+}/lost", h.MarkLost).Methods(http.MethodPut)
	r.HandleFunc("/api/loans/{id:[0-9]+}/cancel", h.Cancel).Methods(http.MethodPut)
	r.HandleFunc("/api/users/{id:[0-9]+}/loans", h.ByUser).Methods(http.MethodGet)
	r.HandleFunc("/api/books/{id:[0-9]+}/loans", h.ByBook).Methods(http.MethodGet)
}

// BorrowRequest is the body of POST /api/loans.
type BorrowRequest struct {
	UserID int64 `json:"userId"`
	BookID int64 `json:"bookId"`
}

// NotesRequest is the optional body of the closing operations.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// List returns every loan, or those in one status with ?status=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var (
		loans []*entity.Loan
		err   error
	)
	if s := httpx.QueryString(r, "status"); s != nil {
		loans, err = h.svc.FindByStatus(r.Context(), entity.Status(*s))
	} else {
		loans, err = h.svc.List(r.Context())
	}
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loans)
}

func (h *Handler) listWith(find func(context.Context) ([]*entity.Loan, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loans, err := find(r.Context())
		if err != nil {
			httpx.WriteError(w, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, loans)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	l, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if req.UserID <= 0 || req.BookID <= 0 {
		httpx.WriteError(w, h.logger, apperr.Invalid("userId/bookId", "are required"))
		return
	}
	l, err := h.svc.Borrow(r.Context(), req.UserID, req.BookID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	h.closeWith(w, r, h.svc.Return)
}

func (h *Handler) MarkLost(w http.ResponseWriter, r *http.Request) {
	h.closeWith(w, r, h.svc.MarkLost)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.closeWith(w, r, h.svc.Cancel)
}

func (h *Handler) closeWith(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, notes string) (*entity.Loan, error)) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req NotesRequest
	if err := httpx.DecodeOptionalJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	l, err := op(r.Context(), id, req.Notes)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) Renew(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	l, err := h.svc.Renew(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
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

func (h *Handler) ByUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	loans, err := h.svc.FindByUser(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loans)
}

func (h *Handler) ByBook(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	loans, err := h.svc.FindByBook(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loans)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Statistics(r.Context())
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	s := httpx.QueryString(r, "status")
	if s == nil {
		httpx.WriteError(w, h.logger, apperr.Invalid("status", "is required"))
		return
	}
	n, err := h.svc.CountByStatus(r.Context(), entity.Status(*s))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.CountResponse{Count: n})
}
