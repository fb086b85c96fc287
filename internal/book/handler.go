package book

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/book/entity"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/httpx"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the book routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/books", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/books", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/books/search", h.Search).Methods(http.MethodGet)
	r.HandleFunc("/api/books/count", h.Count).Methods(http.MethodGet)
	r.HandleFunc("/api/books/isbn/{isbn}", h.GetByISBN).Methods(http.MethodGet)
	r.HandleFunc("/api/books/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/books/{id:[0-9]+}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/api/books/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/books/{id:[0-9]+}/status", h.ChangeStatus).Methods(http.MethodPatch)
}

// List returns the whole catalog, or the books in one status when
// ?status= is given.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var (
		books []*entity.Book
		err   error
	)
	if s := httpx.QueryString(r, "status"); s != nil {
		books, err = h.svc.FindByStatus(r.Context(), entity.Status(*s))
	} else {
		books, err = h.svc.List(r.Context())
	}
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, books)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	b, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) GetByISBN(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.FindByISBN(r.Context(), mux.Vars(r)["isbn"])
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var b entity.Book
	if err := httpx.DecodeJSON(r, &b); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	created, err := h.svc.Create(r.Context(), &b)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var b entity.Book
	if err := httpx.DecodeJSON(r, &b); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), id, &b)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
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

// Search accepts optional title, author and status query parameters.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var status *entity.Status
	if s := httpx.QueryString(r, "status"); s != nil {
		st := entity.Status(*s)
		if !st.Valid() {
			httpx.WriteError(w, h.logger, apperr.Invalid("status", "is unknown"))
			return
		}
		status = &st
	}
	books, err := h.svc.Search(r.Context(), httpx.QueryString(r, "title"), httpx.QueryString(r, "author"), status)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, books)
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

// StatusRequest is the body of PATCH /api/books/{id}/status.
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
	b, err := h.svc.ChangeStatus(r.Context(), id, req.Status)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}
