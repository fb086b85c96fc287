package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/book"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/loan"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/store/storetest"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	clock   *clockwork.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := storetest.NewSQLite(t)
	clock := clockwork.NewFakeClockAt(storetest.Epoch)
	logger := zaptest.NewLogger(t).Sugar()
	users := user.NewService(db, user.BcryptHasher{Cost: bcrypt.MinCost}, clock, logger)
	svc := Services{
		Books: book.NewService(db, clock, logger),
		Users: users,
		Loans: loan.NewService(db, loan.DefaultPolicy(), clock, logger),
		Auth:  auth.NewService(users, auth.StubIssuer{}, logger),
	}
	return &testServer{t: t, handler: RegisterRoutes(logger, svc), clock: clock}
}

// do sends body as JSON and decodes the response into out when non-nil.
func (s *testServer) do(method, path string, body any, out any, headers ...string) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

type idResp struct {
	ID     int64    `json:"id"`
	Status string   `json:"status"`
	Fee    *float64 `json:"fee"`
}

func bookBody(isbn string) map[string]any {
	return map[string]any{
		"title":           "Dune",
		"author":          "Frank Herbert",
		"publicationYear": 1965,
		"isbn":            isbn,
		"pageCount":       412,
	}
}

func userBody(email string) map[string]any {
	return map[string]any{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     email,
		"password":  "pw",
	}
}

func TestHealthAndHeaders(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 27, "generated KSUID")

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/nothing", nil, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, s.do(http.MethodPatch, "/api/books", nil, nil))
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	var b, u idResp
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/books", bookBody("9780000000001"), &b))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/users", userBody("ada@example.com"), &u))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing book", http.MethodGet, "/api/books/999", nil, http.StatusNotFound},
		{"update missing book", http.MethodPut, "/api/books/999", bookBody("9780000000002"), http.StatusNotFound},
		{"delete missing user", http.MethodDelete, "/api/users/999", nil, http.StatusNotFound},
		{"duplicate isbn", http.MethodPost, "/api/books", bookBody("9780000000001"), http.StatusConflict},
		{"duplicate email", http.MethodPost, "/api/users", userBody("ADA@example.com"), http.StatusConflict},
		{"invalid isbn", http.MethodPost, "/api/books", bookBody("123"), http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/books", "{", http.StatusBadRequest},
		{"borrow unknown book", http.MethodPost, "/api/loans", map[string]int64{"userId": u.ID, "bookId": 999}, http.StatusNotFound},
		{"return missing loan", http.MethodPut, "/api/loans/999/return", map[string]string{"notes": "x"}, http.StatusNotFound},
		{"me without token", http.MethodGet, "/api/auth/me", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e struct {
				Error string `json:"error"`
			}
			assert.Equal(t, tt.want, s.do(tt.method, tt.path, tt.body, &e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestLoanFlow(t *testing.T) {
	s := newTestServer(t)
	var u idResp
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/users", userBody("ada@example.com"), &u))
	books := make([]idResp, 4)
	for i := range books {
		isbn := []string{"9780000000001", "9780000000002", "9780000000003", "9780000000004"}[i]
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/books", bookBody(isbn), &books[i]))
	}

	var l idResp
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/loans", map[string]int64{"userId": u.ID, "bookId": books[0].ID}, &l))
	assert.Equal(t, "ACTIVE", l.Status)

	var got idResp
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/books/"+itoa(books[0].ID), nil, &got))
	assert.Equal(t, "LOANED", got.Status)

	var e struct {
		Error string `json:"error"`
	}
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/loans", map[string]int64{"userId": u.ID, "bookId": books[0].ID}, &e))
	assert.Contains(t, e.Error, "book not available")

	for _, b := range books[1:3] {
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/loans", map[string]int64{"userId": u.ID, "bookId": b.ID}, nil))
	}
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/loans", map[string]int64{"userId": u.ID, "bookId": books[3].ID}, &e))
	assert.Contains(t, e.Error, "limit exceeded")

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodDelete, "/api/books/"+itoa(books[0].ID), nil, nil), "book on loan")

	s.clock.Advance(19 * 24 * time.Hour)
	var overdue []idResp
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/loans/overdue", nil, &overdue))
	assert.Len(t, overdue, 3)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/loans/"+itoa(l.ID)+"/renew", nil, nil), "overdue renew")

	var returned idResp
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/loans/"+itoa(l.ID)+"/return", map[string]string{"notes": "late"}, &returned))
	assert.Equal(t, "RETURNED", returned.Status)
	require.NotNil(t, returned.Fee)
	assert.Equal(t, 4.0, *returned.Fee)

	var stats struct {
		ByStatus map[string]int64 `json:"byStatus"`
		Total    int64            `json:"total"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/loans/stats", nil, &stats))
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.ByStatus["OVERDUE"])
	assert.EqualValues(t, 1, stats.ByStatus["RETURNED"])

	var byUser []idResp
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/users/"+itoa(u.ID)+"/loans", nil, &byUser))
	assert.Len(t, byUser, 3)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/books/999/loans", nil, nil))
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	var u idResp
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/auth/register", userBody("ada@example.com"), &u))

	var login struct {
		Token     string `json:"token"`
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		Role      string `json:"role"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "pw"}, &login))
	assert.Equal(t, "Bearer_"+itoa(u.ID), login.Token)
	assert.Equal(t, "PATRON", login.Role)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "bad"}, nil))

	var me struct {
		ID           int64  `json:"id"`
		Email        string `json:"email"`
		PasswordHash string `json:"passwordHash"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/auth/me", nil, &me, "Authorization", login.Token))
	assert.Equal(t, u.ID, me.ID)
	assert.Empty(t, me.PasswordHash, "hash never leaves the server")

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/auth/me", nil, nil, "Authorization", "Bearer "+login.Token))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", nil, nil, "Authorization", "Bearer_999"))
}

func TestUserAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	var u idResp
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/users", userBody("ada@example.com"), &u))

	var promoted struct {
		Role string `json:"role"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/users/"+itoa(u.ID)+"/promote", nil, &promoted))
	assert.Equal(t, "LIBRARIAN", promoted.Role)

	var changed idResp
	require.Equal(t, http.StatusOK, s.do(http.MethodPatch, "/api/users/"+itoa(u.ID)+"/status", map[string]string{"status": "SUSPENDED"}, &changed))
	assert.Equal(t, "SUSPENDED", changed.Status)

	var found []idResp
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/users/search?lastName=love&status=SUSPENDED", nil, &found))
	assert.Len(t, found, 1)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/users/search?role=ADMIN", nil, nil))

	var count struct {
		Count int64 `json:"count"`
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/users/count?role=LIBRARIAN", nil, &count))
	assert.EqualValues(t, 1, count.Count)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/users/"+itoa(u.ID), nil, nil))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestCloseLoanWithoutBody(t *testing.T) {
	s := newTestServer(t)
	var u, b, l idResp
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/users", userBody("ada@example.com"), &u))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/books", bookBody("9780000000001"), &b))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/loans", map[string]int64{"userId": u.ID, "bookId": b.ID}, &l))

	// an empty reader of unknown length arrives like a chunked body
	req := httptest.NewRequest(http.MethodPut, "/api/loans/"+itoa(l.ID)+"/cancel", io.MultiReader())
	require.EqualValues(t, -1, req.ContentLength)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got idResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "CANCELLED", got.Status)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/books/"+itoa(b.ID), nil, &got))
	assert.Equal(t, "AVAILABLE", got.Status)
}
