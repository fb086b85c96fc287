package httpx

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
)

type notes struct {
	Notes string `json:"notes"`
}

func TestDecodeOptionalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    io.Reader
		want    string
		invalid bool
	}{
		{"no body", nil, "", false},
		{"empty chunked body", io.MultiReader(), "", false},
		{"whitespace only", io.MultiReader(strings.NewReader("  \n")), "", false},
		{"notes", strings.NewReader(`{"notes":"late"}`), "late", false},
		{"garbage", strings.NewReader(`{notes`), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPut, "/api/loans/1/cancel", tt.body)
			var got notes
			err := DecodeOptionalJSON(r, &got)
			if tt.invalid {
				assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Notes)
		})
	}
}

func TestDecodeJSON_RejectsEmptyBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/loans", strings.NewReader(""))
	var got notes
	assert.True(t, errors.Is(DecodeJSON(r, &got), apperr.ErrValidation))
}

func TestQueryString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/books/search?title=dune&author=", nil)
	require.NotNil(t, QueryString(r, "title"))
	assert.Equal(t, "dune", *QueryString(r, "title"))
	assert.Nil(t, QueryString(r, "author"))
	assert.Nil(t, QueryString(r, "status"))
}
