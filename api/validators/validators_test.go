package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/gearshare-backend/pkg/errors"
	"github.com/angelmondragon/gearshare-backend/pkg/pagination"
)

type createRequest struct {
	OwnerID   string `json:"owner_id" validate:"required,uuid"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	Total     int64  `json:"total_price_cents" validate:"gte=0"`
}

func TestDecodeJSONBody(t *testing.T) {
	body := `{"owner_id":"` + uuid.NewString() + `","start_date":"2026-05-01","total_price_cents":100}`
	var dest createRequest
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	require.NoError(t, DecodeJSONBody(req, &dest))
	assert.Equal(t, int64(100), dest.Total)
}

func TestDecodeJSONBodyRejects(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"owner_id":"x","nope":1}`,
		"malformed":     `{"owner_id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var dest createRequest
			err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dest)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	body := `{"owner_id":"not-a-uuid","start_date":"05/01/2026","total_price_cents":-1}`
	var dest createRequest
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dest)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid UUID", details["owner_id"])
	assert.Equal(t, "must match layout 2006-01-02", details["start_date"])
	assert.Equal(t, "must be at least 0", details["total_price_cents"])
}

func TestParsePagination(t *testing.T) {
	params, err := ParsePagination(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, pagination.DefaultLimit, params.Limit)

	_, err = ParsePagination(httptest.NewRequest(http.MethodGet, "/?limit=1000", nil))
	require.Error(t, err)

	_, err = ParsePagination(httptest.NewRequest(http.MethodGet, "/?cursor=%25%25", nil))
	require.Error(t, err)
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("bookingId", value)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	got, err := ParseUUIDParam(withParam(id.String()), "bookingId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(withParam("abc"), "bookingId")
	require.Error(t, err)
	_, err = ParseUUIDParam(withParam(uuid.Nil.String()), "bookingId")
	require.Error(t, err)
}

func TestParseDate(t *testing.T) {
	day, err := ParseDate("2026-02-28", "start")
	require.NoError(t, err)
	assert.Equal(t, 28, day.Day())

	_, err = ParseDate("2026-02-30", "start")
	require.Error(t, err)
}
