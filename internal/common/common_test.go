package common

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env.Error
}

func TestWriteErrorKeepsAppErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, Forbidden("order belongs to another distributor", errors.New("owner mismatch")))

	require.Equal(t, http.StatusForbidden, rr.Code)
	body := decodeError(t, rr)
	require.Equal(t, "FORBIDDEN", body.Code)
	require.Equal(t, "order belongs to another distributor", body.Message)
}

func TestWriteErrorHidesUnknownErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeError(t, rr)
	require.Equal(t, "INTERNAL", body.Code)
	require.NotContains(t, rr.Body.String(), "connection refused")
}

func TestAppErrorUnwraps(t *testing.T) {
	sentinel := errors.New("not there")
	err := NotFound("order", sentinel)
	require.ErrorIs(t, err, sentinel)
	require.True(t, IsAppError(err))
	require.Equal(t, "order not found", err.Message)
	require.False(t, IsAppError(sentinel))
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	var dst map[string]any
	err := DecodeJSON(req, &dst)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestValidatorReportsJSONFieldNames(t *testing.T) {
	type sample struct {
		Email string `json:"email" validate:"required,email"`
		Count int    `json:"count" validate:"gt=0"`
	}
	err := NewValidator().Struct(sample{})

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	require.Equal(t, []string{"email is required", "count must be greater than 0"}, appErr.Details)
}

func TestNilValidatorFallsBackToDefault(t *testing.T) {
	type sample struct {
		Phone string `json:"contactNumber" validate:"required,numeric,len=10"`
	}
	var v *Validator
	err := v.Struct(sample{Phone: "12345"})

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "contactNumber must be exactly 10 characters long", appErr.Message)
	require.NoError(t, v.Struct(sample{Phone: "9876543210"}))
}

func TestTimestampAcceptsDatesAndRFC3339(t *testing.T) {
	var payload struct {
		Due  Timestamp  `json:"due"`
		Next *Timestamp `json:"next"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"due":"2024-05-01","next":"2024-05-02T10:30:00+02:00"}`), &payload))
	require.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), payload.Due.Time)
	require.Equal(t, time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC), *TimePtr(payload.Next))

	require.Error(t, json.Unmarshal([]byte(`{"due":"tomorrow"}`), &payload))
	require.Nil(t, TimePtr(nil))
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)
	page := ParsePagination(req, 20, 100)
	require.Equal(t, Page{Number: 3, PerPage: 100}, page)
	require.Equal(t, 200, page.Offset())
	require.Equal(t, Pagination{Page: 3, PerPage: 100, TotalItems: 7}, page.Meta(7))

	page = ParsePagination(httptest.NewRequest(http.MethodGet, "/?page=-1&limit=x", nil), 20, 100)
	require.Equal(t, Page{Number: 1, PerPage: 20}, page)
	require.Zero(t, page.Offset())
}

func TestURLParamID(t *testing.T) {
	r := chi.NewRouter()
	var got int64
	r.Get("/orders/{orderId}", func(w http.ResponseWriter, req *http.Request) {
		id, ok := URLParamID(w, req, "orderId")
		if ok {
			got = id
			w.WriteHeader(http.StatusOK)
		}
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/42", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, int64(42), got)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPrincipalSlotObservesInnerAuthentication(t *testing.T) {
	ctx, slot := WithPrincipalSlot(context.Background())
	_, ok := PrincipalFrom(ctx)
	require.False(t, ok)

	inner := WithPrincipal(ctx, Principal{AccountID: 9, Email: "d@example.com", Role: "DISTRIBUTOR"})
	id, ok := AccountID(inner)
	require.True(t, ok)
	require.Equal(t, int64(9), id)
	require.Equal(t, "DISTRIBUTOR", slot.Role)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5000"
	require.Equal(t, "192.0.2.10", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.4, 10.0.0.1")
	require.Equal(t, "192.0.2.10", ClientIP(req))

	req.RemoteAddr = "unix-socket"
	require.Equal(t, "unix-socket", ClientIP(req))
}

func TestIdempotencyMiddlewareRejectsReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	handler := Idem{R: client, TTL: time.Hour}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(key string, account int64) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/salesperson/create-order", nil)
		req.Header.Set("Idempotency-Key", key)
		req = req.WithContext(WithPrincipal(req.Context(), Principal{AccountID: account, Role: "SALESPERSON"}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusCreated, send("k-1", 2))
	require.Equal(t, http.StatusConflict, send("k-1", 2))
	require.Equal(t, http.StatusCreated, send("k-1", 3))
	require.Equal(t, 2, calls)
}

func TestIdempotencyMiddlewareReleasesKeyOnFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	statuses := []int{http.StatusBadRequest, http.StatusCreated}
	calls := 0
	handler := Idem{R: client, TTL: time.Hour}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		JSON(w, statuses[calls], map[string]any{})
		calls++
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/salesperson/create-order", nil)
		req.Header.Set("Idempotency-Key", "retry-1")
		req = req.WithContext(WithPrincipal(req.Context(), Principal{AccountID: 2, Role: "SALESPERSON"}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusBadRequest, send())
	require.Len(t, mr.Keys(), 0)
	require.Equal(t, http.StatusCreated, send())
	require.Equal(t, http.StatusConflict, send())
	require.Equal(t, 2, calls)
	require.Len(t, mr.Keys(), 1)
}

func TestIdempotencyMiddlewarePassesThroughWithoutKey(t *testing.T) {
	calls := 0
	handler := Idem{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { calls++ }))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, 2, calls)
}
