package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/obs"
)

type stubStore struct {
	entries  []Entry
	page     common.Page
	total    int
	failList bool
}

func (s *stubStore) Insert(_ context.Context, e Entry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubStore) List(_ context.Context, page common.Page) ([]Entry, int, error) {
	s.page = page
	if s.failList {
		return nil, 0, errors.New("db down")
	}
	return s.entries, s.total, nil
}

func TestServiceRecord(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 1}

	req := httptest.NewRequest(http.MethodPut, "https://api.test/api/v1/admin/distributor/9?dry=1", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/admin/distributor/{id}"))

	err := svc.Record(req.Context(), Actor{AccountID: 1, Role: "ADMIN"}, "", "", "9", req, http.StatusOK, nil)
	require.NoError(t, err)
	require.Len(t, store.entries, 1)

	e := store.entries[0]
	require.NotNil(t, e.ActorID)
	require.Equal(t, int64(1), *e.ActorID)
	require.Equal(t, "ADMIN", e.ActorRole)
	require.Equal(t, "PUT /api/v1/admin/distributor/{id}", e.Action)
	require.Equal(t, "admin.distributor", e.ResourceType)
	require.Equal(t, "9", e.ResourceID)
	require.Equal(t, "10.0.0.2", e.IP)
	require.Equal(t, "req-123", e.RequestID)
	require.Equal(t, "tester", e.UserAgent)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(e.Metadata, &meta))
	require.Equal(t, "dry=1", meta["query"])
}

func TestServiceRecordAnonymousHasNoActorID(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/signup", nil)

	require.NoError(t, svc.Record(req.Context(), Actor{}, "admin.signup", "", "", req, http.StatusCreated, nil))
	require.Len(t, store.entries, 1)
	require.Nil(t, store.entries[0].ActorID)
	require.Equal(t, "admin.signup", store.entries[0].Action)
	require.Equal(t, "admin.signup", store.entries[0].ResourceType)
	require.JSONEq(t, `{}`, string(store.entries[0].Metadata))
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: false}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{}, "", "", "", req, http.StatusOK, nil))
	require.Empty(t, store.entries)
}

func TestServiceRecordSampledOut(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 0.5, Sample: func() float64 { return 0.9 }}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{}, "", "", "", req, http.StatusOK, nil))
	require.Empty(t, store.entries)
}

func TestRecorderMiddlewareCapturesStatusAndPrincipal(t *testing.T) {
	store := &stubStore{}
	recorder := HTTPRecorder{Service: &Service{Store: store, Enabled: true}}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(common.WithPrincipal(req.Context(), common.Principal{AccountID: 4, Role: "ADMIN"})))
		})
	})
	r.With(recorder.Middleware(HTTPConfig{ResourceType: "product", ResourceIDParam: "id"})).
		Delete("/admin/product/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/admin/product/12", nil))

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Len(t, store.entries, 1)
	e := store.entries[0]
	require.Equal(t, http.StatusNoContent, e.Status)
	require.Equal(t, "product", e.ResourceType)
	require.Equal(t, "12", e.ResourceID)
	require.NotNil(t, e.ActorID)
	require.Equal(t, int64(4), *e.ActorID)
}

func TestRecorderMiddlewareReadsPrincipalSetDownstream(t *testing.T) {
	store := &stubStore{}
	recorder := HTTPRecorder{Service: &Service{Store: store, Enabled: true}}

	handler := recorder.Middleware(HTTPConfig{})(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		common.WithPrincipal(req.Context(), common.Principal{AccountID: 7, Role: "ADMIN"})
		w.WriteHeader(http.StatusCreated)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/admin/create-category", nil))

	require.Len(t, store.entries, 1)
	require.NotNil(t, store.entries[0].ActorID)
	require.Equal(t, int64(7), *store.entries[0].ActorID)
	require.Equal(t, "admin.create-category", store.entries[0].ResourceType)
}

func TestRecorderMiddlewareReportsStoreErrors(t *testing.T) {
	var reported error
	recorder := HTTPRecorder{Service: &Service{Enabled: true}, OnError: func(err error) { reported = err }}
	handler := recorder.Middleware(HTTPConfig{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	require.Error(t, reported)
}

func TestHandlerList(t *testing.T) {
	store := &stubStore{entries: []Entry{{Action: "TEST", Method: "GET"}}, total: 31}
	h := Handler{Store: store}

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/admin/audit-logs?page=2&limit=10", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 2, store.page.Number)
	require.Equal(t, 10, store.page.PerPage)
	require.Equal(t, "31", rr.Header().Get("X-Total-Count"))

	var payload struct {
		Items      []Entry           `json:"items"`
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Len(t, payload.Items, 1)
	require.Equal(t, 31, payload.Pagination.TotalItems)
}

func TestHandlerListFailure(t *testing.T) {
	h := Handler{Store: &stubStore{failList: true}}
	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
