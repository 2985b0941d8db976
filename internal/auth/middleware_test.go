package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-b2b-orders/internal/accounts"
	"github.com/noah-isme/backend-b2b-orders/internal/common"
)

func tokenFor(t *testing.T, svc *Service, email string) string {
	t.Helper()
	res, err := svc.Login(context.Background(), LoginInput{Email: email, Password: "secret1"})
	require.NoError(t, err)
	return res.Token
}

func TestRequireRole(t *testing.T) {
	svc, _ := newTestService(t)
	mw := Middleware{Service: svc}

	var seen common.Principal
	protected := mw.RequireRole(accounts.RoleDistributor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong role", "Bearer " + tokenFor(t, svc, "sales@example.com"), http.StatusForbidden},
		{"allowed role", "bearer " + tokenFor(t, svc, "dist@example.com"), http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/distributor/get-orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			protected.ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code)
		})
	}
	require.Equal(t, accounts.RoleDistributor, seen.Role)
	require.Equal(t, int64(3), seen.AccountID)
}

func TestLoginAndMeHandlers(t *testing.T) {
	svc, _ := newTestService(t)
	h := &Handler{Service: svc}

	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"admin@example.com","password":"secret1"}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data LoginResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	require.Equal(t, User{ID: 1, Email: "admin@example.com", Role: accounts.RoleAdmin}, resp.Data.User)

	me := Middleware{Service: svc}.RequireAuth(http.HandlerFunc(h.Me))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Data.Token)
	rr = httptest.NewRecorder()
	me.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"role":"ADMIN"`)

	rr = httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"admin@example.com","password":"bad-password"}`)))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
