package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("B2B_TEST_BOOL", "off")
	t.Setenv("B2B_TEST_FLOAT", "0.25")
	t.Setenv("B2B_TEST_MS", "750")
	t.Setenv("B2B_TEST_BLANK", "   ")

	require.False(t, envBool("B2B_TEST_BOOL", true))
	require.True(t, envBool("B2B_TEST_MISSING", true))
	require.Equal(t, 0.25, envFloat("B2B_TEST_FLOAT", 1))
	require.Equal(t, 750*time.Millisecond, envDurationMillis("B2B_TEST_MS", 10))
	require.Equal(t, "fallback", envOrDefault("B2B_TEST_BLANK", "fallback"))
}

func TestProtectPprof(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	cases := []struct {
		name       string
		user, pass string
		reqUser    string
		reqPass    string
		withAuth   bool
		wantStatus int
	}{
		{name: "no credentials configured", wantStatus: http.StatusForbidden},
		{name: "missing basic auth", user: "ops", pass: "pw", wantStatus: http.StatusUnauthorized},
		{name: "wrong password", user: "ops", pass: "pw", reqUser: "ops", reqPass: "nope", withAuth: true, wantStatus: http.StatusUnauthorized},
		{name: "valid", user: "ops", pass: "pw", reqUser: "ops", reqPass: "pw", withAuth: true, wantStatus: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/debug/pprof/heap", nil)
			if tc.withAuth {
				req.SetBasicAuth(tc.reqUser, tc.reqPass)
			}
			rr := httptest.NewRecorder()
			protectPprof(inner, tc.user, tc.pass).ServeHTTP(rr, req)
			require.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}
