package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildToken(t *testing.T, issuer string, issuedAt, notBefore, expiry time.Time, claims map[string]any) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer(issuer).
		Audience([]string{"aud"}).
		Subject("7").
		IssuedAt(issuedAt).
		NotBefore(notBefore).
		Expiration(expiry)
	for k, v := range claims {
		b = b.Claim(k, v)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func TestTokenValidatorValidateSuccess(t *testing.T) {
	now := time.Now()
	tok := buildToken(t, "issuer", now, now, now.Add(time.Minute), map[string]any{"role": "ADMIN"})
	v := TokenValidator{Issuer: "issuer", Audience: "aud", ClockSkew: time.Second, Algorithm: jwa.HS256, RequiredClaims: []string{"role"}}
	require.NoError(t, v.Validate(tok, jwa.HS256, now))
}

func TestTokenValidatorRejects(t *testing.T) {
	now := time.Now()
	base := TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256}
	withRole := base
	withRole.RequiredClaims = []string{"role"}

	cases := []struct {
		name      string
		validator TokenValidator
		token     jwt.Token
		alg       jwa.SignatureAlgorithm
	}{
		{"issuer mismatch", base, buildToken(t, "other", now, now, now.Add(time.Minute), nil), jwa.HS256},
		{"expired", base, buildToken(t, "issuer", now.Add(-2*time.Hour), now.Add(-2*time.Hour), now.Add(-time.Minute), nil), jwa.HS256},
		{"not yet valid", base, buildToken(t, "issuer", now, now.Add(5*time.Minute), now.Add(10*time.Minute), nil), jwa.HS256},
		{"algorithm mismatch", base, buildToken(t, "issuer", now, now, now.Add(time.Minute), nil), jwa.RS256},
		{"missing role", withRole, buildToken(t, "issuer", now, now, now.Add(time.Minute), nil), jwa.HS256},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.validator.Validate(tc.token, tc.alg, now))
		})
	}
}
