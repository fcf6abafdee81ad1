package server

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signToken builds a token with the given subject and expiry and signs it
// with key, bypassing createAuthToken.
func signToken(t *testing.T, key jwk.Key, subject string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().
		Subject(subject).
		Issuer("pricewatch").
		IssuedAt(time.Now()).
		Expiration(exp).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, key))
	require.NoError(t, err)
	return string(signed)
}

func TestServer_AuthMw(t *testing.T) {
	t.Parallel()

	s := testServer(t)

	otherKey, err := jwk.FromRaw([]byte("another-key-entirely-0123456789a"))
	require.NoError(t, err)

	valid, err := s.createAuthToken()
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantCode   int
	}{
		{
			name:       "valid admin token",
			authHeader: "Bearer " + valid,
			wantCode:   http.StatusNoContent,
		},
		{
			name:       "missing header",
			authHeader: "",
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "not a bearer header",
			authHeader: "Basic YWRtaW46aHVudGVyMg==",
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "garbage token",
			authHeader: "Bearer not.a.token",
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "valid token with wrong subject",
			authHeader: "Bearer " + signToken(t, s.AuthSecretKey, "someone", time.Now().Add(time.Hour)),
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "token signed with another key",
			authHeader: "Bearer " + signToken(t, otherKey, "admin", time.Now().Add(time.Hour)),
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			authHeader: "Bearer " + signToken(t, s.AuthSecretKey, "admin", time.Now().Add(-time.Hour)),
			wantCode:   http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var nextCalls int32
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&nextCalls, 1)
				w.WriteHeader(http.StatusNoContent)
			})

			r := httptest.NewRequest(http.MethodGet, "/products", nil)
			if tt.authHeader != "" {
				r.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			s.authMw(next).ServeHTTP(rec, r)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusNoContent {
				assert.EqualValues(t, 1, atomic.LoadInt32(&nextCalls))
			} else {
				assert.Zero(t, atomic.LoadInt32(&nextCalls), "rejected requests must not reach the handler")
			}
		})
	}
}

func TestServer_LoggingMw_RecoversPanic(t *testing.T) {
	t.Parallel()

	s := testServer(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})

	r := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()
	s.loggingMw(next).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
