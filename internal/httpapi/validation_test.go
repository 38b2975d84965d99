package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MessagingWebserver/internal/domain"
)

func TestValidateRegistration(t *testing.T) {
	cases := []struct {
		name     string
		username string
		password string
		fields   []string
	}{
		{"ok", "alice_01", "password1", nil},
		{"short username", "al", "password1", []string{"username"}},
		{"long username", strings.Repeat("a", 25), "password1", []string{"username"}},
		{"bad chars", "alice!", "password1", []string{"username"}},
		{"short password", "alice", "pw", []string{"password"}},
		{"long password", "alice", strings.Repeat("p", 300), []string{"password"}},
		{"both", "", "", []string{"username", "password"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateRegistration(tc.username, tc.password)
			if tc.fields == nil {
				require.NoError(t, err)
				return
			}
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Len(t, verr.Fields, len(tc.fields))
			for _, f := range tc.fields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "abc123", seen)
}

func TestRecovererWritesInternalError(t *testing.T) {
	h := Recoverer(nil, true)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal_error")
}
