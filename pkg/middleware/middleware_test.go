package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Astemirdum/book-library/pkg/auth"
	md "github.com/Astemirdum/book-library/pkg/middleware"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func newEcho(t *testing.T) (*echo.Echo, *auth.Issuer) {
	t.Helper()
	iss, err := auth.NewIssuer(auth.Config{Secret: "secret"})
	require.NoError(t, err)

	e := echo.New()
	whoami := func(c echo.Context) error {
		name, err := auth.GetUserName(c.Request().Context())
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, name)
	}
	e.GET("/me", whoami, md.JwtAuthentication(iss))
	e.DELETE("/books", whoami, md.JwtAuthentication(iss), md.RequireRole(auth.RoleLibrarian))
	return e, iss
}

func TestJwtAuthentication(t *testing.T) {
	t.Parallel()
	e, iss := newEcho(t)
	token, _, err := iss.Issue("alice", auth.RoleMember)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "ok", header: "Bearer " + token, wantCode: http.StatusOK, wantBody: "alice"},
		{name: "lowercase scheme", header: "bearer " + token, wantCode: http.StatusOK, wantBody: "alice"},
		{name: "no header", header: "", wantCode: http.StatusUnauthorized, wantBody: `{"message":"No Authorization Header"}`},
		{name: "basic", header: "Basic abc", wantCode: http.StatusUnauthorized, wantBody: `{"message":"Invalid Authorization Header"}`},
		{name: "bad token", header: "Bearer abc.def.ghi", wantCode: http.StatusUnauthorized, wantBody: `{"message":"Invalid authentication credentials"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
			if tt.header != "" {
				r.Header.Set(md.AuthorizationHeader, tt.header)
			}
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)
			require.Equal(t, tt.wantCode, w.Code)
			require.Equal(t, tt.wantBody, strings.TrimSpace(w.Body.String()))
		})
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()
	e, iss := newEcho(t)

	tests := []struct {
		role     string
		wantCode int
	}{
		{auth.RoleMember, http.StatusForbidden},
		{auth.RoleLibrarian, http.StatusOK},
		{auth.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		token, _, err := iss.Issue("bob", tt.role)
		require.NoError(t, err)
		r := httptest.NewRequest(http.MethodDelete, "/books", http.NoBody)
		r.Header.Set(md.AuthorizationHeader, "Bearer "+token)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)
		require.Equal(t, tt.wantCode, w.Code, tt.role)
	}
}
