package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/velora-dev/velora/internal/app/domain/user"
	"github.com/velora-dev/velora/internal/app/services/auth"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testToken(t *testing.T, roles ...string) string {
	t.Helper()
	issuer := auth.NewTokenIssuer(testKey, time.Hour)
	token, err := issuer.Issue(user.User{ID: 7, Username: "lisa", Roles: roles})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func newTestMiddleware(touch TouchFunc) *AuthMiddleware {
	issuer := auth.NewTokenIssuer(testKey, time.Hour)
	return NewAuthMiddleware(issuer.Decode, touch, nil, []string{"/healthz"})
}

func TestAuthSkipsAllowListedPaths(t *testing.T) {
	m := newTestMiddleware(nil)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthRejectsMissingOrMalformedHeader(t *testing.T) {
	m := newTestMiddleware(nil)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, resp.Code)
		}
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	m := newTestMiddleware(nil)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthPlacesClaimsAndTouchesActivity(t *testing.T) {
	var touched atomic.Int64
	m := newTestMiddleware(func(_ context.Context, userID int64) error {
		touched.Store(userID)
		return nil
	})

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Fatal("claims missing from context")
		}
		if claims.UserID != 7 || claims.Username != "lisa" {
			t.Fatalf("unexpected claims %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+testToken(t, user.RoleMember))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if touched.Load() != 7 {
		t.Fatalf("expected touch for user 7, got %d", touched.Load())
	}
}

func TestRequireRolesAnyMatchSuffices(t *testing.T) {
	m := newTestMiddleware(nil)
	guarded := m.Handler(RequireRoles(user.RoleAdmin, user.RoleModerator)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

	cases := []struct {
		roles []string
		want  int
	}{
		{[]string{user.RoleModerator}, http.StatusOK},
		{[]string{user.RoleAdmin, user.RoleVIP}, http.StatusOK},
		{[]string{user.RoleMember}, http.StatusForbidden},
		{nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/usersWithRoles", nil)
		req.Header.Set("Authorization", "Bearer "+testToken(t, tc.roles...))
		resp := httptest.NewRecorder()
		guarded.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("roles %v: expected %d, got %d", tc.roles, tc.want, resp.Code)
		}
	}
}
