package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecrets = Secrets{Customer: []byte("customer-secret"), Admin: []byte("admin-secret")}

func issue(t *testing.T, kind Kind, userID string) string {
	t.Helper()
	token, err := NewIssuer(testSecrets, time.Hour).Issue(kind, userID)
	require.NoError(t, err)
	return token
}

func TestResolve(t *testing.T) {
	resolver := NewResolver(testSecrets)

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    Identity
	}{
		{
			name:    "no credentials",
			prepare: func(*http.Request) {},
			want:    Anonymous,
		},
		{
			name: "customer cookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: CustomerCookie, Value: issue(t, KindCustomer, "user-1")})
			},
			want: Identity{Kind: KindCustomer, UserID: "user-1"},
		},
		{
			name: "admin cookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AdminCookie, Value: issue(t, KindAdmin, "admin-1")})
			},
			want: Identity{Kind: KindAdmin, UserID: "admin-1"},
		},
		{
			name: "invalid customer cookie falls through to admin cookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: CustomerCookie, Value: "garbage"})
				r.AddCookie(&http.Cookie{Name: AdminCookie, Value: issue(t, KindAdmin, "admin-1")})
			},
			want: Identity{Kind: KindAdmin, UserID: "admin-1"},
		},
		{
			name: "bearer token",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+issue(t, KindCustomer, "user-2"))
			},
			want: Identity{Kind: KindCustomer, UserID: "user-2"},
		},
		{
			name: "customer token in admin cookie is rejected",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AdminCookie, Value: issue(t, KindCustomer, "user-1")})
			},
			want: Anonymous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)

			assert.Equal(t, tt.want, resolver.Resolve(req))
		})
	}
}

func TestResolveRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer(testSecrets, time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := issuer.Issue(KindCustomer, "user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CustomerCookie, Value: token})

	assert.Equal(t, Anonymous, NewResolver(testSecrets).Resolve(req))
}

func TestResolveRejectsForeignSecret(t *testing.T) {
	foreign := NewIssuer(Secrets{Customer: []byte("other")}, time.Hour)
	token, err := foreign.Issue(KindCustomer, "user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CustomerCookie, Value: token})

	assert.Equal(t, Anonymous, NewResolver(testSecrets).Resolve(req))
}

func TestGuards(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name  string
		guard func(http.Handler) http.Handler
		id    Identity
		want  int
	}{
		{name: "customer guard anonymous", guard: RequireCustomer, id: Anonymous, want: http.StatusUnauthorized},
		{name: "customer guard admin", guard: RequireCustomer, id: Identity{Kind: KindAdmin, UserID: "a"}, want: http.StatusForbidden},
		{name: "customer guard customer", guard: RequireCustomer, id: Identity{Kind: KindCustomer, UserID: "c"}, want: http.StatusNoContent},
		{name: "admin guard customer", guard: RequireAdmin, id: Identity{Kind: KindCustomer, UserID: "c"}, want: http.StatusForbidden},
		{name: "admin guard admin", guard: RequireAdmin, id: Identity{Kind: KindAdmin, UserID: "a"}, want: http.StatusNoContent},
		{name: "authenticated guard anonymous", guard: RequireAuthenticated, id: Anonymous, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithIdentity(req.Context(), tt.id))
			rec := httptest.NewRecorder()

			tt.guard(ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMiddlewareStoresIdentity(t *testing.T) {
	var got Identity
	h := NewResolver(testSecrets).Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CustomerCookie, Value: issue(t, KindCustomer, "user-9")})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, Identity{Kind: KindCustomer, UserID: "user-9"}, got)
}

func TestKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:1234"
	assert.Equal(t, "ip:198.51.100.4", KeyFunc(req))

	req = req.WithContext(WithIdentity(req.Context(), Identity{Kind: KindCustomer, UserID: "u1"}))
	assert.Equal(t, "customer:u1", KeyFunc(req))
}
