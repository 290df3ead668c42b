package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/httpapi"
)

const (
	CustomerCookie = "sf_session"
	AdminCookie    = "sf_admin_session"
)

// Resolver turns request credentials into an Identity.
type Resolver struct {
	secrets Secrets
	now     func() time.Time
}

func NewResolver(secrets Secrets) *Resolver {
	return &Resolver{secrets: secrets, now: time.Now}
}

// Resolve tries the customer cookie, then the admin cookie, then a bearer
// token. A bearer token may be of either kind.
func (r *Resolver) Resolve(req *http.Request) Identity {
	if c, err := req.Cookie(CustomerCookie); err == nil {
		if id, err := parse(c.Value, KindCustomer, r.secrets.Customer, r.now); err == nil {
			return Identity{Kind: KindCustomer, UserID: id}
		}
	}

	if c, err := req.Cookie(AdminCookie); err == nil {
		if id, err := parse(c.Value, KindAdmin, r.secrets.Admin, r.now); err == nil {
			return Identity{Kind: KindAdmin, UserID: id}
		}
	}

	if raw := bearerToken(req); raw != "" {
		if id, err := parse(raw, KindCustomer, r.secrets.Customer, r.now); err == nil {
			return Identity{Kind: KindCustomer, UserID: id}
		}
		if id, err := parse(raw, KindAdmin, r.secrets.Admin, r.now); err == nil {
			return Identity{Kind: KindAdmin, UserID: id}
		}
	}

	return Anonymous
}

func bearerToken(req *http.Request) string {
	parts := strings.Fields(req.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// Middleware resolves the identity once and stores it in the request context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := r.Resolve(req)
		next.ServeHTTP(w, req.WithContext(WithIdentity(req.Context(), id)))
	})
}

// KeyFunc buckets authenticated callers by user id and everyone else by IP.
func KeyFunc(req *http.Request) string {
	if id := FromContext(req.Context()); id.IsAuthenticated() {
		return string(id.Kind) + ":" + id.UserID
	}
	return "ip:" + httpapi.RemoteIP(req)
}

var (
	errUnauthenticated = apperr.New(apperr.KindUnauthenticated, "authentication required")
	errForbidden       = apperr.New(apperr.KindForbidden, "admin access required")
)

// RequireAuthenticated rejects anonymous requests.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !FromContext(req.Context()).IsAuthenticated() {
			httpapi.WriteError(w, req, errUnauthenticated)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// RequireCustomer admits only customer sessions.
func RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := FromContext(req.Context())
		if !id.IsAuthenticated() {
			httpapi.WriteError(w, req, errUnauthenticated)
			return
		}
		if !id.IsCustomer() {
			httpapi.WriteError(w, req, apperr.New(apperr.KindForbidden, "customer session required"))
			return
		}
		next.ServeHTTP(w, req)
	})
}

// RequireAdmin admits only admin sessions.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := FromContext(req.Context())
		if !id.IsAuthenticated() {
			httpapi.WriteError(w, req, errUnauthenticated)
			return
		}
		if !id.IsAdmin() {
			httpapi.WriteError(w, req, errForbidden)
			return
		}
		next.ServeHTTP(w, req)
	})
}
