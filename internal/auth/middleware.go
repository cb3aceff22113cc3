package auth

import (
	"context"
	"net/http"

	"github.com/examportal/examportal/internal/rbac"
)

type ctxKey struct{}

var ctxKeyPrincipal = ctxKey{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}

// Middleware composes the route guards. Auth and role failures redirect with
// a flash warning; they never surface as raw HTTP errors to the client.
type Middleware struct {
	Sessions *Sessions
	Remember *RememberIssuer
	Checker  *rbac.Checker
}

// RequireAuth admits authenticated principals, restoring the session from a
// valid remember-me token when the cookie session has lapsed.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := m.Sessions.Principal(r)
		if !ok && m.Remember != nil {
			if c, err := r.Cookie(RememberCookie); err == nil {
				if userID, role, perr := m.Remember.Parse(c.Value); perr == nil {
					_ = m.Sessions.SignIn(w, r, userID, role)
					p, ok = Principal{UserID: userID, Role: role}, true
				}
			}
		}
		if !ok {
			m.Sessions.AddFlash(w, r, "warning", "Please login to access this page.")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireRole gates a subtree to one role. Must run after RequireAuth.
func (m *Middleware) RequireRole(role rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || p.Role != role {
				m.Sessions.AddFlash(w, r, "danger", "Access denied. "+title(string(role))+" privileges required.")
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission gates a single operation by capability.
func (m *Middleware) RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || !m.Checker.Has(p.Role, perm) {
				m.Sessions.AddFlash(w, r, "danger", "Access denied.")
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
