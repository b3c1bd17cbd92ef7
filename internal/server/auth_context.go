package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"eduops/internal/auth"
)

type authContextKey struct{}

// localPrincipal is used for every request when no JWT secret is configured.
var localPrincipal = auth.Principal{Name: "local", Role: auth.RoleAdmin}

func contextWithPrincipal(ctx context.Context, principal auth.Principal) context.Context {
	if info := requestInfoFromContext(ctx); info != nil {
		info.principal = principal.Name
	}
	return context.WithValue(ctx, authContextKey{}, principal)
}

func principalFromContext(ctx context.Context) (auth.Principal, bool) {
	if ctx == nil {
		return auth.Principal{}, false
	}
	principal, ok := ctx.Value(authContextKey{}).(auth.Principal)
	return principal, ok
}

// actorFromContext returns the principal name recorded on timeline events.
func actorFromContext(ctx context.Context) string {
	principal, ok := principalFromContext(ctx)
	if !ok {
		return ""
	}
	return principal.Name
}

// requiredRole maps a request to the least role allowed to make it. Reads are
// open to any authenticated principal, writes need a user, and archival and
// admin routes need an admin.
func requiredRole(r *http.Request) auth.Role {
	if strings.HasPrefix(r.URL.Path, "/v1/admin/") {
		return auth.RoleAdmin
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return auth.RoleGuest
	case http.MethodDelete:
		return auth.RoleAdmin
	default:
		return auth.RoleUser
	}
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.issuer == nil {
			next.ServeHTTP(w, r.WithContext(contextWithPrincipal(r.Context(), localPrincipal)))
			return
		}

		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("bearer token required")))
			return
		}

		principal, err := s.issuer.Verify(strings.TrimSpace(token))
		if err != nil {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("invalid or expired token")))
			return
		}

		if required := requiredRole(r); !principal.Allows(required) {
			s.writeErrorReq(w, r, http.StatusForbidden, forbidden(fmt.Errorf("%s role required", required)))
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithPrincipal(r.Context(), principal)))
	})
}
