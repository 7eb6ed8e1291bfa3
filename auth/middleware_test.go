package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	var principal string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(newTestAuthenticator())(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWith("Bearer "+signToken(t, testKey, validClaims())))
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if principal != "prober" {
		t.Errorf("principal = %q, want prober", principal)
	}

	principal = ""
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWith(""))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
	if principal != "" {
		t.Error("next handler ran for an unauthenticated request")
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []any
		want  int
	}{
		{"has role", []any{"probe:read"}, http.StatusOK},
		{"other role", []any{"admin"}, http.StatusForbidden},
		{"no roles", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			if tt.roles == nil {
				delete(claims, "roles")
			} else {
				claims["roles"] = tt.roles
			}
			handler := Middleware(newTestAuthenticator())(RequireRole("probe:read")(okHandler()))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, requestWith("Bearer "+signToken(t, testKey, claims)))
			if rec.Code != tt.want {
				t.Errorf("Status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireRole_WithoutIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireRole("probe:read")(okHandler()).ServeHTTP(rec, requestWith(""))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentityFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if IdentityFromContext(req.Context()) != nil {
		t.Error("IdentityFromContext() = non-nil for a bare context")
	}
	if PrincipalFromContext(req.Context()) != "" {
		t.Error("PrincipalFromContext() = non-empty for a bare context")
	}
}
