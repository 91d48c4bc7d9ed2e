package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/identity"
)

func authedHandler(t *testing.T, want identity.Identity) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFrom(r.Context())
		if !ok {
			t.Error("identity missing from context")
		}
		if ident != want {
			t.Errorf("identity = %+v, want %+v", ident, want)
		}
		w.WriteHeader(http.StatusOK)
	}
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	tokens := identity.NewTokenManager("test-secret", "carebridge", time.Hour)
	ident := identity.Identity{UserID: uuid.New(), Name: "Asha", Role: identity.RolePatient}
	token, _, err := tokens.Issue(ident)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	handler := RequireAuth(tokens)(authedHandler(t, ident))

	req := httptest.NewRequest("GET", "/api/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAuth_QueryParam(t *testing.T) {
	tokens := identity.NewTokenManager("test-secret", "carebridge", time.Hour)
	ident := identity.Identity{UserID: uuid.New(), Name: "Asha", Role: identity.RolePatient}
	token, _, err := tokens.Issue(ident)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	handler := RequireAuth(tokens)(authedHandler(t, ident))

	req := httptest.NewRequest("GET", "/ws/consult/x?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	tokens := identity.NewTokenManager("test-secret", "carebridge", time.Hour)
	expired := identity.NewTokenManager("test-secret", "carebridge", -time.Minute)
	expiredToken, _, _ := expired.Issue(identity.Identity{UserID: uuid.New(), Role: identity.RolePatient})

	handler := RequireAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran without valid auth")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"no token", ""},
		{"malformed header", "Token abc"},
		{"garbage token", "Bearer not.a.token"},
		{"expired token", "Bearer " + expiredToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/appointments", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := identity.NewTokenManager("test-secret", "carebridge", time.Hour)
	patient := identity.Identity{UserID: uuid.New(), Name: "Asha", Role: identity.RolePatient}
	token, _, err := tokens.Issue(patient)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	allowed := RequireAuth(tokens)(RequireRole(identity.RolePatient)(http.HandlerFunc(ok)))
	denied := RequireAuth(tokens)(RequireRole(identity.RoleDoctor)(http.HandlerFunc(ok)))

	req := httptest.NewRequest("POST", "/api/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	allowed.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("matching role: status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/schedule", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec = httptest.NewRecorder()
	denied.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong role: status = %d, want 403", rec.Code)
	}
}
