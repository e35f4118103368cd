package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"keyflow-backend/internal/auth"
	"keyflow-backend/internal/config"
	"keyflow-backend/internal/middleware"
	"keyflow-backend/internal/models"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func newTestAuthMiddleware() *middleware.AuthMiddleware {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpirationHours = 1
	return middleware.NewAuthMiddleware(auth.NewJWTManager(cfg), nil)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_RejectsBeforeTouchingTheDatabase(t *testing.T) {
	m := newTestAuthMiddleware()
	handler := m.Authenticate(okHandler())

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"missing token", "Bearer"},
		{"garbage token", "Bearer not.a.token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

// setUser plants the context values Authenticate would have set.
func setUser(userID, name, role, dealershipID string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
			ctx = context.WithValue(ctx, middleware.NameKey, name)
			ctx = context.WithValue(ctx, middleware.RoleKey, role)
			ctx = context.WithValue(ctx, middleware.DealershipIDKey, dealershipID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func dealershipRequest(t *testing.T, role, ownDealership, pathDealership string) int {
	t.Helper()
	r := mux.NewRouter()
	sub := r.PathPrefix("/api/dealerships/{dealershipID}").Subrouter()
	sub.Use(setUser("user-1", "Ana", role, ownDealership))
	sub.Use(middleware.RequireDealershipAccess)
	sub.Handle("/keys", okHandler()).Methods("GET")

	req := httptest.NewRequest("GET", "/api/dealerships/"+pathDealership+"/keys", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr.Code
}

func TestRequireDealershipAccess(t *testing.T) {
	// Staff may only reach their own dealership
	assert.Equal(t, http.StatusOK, dealershipRequest(t, models.RoleSales, "d1", "d1"))
	assert.Equal(t, http.StatusForbidden, dealershipRequest(t, models.RoleSales, "d1", "d2"))
	assert.Equal(t, http.StatusForbidden, dealershipRequest(t, models.RoleDealershipAdmin, "d1", "d2"))

	// The owner passes for any dealership
	assert.Equal(t, http.StatusOK, dealershipRequest(t, models.RoleOwner, "", "d1"))
	assert.Equal(t, http.StatusOK, dealershipRequest(t, models.RoleOwner, "", "d2"))

	// No dealership in context means no access
	assert.Equal(t, http.StatusForbidden, dealershipRequest(t, models.RoleSales, "", "d1"))
}

func TestContextGetters(t *testing.T) {
	ctx := context.Background()

	_, ok := middleware.GetUserIDFromContext(ctx)
	assert.False(t, ok)
	assert.False(t, middleware.IsAdminFromContext(ctx))

	ctx = context.WithValue(ctx, middleware.UserIDKey, "user-1")
	ctx = context.WithValue(ctx, middleware.NameKey, "Ana")
	ctx = context.WithValue(ctx, middleware.RoleKey, models.RoleDealershipAdmin)
	ctx = context.WithValue(ctx, middleware.DealershipIDKey, "d1")

	userID, ok := middleware.GetUserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)

	name, ok := middleware.GetNameFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "Ana", name)

	role, ok := middleware.GetRoleFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, models.RoleDealershipAdmin, role)

	dealershipID, ok := middleware.GetDealershipIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "d1", dealershipID)

	assert.True(t, middleware.IsAdminFromContext(ctx))

	ctx = context.WithValue(ctx, middleware.RoleKey, models.RoleSales)
	assert.False(t, middleware.IsAdminFromContext(ctx))
}
