package middleware

import (
	"context"
	"net/http"
	"strings"

	"keyflow-backend/internal/auth"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"

	"github.com/gorilla/mux"
)

type contextKey string

const UserIDKey contextKey = "user_id"
const NameKey contextKey = "name"
const RoleKey contextKey = "role"
const DealershipIDKey contextKey = "dealership_id"

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	userRepo   *repositories.UserRepository
}

func NewAuthMiddleware(jwtManager *auth.JWTManager, userRepo *repositories.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		userRepo:   userRepo,
	}
}

// authenticate validates the bearer token and re-checks the user row so a
// deactivated account loses access immediately, not at token expiry. Writes
// the error response itself and returns nil on failure.
func (m *AuthMiddleware) authenticate(w http.ResponseWriter, r *http.Request) *models.User {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		http.Error(w, "Authorization header required", http.StatusUnauthorized)
		return nil
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
		return nil
	}

	claims, err := m.jwtManager.ValidateToken(parts[1])
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return nil
	}

	user, err := m.userRepo.Get(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return nil
	}

	if !user.IsActive {
		http.Error(w, "Account suspended. Please contact administrator.", http.StatusForbidden)
		return nil
	}

	return user
}

func withUser(ctx context.Context, user *models.User) context.Context {
	dealershipID := ""
	if user.DealershipID != nil {
		dealershipID = *user.DealershipID
	}
	ctx = context.WithValue(ctx, UserIDKey, user.ID)
	ctx = context.WithValue(ctx, NameKey, user.Name)
	ctx = context.WithValue(ctx, RoleKey, user.Role)
	ctx = context.WithValue(ctx, DealershipIDKey, dealershipID)
	return ctx
}

// Authenticate validates JWT tokens and loads the user into the context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := m.authenticate(w, r)
		if user == nil {
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireRole ensures the user holds one of the allowed roles.
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := m.authenticate(w, r)
			if user == nil {
				return
			}

			hasRole := false
			for _, role := range allowedRoles {
				if user.Role == role {
					hasRole = true
					break
				}
			}
			if !hasRole {
				http.Error(w, "Forbidden: Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// RequireAdmin allows the owner and dealership admins.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(models.RoleOwner, models.RoleDealershipAdmin)(next)
}

// RequireOwner allows only the owner account.
func (m *AuthMiddleware) RequireOwner(next http.Handler) http.Handler {
	return m.RequireRole(models.RoleOwner)(next)
}

// RequireDealershipAccess pins a {dealershipID} route to the caller's own
// dealership. The owner passes for any dealership. Must run after
// Authenticate or RequireRole.
func RequireDealershipAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dealershipID := mux.Vars(r)["dealershipID"]
		role, _ := GetRoleFromContext(r.Context())
		if role == models.RoleOwner {
			next.ServeHTTP(w, r)
			return
		}
		own, _ := GetDealershipIDFromContext(r.Context())
		if own == "" || own != dealershipID {
			http.Error(w, "Forbidden: wrong dealership", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserIDFromContext extracts the user id from the request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetNameFromContext extracts the user's name from the request context
func GetNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(NameKey).(string)
	return name, ok
}

// GetRoleFromContext extracts the role from the request context
func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// GetDealershipIDFromContext extracts the caller's dealership id. Empty for
// the owner account.
func GetDealershipIDFromContext(ctx context.Context) (string, bool) {
	dealershipID, ok := ctx.Value(DealershipIDKey).(string)
	return dealershipID, ok
}

// IsAdminFromContext reports whether the caller holds an elevated role.
func IsAdminFromContext(ctx context.Context) bool {
	role, ok := GetRoleFromContext(ctx)
	return ok && models.IsAdminRole(role)
}
