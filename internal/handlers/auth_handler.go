package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/auth"
	"keyflow-backend/internal/middleware"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/services"
)

type AuthHandler struct {
	Service      *services.UserService
	TOTPService  *services.TOTPService
	JWTManager   *auth.JWTManager
	LoginLogRepo *repositories.LoginLogRepository
}

func NewAuthHandler(s *services.UserService, totpService *services.TOTPService, jwtManager *auth.JWTManager, loginLogRepo *repositories.LoginLogRepository) *AuthHandler {
	return &AuthHandler{
		Service:      s,
		TOTPService:  totpService,
		JWTManager:   jwtManager,
		LoginLogRepo: loginLogRepo,
	}
}

// Login handles PIN authentication. When the account has 2FA enabled the
// response carries a short-lived temp token instead of a session token and
// the client must follow up with VerifyTOTP.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.Service.Login(context.Background(), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if user.TOTPEnabled {
		tempToken, err := h.JWTManager.GenerateTempToken(user)
		if err != nil {
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&models.LoginStep1Response{
			Requires2FA: true,
			TempToken:   tempToken,
			Message:     "Enter the code from your authenticator app",
		})
		return
	}

	h.completeLogin(w, r, user)
}

// VerifyTOTP finishes a 2FA login. The temp token from step 1 proves the PIN
// already checked out.
func (h *AuthHandler) VerifyTOTP(w http.ResponseWriter, r *http.Request) {
	var req models.TOTPVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.TempToken == "" || req.Code == "" {
		http.Error(w, "Temp token and verification code are required", http.StatusBadRequest)
		return
	}

	tempClaims, err := h.JWTManager.ValidateTempToken(req.TempToken)
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	ipAddress := getIPAddress(r)
	if err := h.TOTPService.Verify(context.Background(), tempClaims.UserID, req.Code, ipAddress); err != nil {
		if err == services.ErrTooManyAttempts {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		}
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	user, err := h.Service.GetUser(context.Background(), tempClaims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	h.completeLogin(w, r, user)
}

// completeLogin issues the session token and records the login.
func (h *AuthHandler) completeLogin(w http.ResponseWriter, r *http.Request, user *models.User) {
	token, err := h.JWTManager.GenerateToken(user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	// Best effort, a failed audit row should not block the login.
	_ = h.LoginLogRepo.Create(context.Background(), user.ID, getIPAddress(r), r.UserAgent(), true)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&models.AuthResponse{
		Token: token,
		User:  user,
	})
}

// Me returns the authenticated user's own record.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.Service.GetUser(context.Background(), userID)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// ChangePIN lets any user rotate their own PIN.
func (h *AuthHandler) ChangePIN(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.ChangePINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.ChangePIN(context.Background(), userID, &req); err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "PIN changed successfully"})
}

// getIPAddress extracts the real IP address from the request
func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first (for proxies/load balancers)
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	// Fall back to RemoteAddr
	return r.RemoteAddr
}
