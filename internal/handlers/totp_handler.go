package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/middleware"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/services"
)

type TOTPHandler struct {
	TOTPService *services.TOTPService
}

func NewTOTPHandler(totpService *services.TOTPService) *TOTPHandler {
	return &TOTPHandler{
		TOTPService: totpService,
	}
}

// SetupTOTP initiates 2FA setup and returns the otpauth enrollment URL.
func (h *TOTPHandler) SetupTOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	response, err := h.TOTPService.GenerateSetup(context.Background(), userID)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// EnableTOTP verifies the first code from the authenticator app and turns
// 2FA on.
func (h *TOTPHandler) EnableTOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.TOTPEnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Code == "" {
		http.Error(w, "Verification code is required", http.StatusBadRequest)
		return
	}

	ipAddress := getIPAddress(r)
	if err := h.TOTPService.VerifyAndEnable(context.Background(), userID, req.Code, ipAddress); err != nil {
		if err == services.ErrTooManyAttempts {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		}
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "2FA enabled successfully"})
}

// DisableTOTP turns off 2FA after verifying the PIN and a current code.
func (h *TOTPHandler) DisableTOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.TOTPDisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.PIN == "" || req.Code == "" {
		http.Error(w, "PIN and verification code are required", http.StatusBadRequest)
		return
	}

	if err := h.TOTPService.Disable(context.Background(), userID, req.PIN, req.Code); err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "2FA disabled successfully"})
}

// GetStatus returns the 2FA status for the current user.
func (h *TOTPHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	status, err := h.TOTPService.GetStatus(context.Background(), userID)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
