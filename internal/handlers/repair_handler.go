package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/middleware"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/services"

	"github.com/gorilla/mux"
)

type RepairHandler struct {
	Service *services.RepairService
}

func NewRepairHandler(s *services.RepairService) *RepairHandler {
	return &RepairHandler{Service: s}
}

// ReportRepair files a repair ticket against a key's unit.
func (h *RepairHandler) ReportRepair(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.CreateRepairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	repair, err := h.Service.Report(context.Background(), dealershipID, userID, &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(repair)
}

// ListRepairs returns repair tickets, optionally filtered by status.
func (h *RepairHandler) ListRepairs(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]
	status := r.URL.Query().Get("status")

	repairs, err := h.Service.List(context.Background(), dealershipID, status)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	if repairs == nil {
		repairs = []*models.RepairRequest{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(repairs)
}

// MarkFixed closes a repair ticket.
func (h *RepairHandler) MarkFixed(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.MarkFixedRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	repair, err := h.Service.MarkFixed(context.Background(), vars["dealershipID"], vars["id"], userID, &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(repair)
}
