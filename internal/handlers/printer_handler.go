package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/services"

	"github.com/gorilla/mux"
)

type PrinterHandler struct {
	PrinterService *services.PrinterService // nil when no label printer is configured
	Keys           *services.KeyService
}

func NewPrinterHandler(ps *services.PrinterService, keys *services.KeyService) *PrinterHandler {
	return &PrinterHandler{
		PrinterService: ps,
		Keys:           keys,
	}
}

type PrintTagRequest struct {
	Copies int `json:"copies"`
}

// PrintKeyTag sends the key's stock number and vehicle description to the
// label printer bridge.
func (h *PrinterHandler) PrintKeyTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if h.PrinterService == nil {
		http.Error(w, "Label printer is not configured", http.StatusServiceUnavailable)
		return
	}

	var req PrintTagRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Copies < 1 {
		req.Copies = 1
	}

	key, err := h.Keys.GetKey(context.Background(), vars["dealershipID"], vars["id"])
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	description := keyTagDescription(key.VehicleYear, key.VehicleMake, key.VehicleModel)
	if err := h.PrinterService.PrintKeyTag(r.Context(), key.StockNumber, description, req.Copies); err != nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Printed successfully",
	})
}

// keyTagDescription builds the second label line, e.g. "2024 Ford F-150".
func keyTagDescription(year *int, make, model string) string {
	parts := []string{}
	if year != nil {
		parts = append(parts, fmt.Sprintf("%d", *year))
	}
	if make != "" {
		parts = append(parts, make)
	}
	if model != "" {
		parts = append(parts, model)
	}
	return strings.Join(parts, " ")
}
