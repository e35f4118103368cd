package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/cache"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/services"
	"keyflow-backend/internal/timeutil"

	"github.com/gorilla/mux"
)

type DealershipHandler struct {
	Service *services.DealershipService
	Stats   *services.StatsService
	Reports *services.ReportService
}

func NewDealershipHandler(service *services.DealershipService, stats *services.StatsService, reports *services.ReportService) *DealershipHandler {
	h := &DealershipHandler{
		Service: service,
		Stats:   stats,
		Reports: reports,
	}

	// Register pre-warm callback for the owner fleet list
	cache.RegisterPreWarm(cache.DealershipListKey, func(ctx context.Context) ([]byte, error) {
		dealerships, err := h.Service.List(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(dealerships)
	})

	return h
}

// Create provisions a new dealership. Owner only.
func (h *DealershipHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDealershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dealership, err := h.Service.Create(context.Background(), &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dealership)
}

// List returns every dealership. Owner only.
func (h *DealershipHandler) List(w http.ResponseWriter, r *http.Request) {
	dealerships, err := h.Service.List(context.Background())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if dealerships == nil {
		dealerships = []*models.Dealership{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dealerships)
}

func (h *DealershipHandler) Get(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	dealership, err := h.Service.Get(context.Background(), dealershipID)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dealership)
}

func (h *DealershipHandler) Update(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	var req models.UpdateDealershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dealership, err := h.Service.Update(context.Background(), dealershipID, &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dealership)
}

// UpdateAlertSettings changes the yellow/red thresholds. Takes effect on the
// next read, running checkouts recolor immediately.
func (h *DealershipHandler) UpdateAlertSettings(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	var req models.UpdateAlertSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dealership, err := h.Service.UpdateAlertSettings(context.Background(), dealershipID, &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dealership)
}

// Deactivate suspends a dealership. Owner only.
func (h *DealershipHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	if err := h.Service.SetActive(context.Background(), dealershipID, false); err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Dealership deactivated"})
}

// Reactivate restores a suspended dealership. Owner only.
func (h *DealershipHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	if err := h.Service.SetActive(context.Background(), dealershipID, true); err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Dealership reactivated"})
}

// GetStats returns the dashboard counters for one dealership.
func (h *DealershipHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	stats, err := h.Stats.GetStats(context.Background(), dealershipID)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// reportRange parses the from/to query params. Dates are inclusive on both
// ends; defaults cover the last 7 days.
func reportRange(r *http.Request) (time.Time, time.Time, error) {
	now := timeutil.Now()
	from := now.AddDate(0, 0, -7)
	to := now

	if s := r.URL.Query().Get("from"); s != "" {
		parsed, err := time.Parse(timeutil.DateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date, use YYYY-MM-DD")
		}
		from = parsed
	}
	if s := r.URL.Query().Get("to"); s != "" {
		parsed, err := time.Parse(timeutil.DateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date, use YYYY-MM-DD")
		}
		to = parsed.AddDate(0, 0, 1)
	}
	return from, to, nil
}

// GetActivityReportPDF handles GET .../reports/activity/pdf
// Query params: from=YYYY-MM-DD, to=YYYY-MM-DD
func (h *DealershipHandler) GetActivityReportPDF(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	from, to, err := reportRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	data, err := h.Reports.GetActivityReportData(ctx, dealershipID, from, to)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get data: %v", err), http.StatusInternalServerError)
		return
	}

	pdfData, err := h.Reports.GenerateActivityPDF(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate PDF: %v", err), http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("key_activity_%s.pdf", timeutil.Now().Format(timeutil.DateLayout))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Write(pdfData)
}

// GetActivityReportCSV handles GET .../reports/activity/csv
func (h *DealershipHandler) GetActivityReportCSV(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	from, to, err := reportRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	data, err := h.Reports.GetActivityReportData(ctx, dealershipID, from, to)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get data: %v", err), http.StatusInternalServerError)
		return
	}

	csvData, err := h.Reports.GenerateActivityCSV(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate CSV: %v", err), http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("key_activity_%s.csv", timeutil.Now().Format(timeutil.DateLayout))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Write(csvData)
}

// GetOverdueReportPDF handles GET .../reports/overdue/pdf
func (h *DealershipHandler) GetOverdueReportPDF(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	data, err := h.Reports.GetOverdueReportData(ctx, dealershipID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get data: %v", err), http.StatusInternalServerError)
		return
	}

	pdfData, err := h.Reports.GenerateOverduePDF(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate PDF: %v", err), http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("overdue_keys_%s.pdf", timeutil.Now().Format(timeutil.DateLayout))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Write(pdfData)
}

// GetOverdueReportCSV handles GET .../reports/overdue/csv
func (h *DealershipHandler) GetOverdueReportCSV(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	data, err := h.Reports.GetOverdueReportData(ctx, dealershipID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get data: %v", err), http.StatusInternalServerError)
		return
	}

	csvData, err := h.Reports.GenerateOverdueCSV(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate CSV: %v", err), http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("overdue_keys_%s.csv", timeutil.Now().Format(timeutil.DateLayout))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Write(csvData)
}
