package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/middleware"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/services"
	"keyflow-backend/internal/storage"

	"github.com/gorilla/mux"
)

const maxPhotoUploadBytes = 10 << 20 // 10 MB

type KeyHandler struct {
	Keys      *services.KeyService
	Checkouts *services.CheckoutService
	Repairs   *services.RepairService
	NoteRepo  *repositories.KeyNoteRepository
	EventRepo *repositories.KeyEventRepository
	PDIRepo   *repositories.PDILogRepository
	Photos    *storage.PhotoStore // nil when object storage is not configured
}

func NewKeyHandler(keys *services.KeyService, checkouts *services.CheckoutService, repairs *services.RepairService, noteRepo *repositories.KeyNoteRepository, eventRepo *repositories.KeyEventRepository, pdiRepo *repositories.PDILogRepository, photos *storage.PhotoStore) *KeyHandler {
	return &KeyHandler{
		Keys:      keys,
		Checkouts: checkouts,
		Repairs:   repairs,
		NoteRepo:  noteRepo,
		EventRepo: eventRepo,
		PDIRepo:   pdiRepo,
		Photos:    photos,
	}
}

func (h *KeyHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key, err := h.Keys.CreateKey(context.Background(), dealershipID, userID, &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(key)
}

func (h *KeyHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]
	q := r.URL.Query()

	keys, err := h.Keys.ListKeys(context.Background(), dealershipID, q.Get("status"), q.Get("category"), q.Get("search"))
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	// Ensure we return empty array instead of null
	if keys == nil {
		keys = []*models.KeyWithCheckout{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(keys)
}

func (h *KeyHandler) GetKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	key, err := h.Keys.GetKey(context.Background(), vars["dealershipID"], vars["id"])
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(key)
}

// GetKeyByStockNumber resolves a key by its stock number, the identifier staff
// actually read off the tag.
func (h *KeyHandler) GetKeyByStockNumber(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	key, err := h.Keys.GetKeyByStockNumber(context.Background(), vars["dealershipID"], vars["stockNumber"])
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(key)
}

func (h *KeyHandler) UpdateKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.UpdateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key, err := h.Keys.UpdateKey(context.Background(), vars["dealershipID"], vars["id"], userID, &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(key)
}

func (h *KeyHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	isAdmin := middleware.IsAdminFromContext(r.Context())
	key, err := h.Keys.ChangeStatus(context.Background(), vars["dealershipID"], vars["id"], userID, isAdmin, req.NewStatus)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(key)
}

func (h *KeyHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	if err := h.Keys.DeleteKey(context.Background(), vars["dealershipID"], vars["id"], userID); err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Key deleted"})
}

// Checkout opens a session on the key. When the request flags the unit as
// needing attention a repair ticket is filed alongside the checkout.
func (h *KeyHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key, err := h.Checkouts.Checkout(context.Background(), vars["dealershipID"], vars["id"], userID, &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	if req.NeedsAttention && h.Repairs != nil {
		notes := req.Notes
		if notes == "" {
			notes = "Flagged during checkout"
		}
		// The checkout already succeeded; a failed ticket must not undo it.
		_, _ = h.Repairs.Report(context.Background(), vars["dealershipID"], userID, &models.CreateRepairRequest{
			KeyID: vars["id"],
			Notes: notes,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(key)
}

func (h *KeyHandler) Return(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.ReturnRequest
	if r.Body != nil {
		// An empty body is a plain return with no notes
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	isAuthorized := middleware.IsAdminFromContext(r.Context())
	key, err := h.Checkouts.Return(context.Background(), vars["dealershipID"], vars["id"], userID, isAuthorized, &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(key)
}

func (h *KeyHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key, err := h.Checkouts.UpdateLocation(context.Background(), vars["dealershipID"], vars["id"], userID, &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(key)
}

func (h *KeyHandler) MoveToBay(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.MoveBayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key, err := h.Checkouts.MoveToBay(context.Background(), vars["dealershipID"], vars["id"], userID, req.NewBay)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(key)
}

func (h *KeyHandler) UpdatePDIStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.UpdatePDIStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key, err := h.Keys.UpdatePDIStatus(context.Background(), vars["dealershipID"], vars["id"], userID, &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(key)
}

// ListPDILogs returns the inspection history for one key.
func (h *KeyHandler) ListPDILogs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	// Verify the key is visible in this dealership before exposing its history
	if _, err := h.Keys.GetKey(context.Background(), vars["dealershipID"], vars["id"]); err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	logs, err := h.PDIRepo.ListByKey(context.Background(), vars["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if logs == nil {
		logs = []*models.PDIAuditLog{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}

// UploadPhoto stores one key photo in object storage and attaches its URL.
// Returns 503 when no object storage is configured.
func (h *KeyHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	if h.Photos == nil {
		http.Error(w, "Photo storage is not configured", http.StatusServiceUnavailable)
		return
	}

	key, err := h.Keys.GetKey(context.Background(), vars["dealershipID"], vars["id"])
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}
	if len(key.Photos) >= 3 {
		http.Error(w, "A key can have at most 3 photos", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(maxPhotoUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		http.Error(w, "photo file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	url, err := h.Photos.UploadKeyPhoto(context.Background(), vars["dealershipID"], vars["id"], len(key.Photos), contentType, file)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	photos, err := h.Keys.AddPhoto(context.Background(), vars["dealershipID"], vars["id"], userID, url)
	if err != nil {
		// Do not leave an orphaned object behind
		_ = h.Photos.DeleteKeyPhoto(context.Background(), url)
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"photos": photos})
}

// DeletePhoto detaches a photo URL from the key and removes the object.
func (h *KeyHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url query parameter is required", http.StatusBadRequest)
		return
	}

	photos, err := h.Keys.RemovePhoto(context.Background(), vars["dealershipID"], vars["id"], userID, url)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	if h.Photos != nil {
		// Best effort, the reference is already gone
		_ = h.Photos.DeleteKeyPhoto(context.Background(), url)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"photos": photos})
}

// ListEvents returns the audit trail for one key, newest first.
func (h *KeyHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if _, err := h.Keys.GetKey(context.Background(), vars["dealershipID"], vars["id"]); err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.EventRepo.ListByKey(context.Background(), vars["id"], limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if events == nil {
		events = []*models.KeyEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// ListDealershipEvents returns the dealership-wide activity feed, newest
// first. Optional ?action= narrows to one event type, ?limit= caps the page.
func (h *KeyHandler) ListDealershipEvents(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	events, err := h.EventRepo.ListByDealership(context.Background(), dealershipID, q.Get("action"), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if events == nil {
		events = []*models.KeyEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

func (h *KeyHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if _, err := h.Keys.GetKey(context.Background(), vars["dealershipID"], vars["id"]); err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	notes, err := h.NoteRepo.ListByKey(context.Background(), vars["id"], limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if notes == nil {
		notes = []*models.KeyNote{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(notes)
}

func (h *KeyHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.AddNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	if _, err := h.Keys.GetKey(context.Background(), vars["dealershipID"], vars["id"]); err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	note := &models.KeyNote{
		KeyID:        vars["id"],
		AuthorUserID: userID,
		Text:         req.Text,
		Context:      models.NoteContextManual,
	}
	if err := h.NoteRepo.Add(context.Background(), note); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(note)
}

// BulkImport creates many keys at once. Rows fail individually, the batch
// itself always returns 200 with per-row results.
func (h *KeyHandler) BulkImport(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.BulkImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.Keys.BulkImport(context.Background(), dealershipID, userID, &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Board returns every checked-out key, longest out first, for the live
// keys-out board.
func (h *KeyHandler) Board(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	keys, err := h.Checkouts.ListOpen(context.Background(), dealershipID)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	if keys == nil {
		keys = []*models.KeyWithCheckout{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(keys)
}

// BayBoard returns the service bay occupancy grid.
func (h *KeyHandler) BayBoard(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	board, err := h.Checkouts.BayBoard(context.Background(), dealershipID)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(board)
}
