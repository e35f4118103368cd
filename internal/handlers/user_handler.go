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

	"github.com/gorilla/mux"
)

type UserHandler struct {
	Service      *services.UserService
	LoginLogRepo *repositories.LoginLogRepository
}

func NewUserHandler(s *services.UserService, loginLogRepo *repositories.LoginLogRepository) *UserHandler {
	return &UserHandler{
		Service:      s,
		LoginLogRepo: loginLogRepo,
	}
}

// actor pulls the acting user's identity out of the request context.
func actor(r *http.Request) (userID, role string, dealershipID *string) {
	userID, _ = middleware.GetUserIDFromContext(r.Context())
	role, _ = middleware.GetRoleFromContext(r.Context())
	if d, _ := middleware.GetDealershipIDFromContext(r.Context()); d != "" {
		dealershipID = &d
	}
	return userID, role, dealershipID
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	actorID, actorRole, actorDealership := actor(r)
	user, err := h.Service.CreateUser(context.Background(), &req, actorID, actorRole, actorDealership)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// ListUsers returns every user at one dealership.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	users, err := h.Service.ListUsers(context.Background(), dealershipID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if users == nil {
		users = []*models.User{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	user, err := h.Service.GetUser(context.Background(), vars["id"])
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	// The owner account and users of other dealerships are invisible here
	if user.DealershipID == nil || *user.DealershipID != vars["dealershipID"] {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	actorID, actorRole, actorDealership := actor(r)
	user, err := h.Service.UpdateUser(context.Background(), vars["id"], &req, actorID, actorRole, actorDealership)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// Deactivate suspends a user account. Their existing tokens stop working on
// the next request because the auth middleware re-checks the user row.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	actorID, actorRole, actorDealership := actor(r)
	if err := h.Service.Deactivate(context.Background(), vars["id"], actorID, actorRole, actorDealership); err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "User deactivated"})
}

func (h *UserHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	actorID, actorRole, actorDealership := actor(r)
	if err := h.Service.Reactivate(context.Background(), vars["id"], actorID, actorRole, actorDealership); err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "User reactivated"})
}

// ListLoginLogs returns recent login activity for one dealership.
func (h *UserHandler) ListLoginLogs(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.LoginLogRepo.ListByDealership(context.Background(), dealershipID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if logs == nil {
		logs = []map[string]interface{}{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}

// ListAllLoginLogs returns login activity across every dealership. Owner only.
func (h *UserHandler) ListAllLoginLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.LoginLogRepo.ListAll(context.Background(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if logs == nil {
		logs = []map[string]interface{}{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}
