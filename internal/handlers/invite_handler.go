package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/services"

	"github.com/gorilla/mux"
)

type InviteHandler struct {
	Service *services.InviteService
}

func NewInviteHandler(s *services.InviteService) *InviteHandler {
	return &InviteHandler{Service: s}
}

// CreateInvite issues a one-time signup token for a role at a dealership.
func (h *InviteHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// The path is authoritative for the dealership
	req.DealershipID = mux.Vars(r)["dealershipID"]

	actorID, actorRole, actorDealership := actor(r)
	invite, err := h.Service.CreateInvite(context.Background(), &req, actorID, actorRole, actorDealership)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(invite)
}

// ListInvites returns the open and used invites for one dealership.
func (h *InviteHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	dealershipID := mux.Vars(r)["dealershipID"]

	invites, err := h.Service.ListInvites(context.Background(), dealershipID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if invites == nil {
		invites = []*models.Invite{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(invites)
}

// RevokeInvite cancels an unused invite.
func (h *InviteHandler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.Service.Revoke(context.Background(), vars["dealershipID"], vars["id"]); err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Invite revoked"})
}

// ClaimInvite is the unauthenticated endpoint where an invited user picks
// their name and PIN. The token alone proves the invitation.
func (h *InviteHandler) ClaimInvite(w http.ResponseWriter, r *http.Request) {
	var req models.ClaimInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.Service.Claim(context.Background(), &req)
	if err != nil {
		http.Error(w, err.Error(), apperrors.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}
