package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/auth"
	"keyflow-backend/internal/cache"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/timeutil"
)

const (
	defaultInviteDays = 7
	maxInviteDays     = 30
)

// InviteService issues signup tokens so staff can enroll themselves instead
// of an admin typing every account in by hand.
type InviteService struct {
	Repo  *repositories.InviteRepository
	Clock timeutil.Clock
}

func NewInviteService(repo *repositories.InviteRepository, clock timeutil.Clock) *InviteService {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &InviteService{Repo: repo, Clock: clock}
}

// CreateInvite mints a single-use token carrying the role and dealership the
// claimed account will receive. Role assignment follows the same rules as
// direct user creation.
func (s *InviteService) CreateInvite(ctx context.Context, req *models.CreateInviteRequest, actorUserID, actorRole string, actorDealershipID *string) (*models.Invite, error) {
	dealershipID := req.DealershipID
	switch actorRole {
	case models.RoleOwner:
		if req.Role != models.RoleDealershipAdmin && !models.IsStandardRole(req.Role) {
			return nil, apperrors.Validationf("invalid role: %s", req.Role)
		}
		if dealershipID == "" {
			return nil, apperrors.Validation("dealership_id is required")
		}
	case models.RoleDealershipAdmin:
		if !models.IsStandardRole(req.Role) {
			return nil, apperrors.Validationf("invalid role: %s", req.Role)
		}
		if actorDealershipID == nil {
			return nil, apperrors.Authorization("admin account is not attached to a dealership")
		}
		dealershipID = *actorDealershipID
	default:
		return nil, apperrors.Authorization("only admins can create invites")
	}

	days := req.ExpiresInDays
	if days == 0 {
		days = defaultInviteDays
	}
	if days < 1 || days > maxInviteDays {
		return nil, apperrors.Validationf("expires_in_days must be between 1 and %d", maxInviteDays)
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, err
	}

	inv := &models.Invite{
		Token:           token,
		DealershipID:    dealershipID,
		Role:            req.Role,
		CreatedByUserID: actorUserID,
		ExpiresAt:       s.Clock.Now().AddDate(0, 0, days),
	}
	if err := s.Repo.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Claim consumes an invite token and creates the account it promises. The
// name and PIN come from the claimant; everything else comes from the invite.
func (s *InviteService) Claim(ctx context.Context, req *models.ClaimInviteRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if req.Token == "" {
		return nil, apperrors.Validation("token is required")
	}
	if err := auth.ValidatePIN(req.PIN); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	pinHash, err := auth.HashPIN(req.PIN)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:    name,
		PINHash: pinHash,
	}
	if _, err := s.Repo.Claim(ctx, req.Token, user, s.Clock.Now()); err != nil {
		return nil, err
	}

	cache.InvalidateUserCaches(ctx)
	return user, nil
}

// ListInvites returns every invite issued for a dealership, newest first.
func (s *InviteService) ListInvites(ctx context.Context, dealershipID string) ([]*models.Invite, error) {
	return s.Repo.ListByDealership(ctx, dealershipID)
}

// Revoke cancels an unused invite.
func (s *InviteService) Revoke(ctx context.Context, dealershipID, inviteID string) error {
	return s.Repo.Revoke(ctx, dealershipID, inviteID)
}

// newInviteToken returns 32 hex characters of cryptographic randomness.
func newInviteToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
