package services

import (
	"context"
	"strings"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/auth"
	"keyflow-backend/internal/cache"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
)

type UserService struct {
	Repo   *repositories.UserRepository
	Events *repositories.KeyEventRepository
}

func NewUserService(repo *repositories.UserRepository, events *repositories.KeyEventRepository) *UserService {
	return &UserService{
		Repo:   repo,
		Events: events,
	}
}

// Login verifies a name + PIN pair and returns the matching user. The caller
// issues the token (or a 2FA challenge when user.TOTPEnabled) and records the
// login attempt. Every failure mode returns the same error so the response
// never reveals whether the name exists.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.PIN == "" {
		return nil, apperrors.Validation("name and PIN are required")
	}

	// An empty dealership id means the owner account, which belongs to no
	// dealership.
	var dealershipID *string
	if req.DealershipID != "" {
		dealershipID = &req.DealershipID
	}

	user, err := s.Repo.GetByName(ctx, dealershipID, name)
	if err != nil {
		return nil, apperrors.Authorization("invalid name or PIN")
	}

	if !auth.VerifyPIN(user.PINHash, req.PIN) {
		return nil, apperrors.Authorization("invalid name or PIN")
	}

	return user, nil
}

// CreateUser provisions an account directly. The owner may create any
// non-owner role at any dealership; a dealership admin may create standard
// roles at their own dealership only.
func (s *UserService) CreateUser(ctx context.Context, req *models.CreateUserRequest, actorUserID, actorRole string, actorDealershipID *string) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if err := auth.ValidatePIN(req.PIN); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	dealershipID := req.DealershipID
	switch actorRole {
	case models.RoleOwner:
		if req.Role == models.RoleOwner {
			return nil, apperrors.Validation("there is only one owner account")
		}
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
		// Admins always create users at their own dealership.
		if actorDealershipID == nil {
			return nil, apperrors.Authorization("admin account is not attached to a dealership")
		}
		dealershipID = *actorDealershipID
	default:
		return nil, apperrors.Authorization("only admins can create users")
	}

	pinHash, err := auth.HashPIN(req.PIN)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		DealershipID: &dealershipID,
		Name:         name,
		Role:         req.Role,
		PINHash:      pinHash,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logUserEvent(ctx, dealershipID, actorUserID, models.ActionUserCreated, map[string]interface{}{
		"name": user.Name,
		"role": user.Role,
	})
	cache.InvalidateUserCaches(ctx)

	return user, nil
}

// UpdateUser renames a user, reassigns their role, or resets their PIN.
// Users cannot change their own role.
func (s *UserService) UpdateUser(ctx context.Context, userID string, req *models.UpdateUserRequest, actorUserID, actorRole string, actorDealershipID *string) (*models.User, error) {
	user, err := s.Repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.canManage(actorRole, actorDealershipID, user); err != nil {
		return nil, err
	}

	changed := map[string]interface{}{}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.Validation("name cannot be empty")
		}
		if name != user.Name {
			changed["name"] = name
			user.Name = name
		}
	}

	if req.Role != nil && *req.Role != user.Role {
		if userID == actorUserID {
			return nil, apperrors.Validation("you cannot change your own role")
		}
		if err := s.validateRoleAssignment(actorRole, *req.Role); err != nil {
			return nil, err
		}
		changed["role"] = *req.Role
		user.Role = *req.Role
	}

	if len(changed) > 0 {
		if err := s.Repo.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	if req.PIN != nil {
		if err := auth.ValidatePIN(*req.PIN); err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		pinHash, err := auth.HashPIN(*req.PIN)
		if err != nil {
			return nil, err
		}
		if err := s.Repo.UpdatePINHash(ctx, userID, pinHash); err != nil {
			return nil, err
		}
		changed["pin_reset"] = true
	}

	if len(changed) > 0 && user.DealershipID != nil {
		s.logUserEvent(ctx, *user.DealershipID, actorUserID, models.ActionUserUpdated, changed)
		cache.InvalidateUserCaches(ctx)
	}

	return user, nil
}

// Deactivate disables an account without deleting it, so historical audit
// events keep a valid author. Users cannot deactivate themselves.
func (s *UserService) Deactivate(ctx context.Context, userID, actorUserID, actorRole string, actorDealershipID *string) error {
	if userID == actorUserID {
		return apperrors.Validation("you cannot deactivate your own account")
	}

	user, err := s.Repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.canManage(actorRole, actorDealershipID, user); err != nil {
		return err
	}

	if err := s.Repo.SetActive(ctx, userID, false); err != nil {
		return err
	}

	if user.DealershipID != nil {
		s.logUserEvent(ctx, *user.DealershipID, actorUserID, models.ActionUserDeactivated, map[string]interface{}{
			"name": user.Name,
		})
	}
	cache.InvalidateUserCaches(ctx)
	return nil
}

// Reactivate restores a deactivated account.
func (s *UserService) Reactivate(ctx context.Context, userID, actorUserID, actorRole string, actorDealershipID *string) error {
	user, err := s.Repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.canManage(actorRole, actorDealershipID, user); err != nil {
		return err
	}

	if err := s.Repo.SetActive(ctx, userID, true); err != nil {
		return err
	}
	cache.InvalidateUserCaches(ctx)
	return nil
}

// ChangePIN lets a user rotate their own PIN after proving the current one.
func (s *UserService) ChangePIN(ctx context.Context, userID string, req *models.ChangePINRequest) error {
	user, err := s.Repo.Get(ctx, userID)
	if err != nil {
		return err
	}

	if !auth.VerifyPIN(user.PINHash, req.CurrentPIN) {
		return apperrors.Authorization("current PIN is incorrect")
	}
	if err := auth.ValidatePIN(req.NewPIN); err != nil {
		return apperrors.Validation(err.Error())
	}

	pinHash, err := auth.HashPIN(req.NewPIN)
	if err != nil {
		return err
	}
	return s.Repo.UpdatePINHash(ctx, userID, pinHash)
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.Repo.Get(ctx, id)
}

// ListUsers returns a dealership's users, admins first.
func (s *UserService) ListUsers(ctx context.Context, dealershipID string) ([]*models.User, error) {
	return s.Repo.ListByDealership(ctx, dealershipID)
}

// canManage checks whether the actor may modify the target account. Dealership
// admins see only their own staff; a mismatch reads as not-found so the probe
// reveals nothing.
func (s *UserService) canManage(actorRole string, actorDealershipID *string, target *models.User) error {
	if target.Role == models.RoleOwner {
		return apperrors.Authorization("the owner account cannot be managed here")
	}
	switch actorRole {
	case models.RoleOwner:
		return nil
	case models.RoleDealershipAdmin:
		if actorDealershipID == nil || target.DealershipID == nil || *target.DealershipID != *actorDealershipID {
			return apperrors.NotFound("user not found")
		}
		return nil
	default:
		return apperrors.Authorization("only admins can manage users")
	}
}

func (s *UserService) validateRoleAssignment(actorRole, role string) error {
	switch actorRole {
	case models.RoleOwner:
		if role == models.RoleOwner {
			return apperrors.Validation("there is only one owner account")
		}
		if role != models.RoleDealershipAdmin && !models.IsStandardRole(role) {
			return apperrors.Validationf("invalid role: %s", role)
		}
	case models.RoleDealershipAdmin:
		if !models.IsStandardRole(role) {
			return apperrors.Validationf("invalid role: %s", role)
		}
	default:
		return apperrors.Authorization("only admins can assign roles")
	}
	return nil
}

// logUserEvent records an account action in the audit stream. A failed write
// never rolls back the account change itself.
func (s *UserService) logUserEvent(ctx context.Context, dealershipID, actorUserID, action string, details map[string]interface{}) {
	if s.Events == nil {
		return
	}
	_ = s.Events.Insert(ctx, &models.KeyEvent{
		DealershipID: dealershipID,
		ActorUserID:  &actorUserID,
		Action:       action,
		Details:      details,
	})
}
