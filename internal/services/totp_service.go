package services

import (
	"context"
	"time"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/auth"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpIssuer        = "KeyFlow"
	maxFailedAttempts = 5
	rateLimitWindow   = 15 * time.Minute
)

// ErrTooManyAttempts is returned when verification is rate limited. Handlers
// map it to 429 instead of the usual authorization status.
var ErrTooManyAttempts = apperrors.Authorization("too many failed attempts, please try again later")

// TOTPService manages optional two-factor auth for the owner account. Staff
// accounts authenticate from a shared tablet on the showroom floor, where a
// second factor would defeat the point of a quick PIN.
type TOTPService struct {
	userRepo *repositories.UserRepository
	totpRepo *repositories.TOTPRepository
}

func NewTOTPService(userRepo *repositories.UserRepository, totpRepo *repositories.TOTPRepository) *TOTPService {
	return &TOTPService{
		userRepo: userRepo,
		totpRepo: totpRepo,
	}
}

// GenerateSetup creates a new TOTP secret for a user and returns the
// otpauth:// URL their authenticator app enrolls with. The secret is stored
// immediately but 2FA stays off until the first code verifies.
func (s *TOTPService) GenerateSetup(ctx context.Context, userID string) (*models.TOTPSetupResponse, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleOwner {
		return nil, apperrors.Authorization("two-factor authentication is available for the owner account only")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Name,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.SetTOTPSecret(ctx, user.ID, key.Secret()); err != nil {
		return nil, err
	}

	return &models.TOTPSetupResponse{
		Secret:      key.Secret(),
		OTPAuthURL:  key.URL(),
		Issuer:      totpIssuer,
		AccountName: user.Name,
	}, nil
}

// VerifyAndEnable verifies the first code from the authenticator app and
// turns 2FA on.
func (s *TOTPService) VerifyAndEnable(ctx context.Context, userID, code, ipAddress string) error {
	if limited, err := s.isRateLimited(ctx, userID, ipAddress); err != nil {
		return err
	} else if limited {
		return ErrTooManyAttempts
	}

	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == "" {
		return apperrors.Conflict("two-factor setup has not been started")
	}

	if !totp.Validate(code, user.TOTPSecret) {
		s.totpRepo.LogVerificationAttempt(ctx, userID, ipAddress, false)
		return apperrors.Authorization("invalid verification code")
	}
	s.totpRepo.LogVerificationAttempt(ctx, userID, ipAddress, true)

	return s.userRepo.EnableTOTP(ctx, userID)
}

// Verify validates a TOTP code during the second login step.
func (s *TOTPService) Verify(ctx context.Context, userID, code, ipAddress string) error {
	if limited, err := s.isRateLimited(ctx, userID, ipAddress); err != nil {
		return err
	} else if limited {
		return ErrTooManyAttempts
	}

	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TOTPEnabled || user.TOTPSecret == "" {
		return apperrors.Conflict("two-factor authentication is not enabled")
	}

	if !totp.Validate(code, user.TOTPSecret) {
		s.totpRepo.LogVerificationAttempt(ctx, userID, ipAddress, false)
		return apperrors.Authorization("invalid verification code")
	}

	s.totpRepo.LogVerificationAttempt(ctx, userID, ipAddress, true)
	return nil
}

// Disable turns 2FA off after verifying both the PIN and a current code.
func (s *TOTPService) Disable(ctx context.Context, userID, pin, code string) error {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}

	if !auth.VerifyPIN(user.PINHash, pin) {
		return apperrors.Authorization("invalid PIN")
	}
	if !totp.Validate(code, user.TOTPSecret) {
		return apperrors.Authorization("invalid verification code")
	}

	return s.userRepo.DisableTOTP(ctx, userID)
}

// GetStatus returns whether 2FA is enabled for a user.
func (s *TOTPService) GetStatus(ctx context.Context, userID string) (*models.User2FAStatus, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.User2FAStatus{Enabled: user.TOTPEnabled}, nil
}

// CleanupOldAttempts prunes the verification attempt log. Called from the
// background maintenance loop.
func (s *TOTPService) CleanupOldAttempts(ctx context.Context) error {
	return s.totpRepo.CleanupOldAttempts(ctx)
}

// isRateLimited checks failed-attempt counts per user and per source IP.
func (s *TOTPService) isRateLimited(ctx context.Context, userID, ipAddress string) (bool, error) {
	counts, err := s.totpRepo.CountRecentFailures(ctx, userID, ipAddress, time.Now().Add(-rateLimitWindow))
	if err != nil {
		return false, err
	}
	if counts.ByUser >= maxFailedAttempts {
		return true, nil
	}
	// Shared IPs (dealership NAT) get a higher ceiling.
	return counts.ByIP >= maxFailedAttempts*2, nil
}
