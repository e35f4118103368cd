package auth

import (
	"errors"
	"time"

	"keyflow-backend/internal/config"
	"keyflow-backend/internal/models"
	"keyflow-backend/internal/timeutil"

	"github.com/golang-jwt/jwt/v5"
)

// tempTokenType marks the short-lived token issued between the PIN step and
// the TOTP step of an owner login.
const tempTokenType = "2fa_pending"

// tempTokenTTL bounds how long a 2FA challenge stays answerable.
const tempTokenTTL = 5 * time.Minute

type Claims struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	DealershipID string `json:"dealership_id,omitempty"`
	IsActive     bool   `json:"is_active"`
	jwt.RegisteredClaims
}

// TempClaims is the half-logged-in token between login step 1 and step 2.
type TempClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	cfg *config.Config
}

func NewJWTManager(cfg *config.Config) *JWTManager {
	return &JWTManager{cfg: cfg}
}

// GenerateToken mints the session token carrying identity and dealership
// scope. The auth middleware re-checks the user row on every request, so a
// token outliving a deactivation does not matter.
func (j *JWTManager) GenerateToken(user *models.User) (string, error) {
	dealershipID := ""
	if user.DealershipID != nil {
		dealershipID = *user.DealershipID
	}

	return j.sign(&Claims{
		UserID:           user.ID,
		Name:             user.Name,
		Role:             user.Role,
		DealershipID:     dealershipID,
		IsActive:         user.IsActive,
		RegisteredClaims: j.registered(time.Duration(j.cfg.JWT.ExpirationHours) * time.Hour),
	})
}

// GenerateTempToken mints the short-lived token that bridges the PIN check
// and the TOTP check during an owner login.
func (j *JWTManager) GenerateTempToken(user *models.User) (string, error) {
	return j.sign(&TempClaims{
		UserID:           user.ID,
		Name:             user.Name,
		Type:             tempTokenType,
		RegisteredClaims: j.registered(tempTokenTTL),
	})
}

// ValidateToken verifies a session token and returns its claims.
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := j.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateTempToken verifies a 2FA bridge token and returns its claims.
func (j *JWTManager) ValidateTempToken(tokenString string) (*TempClaims, error) {
	claims := &TempClaims{}
	if err := j.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Type != tempTokenType {
		return nil, errors.New("invalid token type")
	}
	return claims, nil
}

func (j *JWTManager) registered(ttl time.Duration) jwt.RegisteredClaims {
	now := timeutil.Now()
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    j.cfg.JWT.Issuer,
	}
}

func (j *JWTManager) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(j.cfg.JWT.Secret))
}

// parse rejects wrong algorithms and wrong issuers before trusting a token.
func (j *JWTManager) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return []byte(j.cfg.JWT.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.cfg.JWT.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
