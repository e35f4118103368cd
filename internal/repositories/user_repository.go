package repositories

import (
	"context"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	DB *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = `id, dealership_id, name, role, pin_hash, COALESCE(totp_enabled, false), COALESCE(totp_secret, ''), is_active, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.IsActive = true

	err := r.DB.QueryRow(ctx,
		`INSERT INTO users (id, dealership_id, name, role, pin_hash, is_active)
         VALUES ($1, $2, $3, $4, $5, TRUE)
         RETURNING created_at, updated_at`,
		u.ID, u.DealershipID, u.Name, u.Role, u.PINHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if uniqueViolation(err) {
		return apperrors.Conflictf("name %s is already taken at this dealership", u.Name)
	}
	return err
}

func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByName resolves a login: name is matched case-insensitively within one
// dealership. The owner account has no dealership; pass nil.
func (r *UserRepository) GetByName(ctx context.Context, dealershipID *string, name string) (*models.User, error) {
	var row pgx.Row
	if dealershipID == nil {
		row = r.DB.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users
             WHERE dealership_id IS NULL AND LOWER(name) = LOWER($1) AND is_active`, name)
	} else {
		row = r.DB.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users
             WHERE dealership_id = $1 AND LOWER(name) = LOWER($2) AND is_active`, *dealershipID, name)
	}
	return scanUser(row)
}

// ListByDealership returns a dealership's users, admins first.
func (r *UserRepository) ListByDealership(ctx context.Context, dealershipID string) ([]*models.User, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+userColumns+` FROM users
         WHERE dealership_id = $1
         ORDER BY role = 'dealership_admin' DESC, name ASC`, dealershipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update rewrites name and role. The PIN hash is changed only through
// UpdatePINHash so a blank field never wipes a credential.
func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE users SET name = $1, role = $2, updated_at = NOW() WHERE id = $3`,
		u.Name, u.Role, u.ID)
	if uniqueViolation(err) {
		return apperrors.Conflictf("name %s is already taken at this dealership", u.Name)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

func (r *UserRepository) UpdatePINHash(ctx context.Context, userID, pinHash string) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE users SET pin_hash = $1, updated_at = NOW() WHERE id = $2`, pinHash, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

// SetActive deactivates or reactivates a user. Deactivated users keep their
// rows; audit events reference them forever.
func (r *UserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

// SetTOTPSecret stores the TOTP secret during setup, before verification.
func (r *UserRepository) SetTOTPSecret(ctx context.Context, userID, secret string) error {
	_, err := r.DB.Exec(ctx,
		`UPDATE users SET totp_secret = $1, updated_at = NOW() WHERE id = $2`, secret, userID)
	return err
}

// EnableTOTP marks 2FA as enabled after the first code verifies.
func (r *UserRepository) EnableTOTP(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx,
		`UPDATE users SET totp_enabled = TRUE, updated_at = NOW() WHERE id = $1`, userID)
	return err
}

// DisableTOTP disables 2FA and clears the secret.
func (r *UserRepository) DisableTOTP(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx,
		`UPDATE users SET totp_enabled = FALSE, totp_secret = NULL, updated_at = NOW() WHERE id = $1`, userID)
	return err
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.DealershipID, &u.Name, &u.Role, &u.PINHash,
		&u.TOTPEnabled, &u.TOTPSecret, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
