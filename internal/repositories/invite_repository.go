package repositories

import (
	"context"
	"time"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InviteRepository struct {
	DB *pgxpool.Pool
}

func NewInviteRepository(db *pgxpool.Pool) *InviteRepository {
	return &InviteRepository{DB: db}
}

func (r *InviteRepository) Create(ctx context.Context, inv *models.Invite) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	return r.DB.QueryRow(ctx,
		`INSERT INTO invites (id, token, dealership_id, role, created_by_user_id, expires_at)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING created_at`,
		inv.ID, inv.Token, inv.DealershipID, inv.Role, inv.CreatedByUserID, inv.ExpiresAt,
	).Scan(&inv.CreatedAt)
}

func (r *InviteRepository) GetByToken(ctx context.Context, token string) (*models.Invite, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, token, dealership_id, role, created_by_user_id, created_at, expires_at, is_used, used_by_user_id, used_at
         FROM invites WHERE token = $1`, token)
	return scanInvite(row)
}

func (r *InviteRepository) ListByDealership(ctx context.Context, dealershipID string) ([]*models.Invite, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, token, dealership_id, role, created_by_user_id, created_at, expires_at, is_used, used_by_user_id, used_at
         FROM invites WHERE dealership_id = $1
         ORDER BY created_at DESC`, dealershipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []*models.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// Claim consumes an invite and creates the invited user in one transaction.
// The invite row is locked so two claims on the same token cannot both win.
func (r *InviteRepository) Claim(ctx context.Context, token string, u *models.User, now time.Time) (*models.Invite, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT id, token, dealership_id, role, created_by_user_id, created_at, expires_at, is_used, used_by_user_id, used_at
         FROM invites WHERE token = $1 FOR UPDATE`, token)
	inv, err := scanInvite(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("invite not found")
	}
	if err != nil {
		return nil, err
	}
	if inv.IsUsed {
		return nil, apperrors.Conflict("invite has already been used")
	}
	if now.After(inv.ExpiresAt) {
		return nil, apperrors.Validation("invite has expired")
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.DealershipID = &inv.DealershipID
	u.Role = inv.Role
	u.IsActive = true

	err = tx.QueryRow(ctx,
		`INSERT INTO users (id, dealership_id, name, role, pin_hash, is_active)
         VALUES ($1, $2, $3, $4, $5, TRUE)
         RETURNING created_at, updated_at`,
		u.ID, u.DealershipID, u.Name, u.Role, u.PINHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if uniqueViolation(err) {
		return nil, apperrors.Conflictf("name %s is already taken at this dealership", u.Name)
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE invites SET is_used = TRUE, used_by_user_id = $1, used_at = $2 WHERE id = $3`,
		u.ID, now, inv.ID); err != nil {
		return nil, err
	}
	inv.IsUsed = true
	inv.UsedByUserID = &u.ID
	inv.UsedAt = &now

	if err := insertEventTx(ctx, tx, &models.KeyEvent{
		DealershipID: inv.DealershipID,
		ActorUserID:  &u.ID,
		Action:       models.ActionUserCreated,
		Details:      map[string]interface{}{"name": u.Name, "role": u.Role, "via": "invite"},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return inv, nil
}

// Revoke deletes an unused invite. Claimed invites stay for the record.
func (r *InviteRepository) Revoke(ctx context.Context, dealershipID, inviteID string) error {
	tag, err := r.DB.Exec(ctx,
		`DELETE FROM invites WHERE id = $1 AND dealership_id = $2 AND NOT is_used`,
		inviteID, dealershipID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("invite not found or already used")
	}
	return nil
}

func scanInvite(row pgx.Row) (*models.Invite, error) {
	var inv models.Invite
	err := row.Scan(&inv.ID, &inv.Token, &inv.DealershipID, &inv.Role, &inv.CreatedByUserID,
		&inv.CreatedAt, &inv.ExpiresAt, &inv.IsUsed, &inv.UsedByUserID, &inv.UsedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
