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

// CheckoutSessionRepository owns the session lifecycle. Every mutating path
// locks the key row first, so checkout, return, relocation and status changes
// on the same key are serialized against each other. The partial unique index
// on (key_id) WHERE is_open is the storage-level backstop for the same
// invariant.
type CheckoutSessionRepository struct {
	DB *pgxpool.Pool
}

func NewCheckoutSessionRepository(db *pgxpool.Pool) *CheckoutSessionRepository {
	return &CheckoutSessionRepository{DB: db}
}

// Open checks out a key. The no-open-session check and the insert happen in
// one transaction under the key row lock, so two concurrent calls on the same
// key produce exactly one success and one conflict.
func (r *CheckoutSessionRepository) Open(ctx context.Context, dealershipID string, s *models.CheckoutSession) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM keys WHERE id = $1 AND dealership_id = $2 FOR UPDATE`,
		s.KeyID, dealershipID).Scan(&status)
	if err == pgx.ErrNoRows {
		return apperrors.NotFound("key not found")
	}
	if err != nil {
		return err
	}
	if status == models.KeyStatusDeleted {
		return apperrors.NotFound("key not found")
	}
	if status != models.KeyStatusActive {
		return apperrors.Conflictf("key is %s and cannot be checked out", status)
	}

	var openID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM checkout_sessions WHERE key_id = $1 AND is_open`, s.KeyID).Scan(&openID)
	if err == nil {
		return apperrors.Conflict("key is already checked out")
	}
	if err != pgx.ErrNoRows {
		return err
	}

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.IsOpen = true

	err = tx.QueryRow(ctx,
		`INSERT INTO checkout_sessions (id, key_id, checked_out_by_user_id, checked_out_at, checkout_reason, current_location, is_open, notes)
         VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
         RETURNING created_at`,
		s.ID, s.KeyID, s.CheckedOutByUserID, s.CheckedOutAt, s.CheckoutReason, s.CurrentLocation, s.Notes,
	).Scan(&s.CreatedAt)
	if uniqueViolation(err) {
		return apperrors.Conflict("key is already checked out")
	}
	if err != nil {
		return err
	}

	details := map[string]interface{}{"reason": s.CheckoutReason}
	if s.CurrentLocation != nil {
		details["location"] = *s.CurrentLocation
	}
	if err := insertEventTx(ctx, tx, &models.KeyEvent{
		DealershipID: dealershipID,
		KeyID:        &s.KeyID,
		ActorUserID:  &s.CheckedOutByUserID,
		Action:       models.ActionCheckout,
		Details:      details,
	}); err != nil {
		return err
	}

	if s.Notes != "" {
		if err := insertNoteTx(ctx, tx, s.KeyID, s.CheckedOutByUserID, s.Notes, models.NoteContextCheckout); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Close returns a key. Closing an already-closed session is a conflict, not a
// crash, and writes no audit event. isAuthorized carries the caller's elevated
// privilege; the session holder may always return their own key.
func (r *CheckoutSessionRepository) Close(ctx context.Context, dealershipID, keyID, actingUserID string, isAuthorized bool, notes string, returnedAt time.Time) (*models.CheckoutSession, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var keyExists bool
	err = tx.QueryRow(ctx,
		`SELECT status <> 'DELETED' FROM keys WHERE id = $1 AND dealership_id = $2 FOR UPDATE`,
		keyID, dealershipID).Scan(&keyExists)
	if err == pgx.ErrNoRows || (err == nil && !keyExists) {
		return nil, apperrors.NotFound("key not found")
	}
	if err != nil {
		return nil, err
	}

	var s models.CheckoutSession
	err = tx.QueryRow(ctx,
		`SELECT id, key_id, checked_out_by_user_id, checked_out_at, checkout_reason, current_location, is_open, returned_at, notes, created_at
         FROM checkout_sessions
         WHERE key_id = $1 AND is_open`, keyID).Scan(
		&s.ID, &s.KeyID, &s.CheckedOutByUserID, &s.CheckedOutAt, &s.CheckoutReason,
		&s.CurrentLocation, &s.IsOpen, &s.ReturnedAt, &s.Notes, &s.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperrors.Conflict("key is not checked out")
	}
	if err != nil {
		return nil, err
	}

	if !isAuthorized && s.CheckedOutByUserID != actingUserID {
		return nil, apperrors.Authorization("only the session holder or an admin can return this key")
	}

	_, err = tx.Exec(ctx,
		`UPDATE checkout_sessions SET is_open = FALSE, returned_at = $1 WHERE id = $2`,
		returnedAt, s.ID)
	if err != nil {
		return nil, err
	}
	s.IsOpen = false
	s.ReturnedAt = &returnedAt

	minutesOut := int(returnedAt.Sub(s.CheckedOutAt) / time.Minute)
	if minutesOut < 0 {
		minutesOut = 0
	}
	if err := insertEventTx(ctx, tx, &models.KeyEvent{
		DealershipID: dealershipID,
		KeyID:        &keyID,
		ActorUserID:  &actingUserID,
		Action:       models.ActionReturn,
		Details: map[string]interface{}{
			"checkout_reason": s.CheckoutReason,
			"minutes_out":     minutesOut,
		},
	}); err != nil {
		return nil, err
	}

	if notes != "" {
		if err := insertNoteTx(ctx, tx, keyID, actingUserID, notes, models.NoteContextReturn); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateLocation overwrites the open session's location. checked_out_at is
// untouched, so relocation never resets the alert clock.
func (r *CheckoutSessionRepository) UpdateLocation(ctx context.Context, dealershipID, keyID, newLocation, actorUserID string) (*models.CheckoutSession, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var keyExists bool
	err = tx.QueryRow(ctx,
		`SELECT status <> 'DELETED' FROM keys WHERE id = $1 AND dealership_id = $2 FOR UPDATE`,
		keyID, dealershipID).Scan(&keyExists)
	if err == pgx.ErrNoRows || (err == nil && !keyExists) {
		return nil, apperrors.NotFound("key not found")
	}
	if err != nil {
		return nil, err
	}

	var s models.CheckoutSession
	err = tx.QueryRow(ctx,
		`SELECT id, key_id, checked_out_by_user_id, checked_out_at, checkout_reason, current_location, is_open, returned_at, notes, created_at
         FROM checkout_sessions
         WHERE key_id = $1 AND is_open`, keyID).Scan(
		&s.ID, &s.KeyID, &s.CheckedOutByUserID, &s.CheckedOutAt, &s.CheckoutReason,
		&s.CurrentLocation, &s.IsOpen, &s.ReturnedAt, &s.Notes, &s.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperrors.Conflict("key is not checked out")
	}
	if err != nil {
		return nil, err
	}

	details := map[string]interface{}{"new": newLocation}
	if s.CurrentLocation != nil {
		details["old"] = *s.CurrentLocation
	}

	_, err = tx.Exec(ctx,
		`UPDATE checkout_sessions SET current_location = $1 WHERE id = $2`,
		newLocation, s.ID)
	if err != nil {
		return nil, err
	}
	s.CurrentLocation = &newLocation

	if err := insertEventTx(ctx, tx, &models.KeyEvent{
		DealershipID: dealershipID,
		KeyID:        &keyID,
		ActorUserID:  &actorUserID,
		Action:       models.ActionLocationUpdate,
		Details:      details,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetOpenByKey returns the open session for a key, or nil when there is none.
func (r *CheckoutSessionRepository) GetOpenByKey(ctx context.Context, keyID string) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	err := r.DB.QueryRow(ctx,
		`SELECT id, key_id, checked_out_by_user_id, checked_out_at, checkout_reason, current_location, is_open, returned_at, notes, created_at
         FROM checkout_sessions
         WHERE key_id = $1 AND is_open`, keyID).Scan(
		&s.ID, &s.KeyID, &s.CheckedOutByUserID, &s.CheckedOutAt, &s.CheckoutReason,
		&s.CurrentLocation, &s.IsOpen, &s.ReturnedAt, &s.Notes, &s.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListOpenByDealership returns all open sessions for a dealership, oldest
// checkout first so the longest-out keys sort to the top.
func (r *CheckoutSessionRepository) ListOpenByDealership(ctx context.Context, dealershipID string) ([]*models.CheckoutSession, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT cs.id, cs.key_id, cs.checked_out_by_user_id, cs.checked_out_at, cs.checkout_reason, cs.current_location, cs.is_open, cs.returned_at, cs.notes, cs.created_at
         FROM checkout_sessions cs
         JOIN keys k ON k.id = cs.key_id
         WHERE k.dealership_id = $1 AND cs.is_open
         ORDER BY cs.checked_out_at ASC`, dealershipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ListByKey returns a key's full session history, newest first.
func (r *CheckoutSessionRepository) ListByKey(ctx context.Context, keyID string, limit int) ([]*models.CheckoutSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx,
		`SELECT id, key_id, checked_out_by_user_id, checked_out_at, checkout_reason, current_location, is_open, returned_at, notes, created_at
         FROM checkout_sessions
         WHERE key_id = $1
         ORDER BY checked_out_at DESC
         LIMIT $2`, keyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSessions(rows)
}

// CountOpenByDealership returns how many keys are currently out.
func (r *CheckoutSessionRepository) CountOpenByDealership(ctx context.Context, dealershipID string) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx,
		`SELECT COUNT(*)
         FROM checkout_sessions cs
         JOIN keys k ON k.id = cs.key_id
         WHERE k.dealership_id = $1 AND cs.is_open`, dealershipID).Scan(&count)
	return count, err
}

func scanSessions(rows pgx.Rows) ([]*models.CheckoutSession, error) {
	var sessions []*models.CheckoutSession
	for rows.Next() {
		var s models.CheckoutSession
		if err := rows.Scan(&s.ID, &s.KeyID, &s.CheckedOutByUserID, &s.CheckedOutAt, &s.CheckoutReason,
			&s.CurrentLocation, &s.IsOpen, &s.ReturnedAt, &s.Notes, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}
