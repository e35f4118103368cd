package repositories

import (
	"context"
	"fmt"
	"time"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// KeyWithSession pairs a key row with its open session, if any. Derived
// fields (elapsed minutes, alert state) are computed by the service layer at
// read time, never stored.
type KeyWithSession struct {
	Key     models.Key
	Session *models.CheckoutSession
}

type KeyRepository struct {
	DB *pgxpool.Pool
}

func NewKeyRepository(db *pgxpool.Pool) *KeyRepository {
	return &KeyRepository{DB: db}
}

const keyColumns = `k.id, k.dealership_id, k.stock_number, k.category, k.status, k.vehicle_year,
       k.vehicle_make, k.vehicle_model, k.vehicle_vin, k.color, k.pdi_status, k.photos, k.created_at, k.updated_at`

// Create inserts a key and its CREATE_KEY audit event in one transaction.
// Duplicate stock numbers surface as a conflict via the partial unique index.
func (r *KeyRepository) Create(ctx context.Context, k *models.Key, actorUserID string) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	if k.Status == "" {
		k.Status = models.KeyStatusActive
	}
	if k.PDIStatus == "" {
		k.PDIStatus = models.PDINotYet
	}
	if k.Photos == nil {
		k.Photos = []string{}
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO keys (id, dealership_id, stock_number, category, status, vehicle_year, vehicle_make, vehicle_model, vehicle_vin, color, pdi_status, photos)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
         RETURNING created_at, updated_at`,
		k.ID, k.DealershipID, k.StockNumber, k.Category, k.Status, k.VehicleYear,
		k.VehicleMake, k.VehicleModel, k.VehicleVIN, k.Color, k.PDIStatus, k.Photos,
	).Scan(&k.CreatedAt, &k.UpdatedAt)
	if uniqueViolation(err) {
		return apperrors.Conflictf("stock number %s is already in use", k.StockNumber)
	}
	if err != nil {
		return err
	}

	if err := insertEventTx(ctx, tx, &models.KeyEvent{
		DealershipID: k.DealershipID,
		KeyID:        &k.ID,
		ActorUserID:  &actorUserID,
		Action:       models.ActionCreateKey,
		Details:      map[string]interface{}{"stock_number": k.StockNumber, "category": k.Category},
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Get returns one key with its open session. Deleted keys are invisible.
func (r *KeyRepository) Get(ctx context.Context, dealershipID, keyID string) (*KeyWithSession, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT `+keyColumns+`,
               cs.id, cs.checked_out_by_user_id, cs.checked_out_at, cs.checkout_reason, cs.current_location, cs.notes, cs.created_at
         FROM keys k
         LEFT JOIN checkout_sessions cs ON cs.key_id = k.id AND cs.is_open
         WHERE k.id = $1 AND k.dealership_id = $2 AND k.status <> 'DELETED'`, keyID, dealershipID)

	ks, err := scanKeyWithSession(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("key not found")
	}
	if err != nil {
		return nil, err
	}
	return ks, nil
}

// GetByStockNumber looks a key up by its stock number, case-insensitive.
func (r *KeyRepository) GetByStockNumber(ctx context.Context, dealershipID, stockNumber string) (*KeyWithSession, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT `+keyColumns+`,
               cs.id, cs.checked_out_by_user_id, cs.checked_out_at, cs.checkout_reason, cs.current_location, cs.notes, cs.created_at
         FROM keys k
         LEFT JOIN checkout_sessions cs ON cs.key_id = k.id AND cs.is_open
         WHERE k.dealership_id = $1 AND LOWER(k.stock_number) = LOWER($2) AND k.status <> 'DELETED'`,
		dealershipID, stockNumber)

	ks, err := scanKeyWithSession(row)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("key not found")
	}
	if err != nil {
		return nil, err
	}
	return ks, nil
}

// List returns a dealership's keys with their open sessions. status, category
// and search are optional filters; an empty string filters nothing. Deleted
// keys never appear.
func (r *KeyRepository) List(ctx context.Context, dealershipID, status, category, search string) ([]*KeyWithSession, error) {
	query := `SELECT ` + keyColumns + `,
               cs.id, cs.checked_out_by_user_id, cs.checked_out_at, cs.checkout_reason, cs.current_location, cs.notes, cs.created_at
         FROM keys k
         LEFT JOIN checkout_sessions cs ON cs.key_id = k.id AND cs.is_open
         WHERE k.dealership_id = $1 AND k.status <> 'DELETED'`
	args := []interface{}{dealershipID}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(` AND k.status = $%d`, len(args))
	}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(` AND k.category = $%d`, len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(` AND (k.stock_number ILIKE $%d OR k.vehicle_model ILIKE $%d OR k.vehicle_vin ILIKE $%d)`,
			len(args), len(args), len(args))
	}
	query += ` ORDER BY k.stock_number ASC`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*KeyWithSession
	for rows.Next() {
		ks, err := scanKeyWithSession(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, ks)
	}
	return keys, rows.Err()
}

// Update rewrites the descriptive fields and appends an UPDATE_KEY event with
// the change set the service computed. Category and status are not touched
// here; status moves only through ChangeStatus and Delete.
func (r *KeyRepository) Update(ctx context.Context, k *models.Key, actorUserID string, changed map[string]interface{}) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE keys
         SET stock_number = $1, vehicle_year = $2, vehicle_make = $3, vehicle_model = $4,
             vehicle_vin = $5, color = $6, updated_at = NOW()
         WHERE id = $7 AND dealership_id = $8 AND status <> 'DELETED'`,
		k.StockNumber, k.VehicleYear, k.VehicleMake, k.VehicleModel, k.VehicleVIN, k.Color,
		k.ID, k.DealershipID)
	if uniqueViolation(err) {
		return apperrors.Conflictf("stock number %s is already in use", k.StockNumber)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("key not found")
	}

	if err := insertEventTx(ctx, tx, &models.KeyEvent{
		DealershipID: k.DealershipID,
		KeyID:        &k.ID,
		ActorUserID:  &actorUserID,
		Action:       models.ActionUpdateKey,
		Details:      changed,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ChangeStatus moves a key through the status graph under the key row lock,
// serialized against checkout and return on the same key. An open session
// blocks every transition.
func (r *KeyRepository) ChangeStatus(ctx context.Context, dealershipID, keyID, newStatus, actorUserID string) (*models.Key, error) {
	return r.transition(ctx, dealershipID, keyID, newStatus, actorUserID, models.ActionStatusChange)
}

// Delete retires a key. DELETED is terminal and reachable only from ACTIVE;
// the row survives for session history and audit.
func (r *KeyRepository) Delete(ctx context.Context, dealershipID, keyID, actorUserID string) error {
	_, err := r.transition(ctx, dealershipID, keyID, models.KeyStatusDeleted, actorUserID, models.ActionDeleteKey)
	return err
}

func (r *KeyRepository) transition(ctx context.Context, dealershipID, keyID, newStatus, actorUserID, action string) (*models.Key, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx,
		`SELECT status FROM keys WHERE id = $1 AND dealership_id = $2 FOR UPDATE`,
		keyID, dealershipID).Scan(&current)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("key not found")
	}
	if err != nil {
		return nil, err
	}
	if current == models.KeyStatusDeleted {
		return nil, apperrors.NotFound("key not found")
	}
	if !models.CanTransition(current, newStatus) {
		return nil, apperrors.Validationf("cannot change status from %s to %s", current, newStatus)
	}

	var openID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM checkout_sessions WHERE key_id = $1 AND is_open`, keyID).Scan(&openID)
	if err == nil {
		return nil, apperrors.Conflict("key is checked out; return it before changing status")
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	var k models.Key
	err = tx.QueryRow(ctx,
		`UPDATE keys SET status = $1, updated_at = NOW()
         WHERE id = $2
         RETURNING id, dealership_id, stock_number, category, status, vehicle_year, vehicle_make, vehicle_model, vehicle_vin, color, pdi_status, photos, created_at, updated_at`,
		newStatus, keyID).Scan(
		&k.ID, &k.DealershipID, &k.StockNumber, &k.Category, &k.Status, &k.VehicleYear,
		&k.VehicleMake, &k.VehicleModel, &k.VehicleVIN, &k.Color, &k.PDIStatus, &k.Photos,
		&k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := insertEventTx(ctx, tx, &models.KeyEvent{
		DealershipID: dealershipID,
		KeyID:        &keyID,
		ActorUserID:  &actorUserID,
		Action:       action,
		Details:      map[string]interface{}{"from": current, "to": newStatus},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &k, nil
}

// UpdatePDIStatus records a pre-delivery inspection step with its audit row.
func (r *KeyRepository) UpdatePDIStatus(ctx context.Context, dealershipID, keyID, newStatus, notes, actorUserID string) (string, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var current, status string
	err = tx.QueryRow(ctx,
		`SELECT pdi_status, status FROM keys WHERE id = $1 AND dealership_id = $2 FOR UPDATE`,
		keyID, dealershipID).Scan(&current, &status)
	if err == pgx.ErrNoRows {
		return "", apperrors.NotFound("key not found")
	}
	if err != nil {
		return "", err
	}
	if status == models.KeyStatusDeleted {
		return "", apperrors.NotFound("key not found")
	}

	if _, err := tx.Exec(ctx,
		`UPDATE keys SET pdi_status = $1, updated_at = NOW() WHERE id = $2`,
		newStatus, keyID); err != nil {
		return "", err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO pdi_audit_logs (id, key_id, changed_by_user_id, previous_status, new_status, notes)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), keyID, actorUserID, current, newStatus, notes); err != nil {
		return "", err
	}

	if err := insertEventTx(ctx, tx, &models.KeyEvent{
		DealershipID: dealershipID,
		KeyID:        &keyID,
		ActorUserID:  &actorUserID,
		Action:       models.ActionPDIUpdate,
		Details:      map[string]interface{}{"from": current, "to": newStatus},
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return current, nil
}

// AddPhoto appends one photo URL. A key holds at most three.
func (r *KeyRepository) AddPhoto(ctx context.Context, dealershipID, keyID, url, actorUserID string) ([]string, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var photos []string
	err = tx.QueryRow(ctx,
		`SELECT photos FROM keys WHERE id = $1 AND dealership_id = $2 AND status <> 'DELETED' FOR UPDATE`,
		keyID, dealershipID).Scan(&photos)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("key not found")
	}
	if err != nil {
		return nil, err
	}
	if len(photos) >= 3 {
		return nil, apperrors.Validation("a key holds at most 3 photos")
	}

	photos = append(photos, url)
	if _, err := tx.Exec(ctx,
		`UPDATE keys SET photos = $1, updated_at = NOW() WHERE id = $2`, photos, keyID); err != nil {
		return nil, err
	}

	if err := insertEventTx(ctx, tx, &models.KeyEvent{
		DealershipID: dealershipID,
		KeyID:        &keyID,
		ActorUserID:  &actorUserID,
		Action:       models.ActionUpdateKey,
		Details:      map[string]interface{}{"photo_added": url},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return photos, nil
}

// RemovePhoto drops one photo URL from the key.
func (r *KeyRepository) RemovePhoto(ctx context.Context, dealershipID, keyID, url, actorUserID string) ([]string, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var photos []string
	err = tx.QueryRow(ctx,
		`UPDATE keys SET photos = array_remove(photos, $1), updated_at = NOW()
         WHERE id = $2 AND dealership_id = $3 AND status <> 'DELETED'
         RETURNING photos`,
		url, keyID, dealershipID).Scan(&photos)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("key not found")
	}
	if err != nil {
		return nil, err
	}

	if err := insertEventTx(ctx, tx, &models.KeyEvent{
		DealershipID: dealershipID,
		KeyID:        &keyID,
		ActorUserID:  &actorUserID,
		Action:       models.ActionUpdateKey,
		Details:      map[string]interface{}{"photo_removed": url},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return photos, nil
}

// CountByStatus returns key counts per status, deleted keys excluded.
func (r *KeyRepository) CountByStatus(ctx context.Context, dealershipID string) (map[string]int, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT status, COUNT(*) FROM keys
         WHERE dealership_id = $1 AND status <> 'DELETED'
         GROUP BY status`, dealershipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// scanKeyWithSession reads the key columns plus the LEFT JOINed open-session
// columns from one row. All session columns are NULL when no session is open.
func scanKeyWithSession(row pgx.Row) (*KeyWithSession, error) {
	var (
		ks        KeyWithSession
		sessionID *string
		byUser    *string
		outAt     *time.Time
		reason    *string
		location  *string
		notes     *string
		createdAt *time.Time
	)
	err := row.Scan(
		&ks.Key.ID, &ks.Key.DealershipID, &ks.Key.StockNumber, &ks.Key.Category, &ks.Key.Status,
		&ks.Key.VehicleYear, &ks.Key.VehicleMake, &ks.Key.VehicleModel, &ks.Key.VehicleVIN,
		&ks.Key.Color, &ks.Key.PDIStatus, &ks.Key.Photos, &ks.Key.CreatedAt, &ks.Key.UpdatedAt,
		&sessionID, &byUser, &outAt, &reason, &location, &notes, &createdAt)
	if err != nil {
		return nil, err
	}

	if sessionID != nil {
		ks.Session = &models.CheckoutSession{
			ID:                 *sessionID,
			KeyID:              ks.Key.ID,
			CheckedOutByUserID: *byUser,
			CheckedOutAt:       *outAt,
			CheckoutReason:     *reason,
			CurrentLocation:    location,
			IsOpen:             true,
			CreatedAt:          *createdAt,
		}
		if notes != nil {
			ks.Session.Notes = *notes
		}
	}
	return &ks, nil
}
