package repositories

import (
	"context"
	"errors"
	"time"

	"keyflow-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type KeyEventRepository struct {
	DB *pgxpool.Pool
}

func NewKeyEventRepository(db *pgxpool.Pool) *KeyEventRepository {
	return &KeyEventRepository{DB: db}
}

// uniqueViolation reports whether err is a Postgres unique-constraint error (23505).
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// insertEventTx appends an audit event inside an existing transaction.
// Mutations and their audit records commit or roll back together; a failed
// append must fail the whole operation.
func insertEventTx(ctx context.Context, tx pgx.Tx, e *models.KeyEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	return tx.QueryRow(ctx,
		`INSERT INTO key_events (id, dealership_id, key_id, actor_user_id, action, details)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING created_at`,
		e.ID, e.DealershipID, e.KeyID, e.ActorUserID, e.Action, e.Details,
	).Scan(&e.CreatedAt)
}

// Insert appends an audit event outside any transaction (user lifecycle,
// bulk-import summaries and other events not tied to a key mutation).
func (r *KeyEventRepository) Insert(ctx context.Context, e *models.KeyEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	return r.DB.QueryRow(ctx,
		`INSERT INTO key_events (id, dealership_id, key_id, actor_user_id, action, details)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING created_at`,
		e.ID, e.DealershipID, e.KeyID, e.ActorUserID, e.Action, e.Details,
	).Scan(&e.CreatedAt)
}

// ListByKey returns the audit trail for one key, newest first.
func (r *KeyEventRepository) ListByKey(ctx context.Context, keyID string, limit int) ([]*models.KeyEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.Query(ctx,
		`SELECT id, dealership_id, key_id, actor_user_id, action, details, created_at
         FROM key_events
         WHERE key_id = $1
         ORDER BY created_at DESC
         LIMIT $2`, keyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanKeyEvents(rows)
}

// ListByDealership returns recent events across a whole dealership, newest
// first. An empty action filters nothing.
func (r *KeyEventRepository) ListByDealership(ctx context.Context, dealershipID, action string, limit int) ([]*models.KeyEvent, error) {
	if limit <= 0 {
		limit = 200
	}

	var (
		rows pgx.Rows
		err  error
	)
	if action == "" {
		rows, err = r.DB.Query(ctx,
			`SELECT id, dealership_id, key_id, actor_user_id, action, details, created_at
             FROM key_events
             WHERE dealership_id = $1
             ORDER BY created_at DESC
             LIMIT $2`, dealershipID, limit)
	} else {
		rows, err = r.DB.Query(ctx,
			`SELECT id, dealership_id, key_id, actor_user_id, action, details, created_at
             FROM key_events
             WHERE dealership_id = $1 AND action = $2
             ORDER BY created_at DESC
             LIMIT $3`, dealershipID, action, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanKeyEvents(rows)
}

// EventLogRow is one event joined with the actor and key it touched, for
// report rendering. Deactivated users and deleted keys still resolve.
type EventLogRow struct {
	CreatedAt   time.Time              `json:"created_at"`
	Action      string                 `json:"action"`
	ActorName   string                 `json:"actor_name"`   // empty for system events
	StockNumber string                 `json:"stock_number"` // empty for user events
	Details     map[string]interface{} `json:"details"`
}

// ListLogRows returns a dealership's events within [from, to), oldest first,
// joined with actor names and stock numbers.
func (r *KeyEventRepository) ListLogRows(ctx context.Context, dealershipID string, from, to time.Time) ([]*EventLogRow, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT e.created_at, e.action, COALESCE(u.name, ''), COALESCE(k.stock_number, ''), e.details
         FROM key_events e
         LEFT JOIN users u ON u.id = e.actor_user_id
         LEFT JOIN keys k ON k.id = e.key_id
         WHERE e.dealership_id = $1 AND e.created_at >= $2 AND e.created_at < $3
         ORDER BY e.created_at ASC`, dealershipID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var log []*EventLogRow
	for rows.Next() {
		var row EventLogRow
		if err := rows.Scan(&row.CreatedAt, &row.Action, &row.ActorName, &row.StockNumber, &row.Details); err != nil {
			return nil, err
		}
		log = append(log, &row)
	}
	return log, rows.Err()
}

// CountSince returns the number of events for a dealership after the cutoff.
func (r *KeyEventRepository) CountSince(ctx context.Context, dealershipID string, since string) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM key_events
         WHERE dealership_id = $1 AND created_at > $2::timestamptz`,
		dealershipID, since).Scan(&count)
	return count, err
}

func scanKeyEvents(rows pgx.Rows) ([]*models.KeyEvent, error) {
	var events []*models.KeyEvent
	for rows.Next() {
		var e models.KeyEvent
		if err := rows.Scan(&e.ID, &e.DealershipID, &e.KeyID, &e.ActorUserID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
