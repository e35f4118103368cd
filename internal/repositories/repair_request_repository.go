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

type RepairRequestRepository struct {
	DB *pgxpool.Pool
}

func NewRepairRequestRepository(db *pgxpool.Pool) *RepairRequestRepository {
	return &RepairRequestRepository{DB: db}
}

func (r *RepairRequestRepository) Create(ctx context.Context, rr *models.RepairRequest) error {
	if rr.ID == "" {
		rr.ID = uuid.NewString()
	}
	rr.Status = models.RepairPending

	return r.DB.QueryRow(ctx,
		`INSERT INTO repair_requests (id, key_id, dealership_id, reported_by_user_id, notes, status)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING reported_at`,
		rr.ID, rr.KeyID, rr.DealershipID, rr.ReportedByUserID, rr.Notes, rr.Status,
	).Scan(&rr.ReportedAt)
}

// List returns repair requests for a dealership, pending first, newest first
// within each status. An empty status filters nothing.
func (r *RepairRequestRepository) List(ctx context.Context, dealershipID, status string) ([]*models.RepairRequest, error) {
	query := `SELECT rr.id, rr.key_id, rr.dealership_id, k.stock_number, rr.reported_by_user_id, rr.notes, rr.status,
                    rr.reported_at, rr.fixed_by_user_id, rr.fixed_at, rr.fix_notes
              FROM repair_requests rr
              JOIN keys k ON k.id = rr.key_id
              WHERE rr.dealership_id = $1`
	args := []interface{}{dealershipID}
	if status != "" {
		args = append(args, status)
		query += ` AND rr.status = $2`
	}
	query += ` ORDER BY rr.status = 'PENDING' DESC, rr.reported_at DESC`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*models.RepairRequest
	for rows.Next() {
		var rr models.RepairRequest
		if err := rows.Scan(&rr.ID, &rr.KeyID, &rr.DealershipID, &rr.StockNumber, &rr.ReportedByUserID,
			&rr.Notes, &rr.Status, &rr.ReportedAt, &rr.FixedByUserID, &rr.FixedAt, &rr.FixNotes); err != nil {
			return nil, err
		}
		requests = append(requests, &rr)
	}
	return requests, rows.Err()
}

// MarkFixed resolves a pending repair request. Resolving one that is already
// fixed is a conflict, matching the return-twice contract on sessions.
func (r *RepairRequestRepository) MarkFixed(ctx context.Context, dealershipID, requestID, fixedByUserID, notes string, at time.Time) (*models.RepairRequest, error) {
	var rr models.RepairRequest
	err := r.DB.QueryRow(ctx,
		`UPDATE repair_requests
         SET status = 'FIXED', fixed_by_user_id = $1, fixed_at = $2, fix_notes = $3
         WHERE id = $4 AND dealership_id = $5 AND status = 'PENDING'
         RETURNING id, key_id, dealership_id, reported_by_user_id, notes, status, reported_at, fixed_by_user_id, fixed_at, fix_notes`,
		fixedByUserID, at, notes, requestID, dealershipID).Scan(
		&rr.ID, &rr.KeyID, &rr.DealershipID, &rr.ReportedByUserID, &rr.Notes, &rr.Status,
		&rr.ReportedAt, &rr.FixedByUserID, &rr.FixedAt, &rr.FixNotes)
	if err == pgx.ErrNoRows {
		var status string
		err = r.DB.QueryRow(ctx,
			`SELECT status FROM repair_requests WHERE id = $1 AND dealership_id = $2`,
			requestID, dealershipID).Scan(&status)
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound("repair request not found")
		}
		if err != nil {
			return nil, err
		}
		return nil, apperrors.Conflict("repair request is already marked fixed")
	}
	if err != nil {
		return nil, err
	}
	return &rr, nil
}

// CountPending returns how many repair requests are waiting.
func (r *RepairRequestRepository) CountPending(ctx context.Context, dealershipID string) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM repair_requests WHERE dealership_id = $1 AND status = 'PENDING'`,
		dealershipID).Scan(&count)
	return count, err
}
