package repositories

import (
	"context"

	"keyflow-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PDILogRepository reads the pre-delivery-inspection audit trail. Writes
// happen inside KeyRepository.UpdatePDIStatus so the status change and its
// audit row share one transaction.
type PDILogRepository struct {
	DB *pgxpool.Pool
}

func NewPDILogRepository(db *pgxpool.Pool) *PDILogRepository {
	return &PDILogRepository{DB: db}
}

func (r *PDILogRepository) ListByKey(ctx context.Context, keyID string) ([]*models.PDIAuditLog, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT p.id, p.key_id, k.stock_number, p.changed_by_user_id, p.previous_status, p.new_status, p.notes, p.changed_at
         FROM pdi_audit_logs p
         JOIN keys k ON k.id = p.key_id
         WHERE p.key_id = $1
         ORDER BY p.changed_at DESC`, keyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPDILogs(rows)
}

// ListByDealership returns recent PDI activity across a dealership.
func (r *PDILogRepository) ListByDealership(ctx context.Context, dealershipID string, limit int) ([]*models.PDIAuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.Query(ctx,
		`SELECT p.id, p.key_id, k.stock_number, p.changed_by_user_id, p.previous_status, p.new_status, p.notes, p.changed_at
         FROM pdi_audit_logs p
         JOIN keys k ON k.id = p.key_id
         WHERE k.dealership_id = $1
         ORDER BY p.changed_at DESC
         LIMIT $2`, dealershipID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPDILogs(rows)
}

func scanPDILogs(rows pgx.Rows) ([]*models.PDIAuditLog, error) {
	var logs []*models.PDIAuditLog
	for rows.Next() {
		var l models.PDIAuditLog
		if err := rows.Scan(&l.ID, &l.KeyID, &l.StockNumber, &l.ChangedByUserID,
			&l.PreviousStatus, &l.NewStatus, &l.Notes, &l.ChangedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
