package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LoginLogRepository struct {
	DB *pgxpool.Pool
}

func NewLoginLogRepository(db *pgxpool.Pool) *LoginLogRepository {
	return &LoginLogRepository{DB: db}
}

// Create records a login attempt, successful or not.
func (r *LoginLogRepository) Create(ctx context.Context, userID, ipAddress, userAgent string, success bool) error {
	_, err := r.DB.Exec(ctx,
		`INSERT INTO login_logs (id, user_id, login_time, ip_address, user_agent, success)
         VALUES ($1, $2, NOW(), $3, $4, $5)`,
		uuid.NewString(), userID, ipAddress, userAgent, success)
	return err
}

// ListByDealership retrieves recent login activity for one dealership with
// user details joined in.
func (r *LoginLogRepository) ListByDealership(ctx context.Context, dealershipID string, limit int) ([]map[string]interface{}, error) {
	if limit <= 0 {
		limit = 200
	}
	return r.list(ctx,
		`SELECT ll.id, ll.user_id, u.name, u.role, ll.login_time, ll.ip_address, ll.user_agent, ll.success
         FROM login_logs ll
         JOIN users u ON u.id = ll.user_id
         WHERE u.dealership_id = $1
         ORDER BY ll.login_time DESC
         LIMIT $2`, dealershipID, limit)
}

// ListAll retrieves recent login activity across every dealership (owner view).
func (r *LoginLogRepository) ListAll(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	if limit <= 0 {
		limit = 200
	}
	return r.list(ctx,
		`SELECT ll.id, ll.user_id, u.name, u.role, ll.login_time, ll.ip_address, ll.user_agent, ll.success
         FROM login_logs ll
         JOIN users u ON u.id = ll.user_id
         ORDER BY ll.login_time DESC
         LIMIT $1`, limit)
}

func (r *LoginLogRepository) list(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []map[string]interface{}
	for rows.Next() {
		var (
			id        string
			userID    string
			userName  string
			role      string
			loginTime time.Time
			ipAddress string
			userAgent string
			success   bool
		)
		if err := rows.Scan(&id, &userID, &userName, &role, &loginTime, &ipAddress, &userAgent, &success); err != nil {
			return nil, err
		}

		logs = append(logs, map[string]interface{}{
			"id":         id,
			"user_id":    userID,
			"user_name":  userName,
			"role":       role,
			"login_time": loginTime,
			"ip_address": ipAddress,
			"user_agent": userAgent,
			"success":    success,
		})
	}

	return logs, rows.Err()
}
