package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// attemptRetention bounds how long verification attempts are kept. Rate limit
// windows are minutes, so a day of history is already generous.
const attemptRetention = 24 * time.Hour

type TOTPRepository struct {
	DB *pgxpool.Pool
}

func NewTOTPRepository(db *pgxpool.Pool) *TOTPRepository {
	return &TOTPRepository{DB: db}
}

// FailureCounts feeds the 2FA rate limiter: recent failed attempts for one
// user and for one source address, counted over the same window.
type FailureCounts struct {
	ByUser int
	ByIP   int
}

// LogVerificationAttempt records a 2FA code check, successful or not.
func (r *TOTPRepository) LogVerificationAttempt(ctx context.Context, userID, ipAddress string, success bool) error {
	_, err := r.DB.Exec(ctx,
		`INSERT INTO totp_verification_attempts (user_id, ip_address, success) VALUES ($1, $2, $3)`,
		userID, ipAddress, success)
	return err
}

// CountRecentFailures returns both rate-limit counters in one round trip.
// since is the oldest attempt that still counts.
func (r *TOTPRepository) CountRecentFailures(ctx context.Context, userID, ipAddress string, since time.Time) (FailureCounts, error) {
	var c FailureCounts
	err := r.DB.QueryRow(ctx,
		`SELECT
             COUNT(*) FILTER (WHERE user_id = $1),
             COUNT(*) FILTER (WHERE ip_address = $2)
         FROM totp_verification_attempts
         WHERE NOT success AND created_at > $3`,
		userID, ipAddress, since).Scan(&c.ByUser, &c.ByIP)
	return c, err
}

// CleanupOldAttempts prunes attempts past the retention horizon.
func (r *TOTPRepository) CleanupOldAttempts(ctx context.Context) error {
	_, err := r.DB.Exec(ctx,
		`DELETE FROM totp_verification_attempts WHERE created_at < $1`,
		time.Now().Add(-attemptRetention))
	return err
}
