package repositories

import (
	"context"

	"keyflow-backend/internal/apperrors"
	"keyflow-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DealershipRepository struct {
	DB *pgxpool.Pool
}

func NewDealershipRepository(db *pgxpool.Pool) *DealershipRepository {
	return &DealershipRepository{DB: db}
}

func (r *DealershipRepository) Create(ctx context.Context, d *models.Dealership) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.YellowMinutes == 0 {
		d.YellowMinutes = models.DefaultYellowMinutes
	}
	if d.RedMinutes == 0 {
		d.RedMinutes = models.DefaultRedMinutes
	}
	d.IsActive = true

	return r.DB.QueryRow(ctx,
		`INSERT INTO dealerships (id, name, dealer_type, logo_url, yellow_minutes, red_minutes, service_bays, is_active)
         VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
         RETURNING created_at, updated_at`,
		d.ID, d.Name, d.DealerType, d.LogoURL, d.YellowMinutes, d.RedMinutes, d.ServiceBays,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *DealershipRepository) Get(ctx context.Context, id string) (*models.Dealership, error) {
	var d models.Dealership
	err := r.DB.QueryRow(ctx,
		`SELECT id, name, dealer_type, logo_url, yellow_minutes, red_minutes, service_bays, is_active, created_at, updated_at
         FROM dealerships WHERE id = $1`, id).Scan(
		&d.ID, &d.Name, &d.DealerType, &d.LogoURL, &d.YellowMinutes, &d.RedMinutes,
		&d.ServiceBays, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("dealership not found")
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DealershipRepository) List(ctx context.Context) ([]*models.Dealership, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, name, dealer_type, logo_url, yellow_minutes, red_minutes, service_bays, is_active, created_at, updated_at
         FROM dealerships ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dealerships []*models.Dealership
	for rows.Next() {
		var d models.Dealership
		if err := rows.Scan(&d.ID, &d.Name, &d.DealerType, &d.LogoURL, &d.YellowMinutes,
			&d.RedMinutes, &d.ServiceBays, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		dealerships = append(dealerships, &d)
	}
	return dealerships, rows.Err()
}

// Update rewrites name, logo and bay count. Dealer type is fixed at creation
// and never changes; reasons and statuses legal for existing keys depend on it.
func (r *DealershipRepository) Update(ctx context.Context, d *models.Dealership) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE dealerships SET name = $1, logo_url = $2, service_bays = $3, updated_at = NOW()
         WHERE id = $4`,
		d.Name, d.LogoURL, d.ServiceBays, d.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("dealership not found")
	}
	return nil
}

// UpdateAlertSettings writes new thresholds. The service validates
// 0 < yellow < red before calling; the table CHECK constraint backs it up.
func (r *DealershipRepository) UpdateAlertSettings(ctx context.Context, id string, yellow, red int) (*models.Dealership, error) {
	var d models.Dealership
	err := r.DB.QueryRow(ctx,
		`UPDATE dealerships SET yellow_minutes = $1, red_minutes = $2, updated_at = NOW()
         WHERE id = $3
         RETURNING id, name, dealer_type, logo_url, yellow_minutes, red_minutes, service_bays, is_active, created_at, updated_at`,
		yellow, red, id).Scan(
		&d.ID, &d.Name, &d.DealerType, &d.LogoURL, &d.YellowMinutes, &d.RedMinutes,
		&d.ServiceBays, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("dealership not found")
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SetActive toggles a dealership on or off without deleting its history.
func (r *DealershipRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE dealerships SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("dealership not found")
	}
	return nil
}

// GetPolicy returns just the alert thresholds and dealer type, the slice of
// dealership state every checkout-side operation reads.
func (r *DealershipRepository) GetPolicy(ctx context.Context, id string) (*models.AlertPolicy, error) {
	var p models.AlertPolicy
	err := r.DB.QueryRow(ctx,
		`SELECT yellow_minutes, red_minutes, dealer_type FROM dealerships WHERE id = $1`, id).Scan(
		&p.YellowMinutes, &p.RedMinutes, &p.DealerType)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("dealership not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
