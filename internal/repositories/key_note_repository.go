package repositories

import (
	"context"

	"keyflow-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type KeyNoteRepository struct {
	DB *pgxpool.Pool
}

func NewKeyNoteRepository(db *pgxpool.Pool) *KeyNoteRepository {
	return &KeyNoteRepository{DB: db}
}

// insertNoteTx writes a note inside an existing transaction. Checkout and
// return notes ride the session transaction so the timeline never shows a
// note without its action.
func insertNoteTx(ctx context.Context, tx pgx.Tx, keyID, authorUserID, text, noteContext string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO key_notes (id, key_id, author_user_id, text, context)
         VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), keyID, authorUserID, text, noteContext)
	return err
}

// Add writes a manual note.
func (r *KeyNoteRepository) Add(ctx context.Context, n *models.KeyNote) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Context == "" {
		n.Context = models.NoteContextManual
	}
	return r.DB.QueryRow(ctx,
		`INSERT INTO key_notes (id, key_id, author_user_id, text, context)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING created_at`,
		n.ID, n.KeyID, n.AuthorUserID, n.Text, n.Context,
	).Scan(&n.CreatedAt)
}

// ListByKey returns a key's notes with author names, newest first.
func (r *KeyNoteRepository) ListByKey(ctx context.Context, keyID string, limit int) ([]*models.KeyNote, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx,
		`SELECT n.id, n.key_id, n.author_user_id, u.name, n.text, n.context, n.created_at
         FROM key_notes n
         JOIN users u ON u.id = n.author_user_id
         WHERE n.key_id = $1
         ORDER BY n.created_at DESC
         LIMIT $2`, keyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*models.KeyNote
	for rows.Next() {
		var n models.KeyNote
		if err := rows.Scan(&n.ID, &n.KeyID, &n.AuthorUserID, &n.AuthorName, &n.Text, &n.Context, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}
