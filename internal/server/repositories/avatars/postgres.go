package avatars

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
)

// PostgresRepository implements avatar metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByUserID returns the record for userID or common.ErrNotFound.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID int64) (*models.AvatarRecord, error) {
	query := `SELECT user_id, digest, location, created_at FROM user_avatars
		WHERE user_id=$1
		`

	rec := &models.AvatarRecord{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&rec.UserID, &rec.Digest, &rec.Location, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// Upsert writes rec keyed by user_id. A concurrent writer for the same user
// simply overwrites; the last one wins.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.AvatarRecord) error {
	query := `
		INSERT INTO user_avatars (user_id, digest, location)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET
			digest = EXCLUDED.digest,
			location = EXCLUDED.location,
			created_at = now()
		RETURNING created_at
	`
	if err := r.db.QueryRowContext(ctx, query, rec.UserID, rec.Digest, rec.Location).Scan(&rec.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete removes the record for userID and reports whether one existed.
func (r *PostgresRepository) Delete(ctx context.Context, userID int64) (bool, error) {
	query := `DELETE FROM user_avatars WHERE user_id=$1`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

// Locations returns the blob location of every record.
func (r *PostgresRepository) Locations(ctx context.Context) ([]string, error) {
	query := `SELECT location FROM user_avatars`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select locations: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		result = append(result, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
