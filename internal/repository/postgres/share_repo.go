package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/repository"
)

// shareRepository implements repository.ShareRepository for PostgreSQL.
type shareRepository struct {
	db *DB
}

// NewShareRepository creates a new PostgreSQL share repository.
func NewShareRepository(db *DB) repository.ShareRepository {
	return &shareRepository{db: db}
}

const shareColumns = `id, project_id, created_by, token, password_hash, expires_at, max_downloads, current_downloads, is_active, last_accessed, created_at`

// Create creates a new share. At most one share may exist per project,
// enforced by the unique constraint on project_id.
func (r *shareRepository) Create(ctx context.Context, share *domain.Share) error {
	query := `
		INSERT INTO shares (project_id, created_by, token, password_hash, expires_at, max_downloads, current_downloads, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		share.ProjectID,
		share.CreatedBy,
		share.Token,
		share.PasswordHash,
		share.ExpiresAt,
		share.MaxDownloads,
		share.CurrentDownloads,
		share.IsActive,
		share.CreatedAt,
	).Scan(&share.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505": // unique_violation
				return domain.ErrShareAlreadyExists
			case "23503": // foreign_key_violation
				return domain.ErrProjectNotFound
			}
		}
		return fmt.Errorf("failed to create share: %w", err)
	}

	return nil
}

// scanShare scans a share row into a domain.Share.
func scanShare(row pgx.Row) (*domain.Share, error) {
	share := &domain.Share{}
	err := row.Scan(
		&share.ID,
		&share.ProjectID,
		&share.CreatedBy,
		&share.Token,
		&share.PasswordHash,
		&share.ExpiresAt,
		&share.MaxDownloads,
		&share.CurrentDownloads,
		&share.IsActive,
		&share.LastAccessed,
		&share.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return share, nil
}

// GetByToken retrieves a share by its public token.
func (r *shareRepository) GetByToken(ctx context.Context, token string) (*domain.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE token = $1`

	share, err := scanShare(r.db.Pool.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrShareNotFound
		}
		return nil, fmt.Errorf("failed to get share by token: %w", err)
	}

	return share, nil
}

// GetByProjectID retrieves the share for a project, if any.
func (r *shareRepository) GetByProjectID(ctx context.Context, projectID int64) (*domain.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE project_id = $1`

	share, err := scanShare(r.db.Pool.QueryRow(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrShareNotFound
		}
		return nil, fmt.Errorf("failed to get share by project: %w", err)
	}

	return share, nil
}

// ListByCreator returns all shares created by a user.
func (r *shareRepository) ListByCreator(ctx context.Context, userID int64) ([]*domain.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE created_by = $1 ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer rows.Close()

	var shares []*domain.Share
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		shares = append(shares, share)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shares: %w", err)
	}

	return shares, nil
}

// Update updates a share's password, expiry, and download limit.
func (r *shareRepository) Update(ctx context.Context, share *domain.Share) error {
	query := `
		UPDATE shares
		SET password_hash = $1, expires_at = $2, max_downloads = $3, is_active = $4
		WHERE id = $5
	`

	result, err := r.db.Pool.Exec(ctx, query,
		share.PasswordHash,
		share.ExpiresAt,
		share.MaxDownloads,
		share.IsActive,
		share.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update share: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrShareNotFound
	}

	return nil
}

// Deactivate marks a share inactive without deleting it.
func (r *shareRepository) Deactivate(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE shares SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate share: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrShareNotFound
	}

	return nil
}

// ConsumeDownload atomically increments the download counter while the
// share is still valid. The guard clauses in the UPDATE make the
// increment-and-check a single statement, so two concurrent downloads
// can never both take the last remaining slot.
func (r *shareRepository) ConsumeDownload(ctx context.Context, token string, now time.Time) error {
	query := `
		UPDATE shares
		SET current_downloads = current_downloads + 1, last_accessed = $1
		WHERE token = $2
		  AND is_active = true
		  AND (expires_at IS NULL OR expires_at >= $1)
		  AND (max_downloads IS NULL OR current_downloads < max_downloads)
	`

	result, err := r.db.Pool.Exec(ctx, query, now.UTC(), token)
	if err != nil {
		return fmt.Errorf("failed to consume share download: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish a missing share from one that is no longer valid.
		var exists bool
		err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shares WHERE token = $1)`, token).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check share existence: %w", err)
		}
		if !exists {
			return domain.ErrShareNotFound
		}
		return domain.ErrShareGone
	}

	return nil
}

// DeleteByProjectID removes the share of a project.
func (r *shareRepository) DeleteByProjectID(ctx context.Context, projectID int64) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM shares WHERE project_id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}
	return nil
}

// Ensure shareRepository implements repository.ShareRepository.
var _ repository.ShareRepository = (*shareRepository)(nil)
