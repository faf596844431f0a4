package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/repository"
)

// shareRepository implements repository.ShareRepository for SQLite.
type shareRepository struct {
	db *DB
}

// NewShareRepository creates a new SQLite share repository.
func NewShareRepository(db *DB) repository.ShareRepository {
	return &shareRepository{db: db}
}

const shareColumns = `id, project_id, created_by, token, password_hash, expires_at, max_downloads, current_downloads, is_active, last_accessed, created_at`

// scanShare scans a share row into a domain.Share.
func scanShare(scan func(dest ...interface{}) error) (*domain.Share, error) {
	share := &domain.Share{}
	var expiresAt, lastAccessed sql.NullString
	var maxDownloads sql.NullInt64
	var isActive int
	var createdAt string

	err := scan(
		&share.ID,
		&share.ProjectID,
		&share.CreatedBy,
		&share.Token,
		&share.PasswordHash,
		&expiresAt,
		&maxDownloads,
		&share.CurrentDownloads,
		&isActive,
		&lastAccessed,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	share.IsActive = isActive != 0
	share.ExpiresAt = parseNullTime(expiresAt)
	share.LastAccessed = parseNullTime(lastAccessed)
	if maxDownloads.Valid {
		share.MaxDownloads = &maxDownloads.Int64
	}
	share.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return share, nil
}

// Create creates a new share. At most one share may exist per project,
// enforced by the unique constraint on project_id.
func (r *shareRepository) Create(ctx context.Context, share *domain.Share) error {
	query := `
		INSERT INTO shares (project_id, created_by, token, password_hash, expires_at, max_downloads, current_downloads, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var maxDownloads interface{}
	if share.MaxDownloads != nil {
		maxDownloads = *share.MaxDownloads
	}

	result, err := r.db.ExecContext(ctx, query,
		share.ProjectID,
		share.CreatedBy,
		share.Token,
		share.PasswordHash,
		formatNullTime(share.ExpiresAt),
		maxDownloads,
		share.CurrentDownloads,
		boolToInt(share.IsActive),
		share.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrShareAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return domain.ErrProjectNotFound
		}
		return fmt.Errorf("failed to create share: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	share.ID = id

	return nil
}

// GetByToken retrieves a share by its public token.
func (r *shareRepository) GetByToken(ctx context.Context, token string) (*domain.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE token = ?`

	row := r.db.QueryRowContext(ctx, query, token)
	share, err := scanShare(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrShareNotFound
		}
		return nil, fmt.Errorf("failed to get share by token: %w", err)
	}

	return share, nil
}

// GetByProjectID retrieves the share for a project, if any.
func (r *shareRepository) GetByProjectID(ctx context.Context, projectID int64) (*domain.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE project_id = ?`

	row := r.db.QueryRowContext(ctx, query, projectID)
	share, err := scanShare(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrShareNotFound
		}
		return nil, fmt.Errorf("failed to get share by project: %w", err)
	}

	return share, nil
}

// ListByCreator returns all shares created by a user.
func (r *shareRepository) ListByCreator(ctx context.Context, userID int64) ([]*domain.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE created_by = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer rows.Close()

	var shares []*domain.Share
	for rows.Next() {
		share, err := scanShare(rows.Scan)
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
		SET password_hash = ?, expires_at = ?, max_downloads = ?, is_active = ?
		WHERE id = ?
	`

	var maxDownloads interface{}
	if share.MaxDownloads != nil {
		maxDownloads = *share.MaxDownloads
	}

	result, err := r.db.ExecContext(ctx, query,
		share.PasswordHash,
		formatNullTime(share.ExpiresAt),
		maxDownloads,
		boolToInt(share.IsActive),
		share.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update share: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrShareNotFound
	}

	return nil
}

// Deactivate marks a share inactive without deleting it.
func (r *shareRepository) Deactivate(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE shares SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate share: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
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
		SET current_downloads = current_downloads + 1, last_accessed = ?
		WHERE token = ?
		  AND is_active = 1
		  AND (expires_at IS NULL OR expires_at >= ?)
		  AND (max_downloads IS NULL OR current_downloads < max_downloads)
	`

	nowStr := now.UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, query, nowStr, token, nowStr)
	if err != nil {
		return fmt.Errorf("failed to consume share download: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// Distinguish a missing share from one that is no longer valid.
		var count int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shares WHERE token = ?`, token).Scan(&count); err != nil {
			return fmt.Errorf("failed to check share existence: %w", err)
		}
		if count == 0 {
			return domain.ErrShareNotFound
		}
		return domain.ErrShareGone
	}

	return nil
}

// DeleteByProjectID removes the share of a project.
func (r *shareRepository) DeleteByProjectID(ctx context.Context, projectID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM shares WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}
	return nil
}

// Ensure shareRepository implements repository.ShareRepository.
var _ repository.ShareRepository = (*shareRepository)(nil)
