package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/repository"
)

// fileRepository implements repository.FileRepository for PostgreSQL.
type fileRepository struct {
	db *DB
}

// NewFileRepository creates a new PostgreSQL file repository.
func NewFileRepository(db *DB) repository.FileRepository {
	return &fileRepository{db: db}
}

const fileColumns = `f.id, f.project_id, f.name, f.mime_type, f.size, f.storage_key, f.uploaded_by, u.username, f.downloads, f.is_public, f.tags, f.uploaded_at`

// scanFile scans a file row joined with the uploader's username.
func scanFile(row pgx.Row) (*domain.File, error) {
	file := &domain.File{}
	err := row.Scan(
		&file.ID,
		&file.ProjectID,
		&file.Name,
		&file.MimeType,
		&file.Size,
		&file.StorageKey,
		&file.UploadedBy,
		&file.UploaderName,
		&file.Downloads,
		&file.IsPublic,
		&file.Tags,
		&file.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	if file.Tags == nil {
		file.Tags = []string{}
	}
	return file, nil
}

// Create creates a new file record.
func (r *fileRepository) Create(ctx context.Context, file *domain.File) error {
	query := `
		INSERT INTO files (project_id, name, mime_type, size, storage_key, uploaded_by, downloads, is_public, tags, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		file.ProjectID,
		file.Name,
		file.MimeType,
		file.Size,
		file.StorageKey,
		file.UploadedBy,
		file.Downloads,
		file.IsPublic,
		file.Tags,
		file.UploadedAt,
	).Scan(&file.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrProjectNotFound
		}
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

// GetByID retrieves a file by ID.
func (r *fileRepository) GetByID(ctx context.Context, id int64) (*domain.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files f
		JOIN users u ON u.id = f.uploaded_by
		WHERE f.id = $1
	`

	file, err := scanFile(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file by ID: %w", err)
	}
	return file, nil
}

// ListByProject returns all files in a project.
func (r *fileRepository) ListByProject(ctx context.Context, projectID int64, opts repository.ListOptions) (*repository.ListResult[domain.File], error) {
	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM files WHERE project_id = $1`, projectID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}

	query := `
		SELECT ` + fileColumns + `
		FROM files f
		JOIN users u ON u.id = f.uploaded_by
		WHERE f.project_id = $1
		ORDER BY f.uploaded_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, projectID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*domain.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return &repository.ListResult[domain.File]{
		Items:  files,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// Update updates file metadata (name, tags, visibility).
func (r *fileRepository) Update(ctx context.Context, file *domain.File) error {
	query := `UPDATE files SET name = $1, tags = $2, is_public = $3 WHERE id = $4`

	result, err := r.db.Pool.Exec(ctx, query, file.Name, file.Tags, file.IsPublic, file.ID)
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrFileNotFound
	}
	return nil
}

// IncrementDownloads atomically increments the download counter.
func (r *fileRepository) IncrementDownloads(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE files SET downloads = downloads + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrFileNotFound
	}
	return nil
}

// Delete deletes a file record.
func (r *fileRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrFileNotFound
	}
	return nil
}

// StorageKeysByProject returns the storage keys of all files in a project.
func (r *fileRepository) StorageKeysByProject(ctx context.Context, projectID int64) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT storage_key FROM files WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan storage key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating storage keys: %w", err)
	}

	return keys, nil
}

var _ repository.FileRepository = (*fileRepository)(nil)
