package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/repository"
)

// fileRepository implements repository.FileRepository for SQLite.
type fileRepository struct {
	db *DB
}

// NewFileRepository creates a new SQLite file repository.
func NewFileRepository(db *DB) repository.FileRepository {
	return &fileRepository{db: db}
}

const fileColumns = `f.id, f.project_id, f.name, f.mime_type, f.size, f.storage_key, f.uploaded_by, u.username, f.downloads, f.is_public, f.tags, f.uploaded_at`

// scanFile scans a file row joined with the uploader's username.
func scanFile(scan func(dest ...interface{}) error) (*domain.File, error) {
	file := &domain.File{}
	var isPublic int
	var tags, uploadedAt string

	err := scan(
		&file.ID,
		&file.ProjectID,
		&file.Name,
		&file.MimeType,
		&file.Size,
		&file.StorageKey,
		&file.UploadedBy,
		&file.UploaderName,
		&file.Downloads,
		&isPublic,
		&tags,
		&uploadedAt,
	)
	if err != nil {
		return nil, err
	}

	file.IsPublic = isPublic != 0
	file.Tags = decodeTags(tags)
	file.UploadedAt, _ = time.Parse(time.RFC3339, uploadedAt)

	return file, nil
}

// Create creates a new file record.
func (r *fileRepository) Create(ctx context.Context, file *domain.File) error {
	tags, err := encodeTags(file.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO files (project_id, name, mime_type, size, storage_key, uploaded_by, downloads, is_public, tags, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		file.ProjectID,
		file.Name,
		file.MimeType,
		file.Size,
		file.StorageKey,
		file.UploadedBy,
		file.Downloads,
		boolToInt(file.IsPublic),
		tags,
		file.UploadedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrProjectNotFound
		}
		return fmt.Errorf("failed to create file: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	file.ID = id

	return nil
}

// GetByID retrieves a file by ID.
func (r *fileRepository) GetByID(ctx context.Context, id int64) (*domain.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files f
		JOIN users u ON u.id = f.uploaded_by
		WHERE f.id = ?
	`

	row := r.db.QueryRowContext(ctx, query, id)
	file, err := scanFile(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file by ID: %w", err)
	}

	return file, nil
}

// ListByProject returns all files in a project.
func (r *fileRepository) ListByProject(ctx context.Context, projectID int64, opts repository.ListOptions) (*repository.ListResult[domain.File], error) {
	countQuery := `SELECT COUNT(*) FROM files WHERE project_id = ?`
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, projectID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}

	query := `
		SELECT ` + fileColumns + `
		FROM files f
		JOIN users u ON u.id = f.uploaded_by
		WHERE f.project_id = ?
		ORDER BY f.uploaded_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, projectID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*domain.File
	for rows.Next() {
		file, err := scanFile(rows.Scan)
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
	tags, err := encodeTags(file.Tags)
	if err != nil {
		return err
	}

	query := `
		UPDATE files
		SET name = ?, tags = ?, is_public = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		file.Name,
		tags,
		boolToInt(file.IsPublic),
		file.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrFileNotFound
	}

	return nil
}

// IncrementDownloads atomically increments the download counter.
func (r *fileRepository) IncrementDownloads(ctx context.Context, id int64) error {
	query := `UPDATE files SET downloads = downloads + 1 WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrFileNotFound
	}

	return nil
}

// Delete deletes a file record.
func (r *fileRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrFileNotFound
	}

	return nil
}

// StorageKeysByProject returns the storage keys of all files in a project.
func (r *fileRepository) StorageKeysByProject(ctx context.Context, projectID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT storage_key FROM files WHERE project_id = ?`, projectID)
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

// Ensure fileRepository implements repository.FileRepository.
var _ repository.FileRepository = (*fileRepository)(nil)
