package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/repository"
)

// projectRepository implements repository.ProjectRepository for SQLite.
type projectRepository struct {
	db *DB
}

// NewProjectRepository creates a new SQLite project repository.
func NewProjectRepository(db *DB) repository.ProjectRepository {
	return &projectRepository{db: db}
}

// Create creates a new project.
func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	tags, err := encodeTags(project.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO projects (name, description, tags, is_public, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		project.Name,
		project.Description,
		tags,
		boolToInt(project.IsPublic),
		project.OwnerID,
		project.CreatedAt.Format(time.RFC3339),
		project.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	project.ID = id

	return nil
}

const projectColumns = `p.id, p.name, p.description, p.tags, p.is_public, p.owner_id, u.username, p.created_at, p.updated_at`

// scanProject scans a project row joined with the owner's username.
func scanProject(scan func(dest ...interface{}) error) (*domain.Project, error) {
	project := &domain.Project{}
	var tags string
	var isPublic int
	var createdAt, updatedAt string

	err := scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&tags,
		&isPublic,
		&project.OwnerID,
		&project.OwnerName,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	project.IsPublic = isPublic != 0
	project.Tags = decodeTags(tags)
	project.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	project.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return project, nil
}

// GetByID retrieves a project by ID, including its collaborators.
func (r *projectRepository) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects p
		JOIN users u ON u.id = p.owner_id
		WHERE p.id = ?
	`

	row := r.db.QueryRowContext(ctx, query, id)
	project, err := scanProject(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project by ID: %w", err)
	}

	collaborators, err := r.ListCollaborators(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, c := range collaborators {
		project.Collaborators = append(project.Collaborators, *c)
	}

	return project, nil
}

// ListForUser returns projects the user owns or collaborates on,
// most recently updated first.
func (r *projectRepository) ListForUser(ctx context.Context, userID int64, opts repository.ListOptions) (*repository.ListResult[domain.Project], error) {
	where := `WHERE p.owner_id = ?
		OR EXISTS (SELECT 1 FROM collaborators c WHERE c.project_id = p.id AND c.user_id = ?)`
	args := []interface{}{userID, userID}

	countQuery := `SELECT COUNT(*) FROM projects p ` + where
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}

	query := `
		SELECT ` + projectColumns + `
		FROM projects p
		JOIN users u ON u.id = p.owner_id
		` + where + `
		ORDER BY p.updated_at DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		project, err := scanProject(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return &repository.ListResult[domain.Project]{
		Items:  projects,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// Update updates a project's name, description, tags, and visibility.
func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	project.UpdatedAt = time.Now().UTC()

	tags, err := encodeTags(project.Tags)
	if err != nil {
		return err
	}

	query := `
		UPDATE projects
		SET name = ?, description = ?, tags = ?, is_public = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		project.Name,
		project.Description,
		tags,
		boolToInt(project.IsPublic),
		project.UpdatedAt.Format(time.RFC3339),
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrProjectNotFound
	}

	return nil
}

// Delete deletes a project and its dependent rows in one transaction.
// Files, shares, collaborators, and messages go first so the cascade
// holds even when foreign key enforcement is off.
func (r *projectRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, query := range []string{
			`DELETE FROM messages WHERE project_id = ?`,
			`DELETE FROM shares WHERE project_id = ?`,
			`DELETE FROM files WHERE project_id = ?`,
			`DELETE FROM collaborators WHERE project_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, query, id); err != nil {
				return fmt.Errorf("failed to delete project dependents: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}

		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return domain.ErrProjectNotFound
		}

		return nil
	})
}

// AddCollaborator adds a user to a project with the given permission.
func (r *projectRepository) AddCollaborator(ctx context.Context, projectID, userID int64, permission domain.Permission) error {
	query := `
		INSERT INTO collaborators (project_id, user_id, permission, added_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		projectID,
		userID,
		string(permission),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCollaboratorExists
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("failed to add collaborator: %w", err)
	}

	return nil
}

// UpdateCollaborator changes a collaborator's permission tier.
func (r *projectRepository) UpdateCollaborator(ctx context.Context, projectID, userID int64, permission domain.Permission) error {
	query := `UPDATE collaborators SET permission = ? WHERE project_id = ? AND user_id = ?`

	result, err := r.db.ExecContext(ctx, query, string(permission), projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to update collaborator: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrCollaboratorNotFound
	}

	return nil
}

// RemoveCollaborator removes a user from a project.
func (r *projectRepository) RemoveCollaborator(ctx context.Context, projectID, userID int64) error {
	query := `DELETE FROM collaborators WHERE project_id = ? AND user_id = ?`

	result, err := r.db.ExecContext(ctx, query, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove collaborator: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrCollaboratorNotFound
	}

	return nil
}

// ListCollaborators returns all collaborators of a project.
func (r *projectRepository) ListCollaborators(ctx context.Context, projectID int64) ([]*domain.Collaborator, error) {
	query := `
		SELECT c.user_id, u.username, c.permission, c.added_at
		FROM collaborators c
		JOIN users u ON u.id = c.user_id
		WHERE c.project_id = ?
		ORDER BY c.added_at
	`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}
	defer rows.Close()

	var collaborators []*domain.Collaborator
	for rows.Next() {
		c := &domain.Collaborator{}
		var permission, addedAt string

		if err := rows.Scan(&c.UserID, &c.Username, &permission, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collaborator: %w", err)
		}

		c.Permission = domain.Permission(permission)
		c.AddedAt, _ = time.Parse(time.RFC3339, addedAt)
		collaborators = append(collaborators, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collaborators: %w", err)
	}

	return collaborators, nil
}

// encodeTags serializes tags as a JSON array for storage.
func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(data), nil
}

// decodeTags deserializes a stored JSON tag array.
func decodeTags(data string) []string {
	if data == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// Ensure projectRepository implements repository.ProjectRepository.
var _ repository.ProjectRepository = (*projectRepository)(nil)
