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

// projectRepository implements repository.ProjectRepository for PostgreSQL.
type projectRepository struct {
	db *DB
}

// NewProjectRepository creates a new PostgreSQL project repository.
func NewProjectRepository(db *DB) repository.ProjectRepository {
	return &projectRepository{db: db}
}

const projectColumns = `p.id, p.name, p.description, p.tags, p.is_public, p.owner_id, u.username, p.created_at, p.updated_at`

// scanProject scans a project row joined with the owner's username.
func scanProject(row pgx.Row) (*domain.Project, error) {
	project := &domain.Project{}
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.Tags,
		&project.IsPublic,
		&project.OwnerID,
		&project.OwnerName,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if project.Tags == nil {
		project.Tags = []string{}
	}
	return project, nil
}

// Create creates a new project.
func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (name, description, tags, is_public, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		project.Name,
		project.Description,
		project.Tags,
		project.IsPublic,
		project.OwnerID,
		project.CreatedAt,
		project.UpdatedAt,
	).Scan(&project.ID)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetByID retrieves a project by ID, including its collaborators.
func (r *projectRepository) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects p
		JOIN users u ON u.id = p.owner_id
		WHERE p.id = $1
	`

	project, err := scanProject(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	filter := `
		FROM projects p
		JOIN users u ON u.id = p.owner_id
		WHERE p.owner_id = $1
		   OR EXISTS (SELECT 1 FROM collaborators c WHERE c.project_id = p.id AND c.user_id = $1)
	`

	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) `+filter, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}

	query := `SELECT ` + projectColumns + filter + ` ORDER BY p.updated_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Pool.Query(ctx, query, userID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		project, err := scanProject(rows)
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
	query := `
		UPDATE projects
		SET name = $1, description = $2, tags = $3, is_public = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := r.db.Pool.Exec(ctx, query,
		project.Name,
		project.Description,
		project.Tags,
		project.IsPublic,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

// Delete deletes a project and everything under it in one transaction.
func (r *projectRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM messages WHERE project_id = $1`,
			`DELETE FROM shares WHERE project_id = $1`,
			`DELETE FROM files WHERE project_id = $1`,
			`DELETE FROM collaborators WHERE project_id = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to cascade delete project: %w", err)
			}
		}

		result, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		if result.RowsAffected() == 0 {
			return domain.ErrProjectNotFound
		}
		return nil
	})
}

// AddCollaborator adds a user to a project with the given permission.
func (r *projectRepository) AddCollaborator(ctx context.Context, projectID, userID int64, permission domain.Permission) error {
	query := `
		INSERT INTO collaborators (project_id, user_id, permission, added_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Pool.Exec(ctx, query, projectID, userID, string(permission), time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505": // unique_violation
				return domain.ErrCollaboratorExists
			case "23503": // foreign_key_violation
				return domain.ErrUserNotFound
			}
		}
		return fmt.Errorf("failed to add collaborator: %w", err)
	}
	return nil
}

// UpdateCollaborator changes a collaborator's permission tier.
func (r *projectRepository) UpdateCollaborator(ctx context.Context, projectID, userID int64, permission domain.Permission) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE collaborators SET permission = $1 WHERE project_id = $2 AND user_id = $3`,
		string(permission), projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update collaborator: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrCollaboratorNotFound
	}
	return nil
}

// RemoveCollaborator removes a user from a project.
func (r *projectRepository) RemoveCollaborator(ctx context.Context, projectID, userID int64) error {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM collaborators WHERE project_id = $1 AND user_id = $2`,
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove collaborator: %w", err)
	}
	if result.RowsAffected() == 0 {
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
		WHERE c.project_id = $1
		ORDER BY c.added_at
	`

	rows, err := r.db.Pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}
	defer rows.Close()

	var collaborators []*domain.Collaborator
	for rows.Next() {
		c := &domain.Collaborator{}
		var permission string
		if err := rows.Scan(&c.UserID, &c.Username, &permission, &c.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collaborator: %w", err)
		}
		c.Permission = domain.Permission(permission)
		collaborators = append(collaborators, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collaborators: %w", err)
	}

	return collaborators, nil
}

var _ repository.ProjectRepository = (*projectRepository)(nil)
