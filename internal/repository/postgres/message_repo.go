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

// messageRepository implements repository.MessageRepository for PostgreSQL.
type messageRepository struct {
	db *DB
}

// NewMessageRepository creates a new PostgreSQL message repository.
func NewMessageRepository(db *DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `m.id, m.project_id, m.sender_id, u.username, m.content, m.type, m.file_info, m.is_edited, m.edited_at, m.created_at`

// scanMessage scans a message row joined with the sender's username.
// file_info is stored as JSONB and decoded by pgx directly.
func scanMessage(row pgx.Row) (*domain.Message, error) {
	message := &domain.Message{}
	var msgType string

	err := row.Scan(
		&message.ID,
		&message.ProjectID,
		&message.SenderID,
		&message.SenderName,
		&message.Content,
		&msgType,
		&message.FileInfo,
		&message.IsEdited,
		&message.EditedAt,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	message.Type = domain.MessageType(msgType)
	return message, nil
}

// Create creates a new chat message.
func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (project_id, sender_id, content, type, file_info, is_edited, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		message.ProjectID,
		message.SenderID,
		message.Content,
		string(message.Type),
		message.FileInfo,
		message.IsEdited,
		message.CreatedAt,
	).Scan(&message.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrProjectNotFound
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID retrieves a message by ID.
func (r *messageRepository) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id = $1
	`

	message, err := scanMessage(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", err)
	}
	return message, nil
}

// ListByProject returns messages of a project, newest first.
func (r *messageRepository) ListByProject(ctx context.Context, projectID int64, opts repository.ListOptions) (*repository.ListResult[domain.Message], error) {
	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE project_id = $1`, projectID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.project_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, projectID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return &repository.ListResult[domain.Message]{
		Items:  messages,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// Update updates a message's content and edit markers.
func (r *messageRepository) Update(ctx context.Context, message *domain.Message) error {
	query := `UPDATE messages SET content = $1, is_edited = $2, edited_at = $3 WHERE id = $4`

	result, err := r.db.Pool.Exec(ctx, query, message.Content, message.IsEdited, message.EditedAt, message.ID)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// Delete deletes a message.
func (r *messageRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

var _ repository.MessageRepository = (*messageRepository)(nil)
