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

// messageRepository implements repository.MessageRepository for SQLite.
type messageRepository struct {
	db *DB
}

// NewMessageRepository creates a new SQLite message repository.
func NewMessageRepository(db *DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `m.id, m.project_id, m.sender_id, u.username, m.content, m.type, m.file_info, m.is_edited, m.edited_at, m.created_at`

// scanMessage scans a message row joined with the sender's username.
func scanMessage(scan func(dest ...interface{}) error) (*domain.Message, error) {
	message := &domain.Message{}
	var msgType string
	var fileInfo, editedAt sql.NullString
	var isEdited int
	var createdAt string

	err := scan(
		&message.ID,
		&message.ProjectID,
		&message.SenderID,
		&message.SenderName,
		&message.Content,
		&msgType,
		&fileInfo,
		&isEdited,
		&editedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	message.Type = domain.MessageType(msgType)
	message.IsEdited = isEdited != 0
	message.EditedAt = parseNullTime(editedAt)
	message.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	if fileInfo.Valid && fileInfo.String != "" {
		info := &domain.MessageFileInfo{}
		if err := json.Unmarshal([]byte(fileInfo.String), info); err == nil {
			message.FileInfo = info
		}
	}

	return message, nil
}

// Create creates a new chat message.
func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	var fileInfo interface{}
	if message.FileInfo != nil {
		data, err := json.Marshal(message.FileInfo)
		if err != nil {
			return fmt.Errorf("failed to encode file info: %w", err)
		}
		fileInfo = string(data)
	}

	query := `
		INSERT INTO messages (project_id, sender_id, content, type, file_info, is_edited, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		message.ProjectID,
		message.SenderID,
		message.Content,
		string(message.Type),
		fileInfo,
		boolToInt(message.IsEdited),
		message.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrProjectNotFound
		}
		return fmt.Errorf("failed to create message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	message.ID = id

	return nil
}

// GetByID retrieves a message by ID.
func (r *messageRepository) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id = ?
	`

	row := r.db.QueryRowContext(ctx, query, id)
	message, err := scanMessage(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", err)
	}

	return message, nil
}

// ListByProject returns messages of a project, newest first.
func (r *messageRepository) ListByProject(ctx context.Context, projectID int64, opts repository.ListOptions) (*repository.ListResult[domain.Message], error) {
	countQuery := `SELECT COUNT(*) FROM messages WHERE project_id = ?`
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, projectID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.project_id = ?
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, projectID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message, err := scanMessage(rows.Scan)
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
	query := `
		UPDATE messages
		SET content = ?, is_edited = ?, edited_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		message.Content,
		boolToInt(message.IsEdited),
		formatNullTime(message.EditedAt),
		message.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrMessageNotFound
	}

	return nil
}

// Delete deletes a message.
func (r *messageRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrMessageNotFound
	}

	return nil
}

// Ensure messageRepository implements repository.MessageRepository.
var _ repository.MessageRepository = (*messageRepository)(nil)
