package domain

import (
	"time"
)

// MessageType distinguishes user chat from system notices.
type MessageType string

const (
	// MessageText is an ordinary chat message.
	MessageText MessageType = "text"

	// MessageFile is a chat message referencing a file.
	MessageFile MessageType = "file"

	// MessageSystem is an automated notice, e.g. "uploaded file X".
	MessageSystem MessageType = "system"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageSystem:
		return true
	}
	return false
}

// MessageFileInfo carries file details attached to file/system messages.
type MessageFileInfo struct {
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Message is one entry in a project's chat log.
type Message struct {
	// ID is the unique identifier for the message (auto-generated).
	ID int64 `json:"id"`

	// ProjectID is the project whose chat this message belongs to.
	ProjectID int64 `json:"project_id"`

	// SenderID is the user who sent the message.
	SenderID int64 `json:"sender_id"`

	// SenderName is denormalized for display.
	SenderName string `json:"sender_name,omitempty"`

	// Content is the message body, 1-1000 characters.
	Content string `json:"content"`

	// Type is text, file or system.
	Type MessageType `json:"type"`

	// FileInfo is set for file and system messages about files.
	FileInfo *MessageFileInfo `json:"file_info,omitempty"`

	// IsEdited is true once the message has been edited.
	IsEdited bool `json:"is_edited"`

	// EditedAt is the timestamp of the last edit.
	EditedAt *time.Time `json:"edited_at,omitempty"`

	// CreatedAt is the timestamp when the message was sent.
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a chat message.
func NewMessage(projectID, senderID int64, content string, msgType MessageType, fileInfo *MessageFileInfo) *Message {
	return &Message{
		ProjectID: projectID,
		SenderID:  senderID,
		Content:   content,
		Type:      msgType,
		FileInfo:  fileInfo,
		CreatedAt: time.Now().UTC(),
	}
}
