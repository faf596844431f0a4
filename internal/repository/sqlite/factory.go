package sqlite

import (
	"github.com/prn-tf/teamdrop/internal/repository"
)

// NewRepositories builds the full repository set on one SQLite connection.
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		User:    NewUserRepository(db),
		Session: NewSessionRepository(db),
		Project: NewProjectRepository(db),
		File:    NewFileRepository(db),
		Share:   NewShareRepository(db),
		Message: NewMessageRepository(db),
	}
}
