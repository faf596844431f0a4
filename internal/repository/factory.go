package repository

import (
	"context"
)

// Repositories holds all repository instances for one database backend.
type Repositories struct {
	User    UserRepository
	Session SessionRepository
	Project ProjectRepository
	File    FileRepository
	Share   ShareRepository
	Message MessageRepository
}

// DatabaseHealth is the health surface every backend exposes.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
