package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"time"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/repository"
	"github.com/prn-tf/teamdrop/internal/storage"
)

// listOpts returns default pagination for tests.
func listOpts() repository.ListOptions {
	return repository.ListOptions{Limit: 100}
}

// =============================================================================
// Mock user repository
// =============================================================================

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	users     map[int64]*domain.User
	nextID    int64
	createErr error
	getErr    error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[int64]*domain.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.LastLogin = &at
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	items := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		items = append(items, m.users[id])
	}
	return &repository.ListResult[domain.User]{
		Items:  items,
		Total:  int64(len(items)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

func (m *MockUserRepository) HasAdmin(ctx context.Context) (bool, error) {
	for _, u := range m.users {
		if u.IsAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// Mock session repository
// =============================================================================

// MockSessionRepository is a mock implementation of repository.SessionRepository.
type MockSessionRepository struct {
	sessions map[string]*domain.Session
	nextID   int64
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		sessions: make(map[string]*domain.Session),
		nextID:   1,
	}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	session.ID = m.nextID
	m.nextID++
	m.sessions[session.Token] = session
	return nil
}

func (m *MockSessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if s, ok := m.sessions[token]; ok {
		return s, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string) error {
	if _, ok := m.sessions[token]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, token)
	return nil
}

func (m *MockSessionRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	for token, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	var deleted int64
	for token, s := range m.sessions {
		if s.IsExpired(now) {
			delete(m.sessions, token)
			deleted++
		}
	}
	return deleted, nil
}

// =============================================================================
// Mock project repository
// =============================================================================

// MockProjectRepository is a mock implementation of repository.ProjectRepository.
type MockProjectRepository struct {
	projects  map[int64]*domain.Project
	nextID    int64
	deleteErr error
}

func NewMockProjectRepository() *MockProjectRepository {
	return &MockProjectRepository{
		projects: make(map[int64]*domain.Project),
		nextID:   1,
	}
}

func (m *MockProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	project.ID = m.nextID
	m.nextID++
	m.projects[project.ID] = project
	return nil
}

func (m *MockProjectRepository) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	if p, ok := m.projects[id]; ok {
		return p, nil
	}
	return nil, domain.ErrProjectNotFound
}

func (m *MockProjectRepository) ListForUser(ctx context.Context, userID int64, opts repository.ListOptions) (*repository.ListResult[domain.Project], error) {
	var items []*domain.Project
	for _, p := range m.projects {
		if p.OwnerID == userID {
			items = append(items, p)
			continue
		}
		if _, ok := p.CollaboratorPermission(userID); ok {
			items = append(items, p)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return &repository.ListResult[domain.Project]{
		Items:  items,
		Total:  int64(len(items)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

func (m *MockProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	if _, ok := m.projects[project.ID]; !ok {
		return domain.ErrProjectNotFound
	}
	m.projects[project.ID] = project
	return nil
}

func (m *MockProjectRepository) Delete(ctx context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.projects[id]; !ok {
		return domain.ErrProjectNotFound
	}
	delete(m.projects, id)
	return nil
}

func (m *MockProjectRepository) AddCollaborator(ctx context.Context, projectID, userID int64, permission domain.Permission) error {
	p, ok := m.projects[projectID]
	if !ok {
		return domain.ErrProjectNotFound
	}
	if _, exists := p.CollaboratorPermission(userID); exists {
		return domain.ErrCollaboratorExists
	}
	p.Collaborators = append(p.Collaborators, domain.Collaborator{
		UserID:     userID,
		Permission: permission,
		AddedAt:    time.Now().UTC(),
	})
	return nil
}

func (m *MockProjectRepository) UpdateCollaborator(ctx context.Context, projectID, userID int64, permission domain.Permission) error {
	p, ok := m.projects[projectID]
	if !ok {
		return domain.ErrProjectNotFound
	}
	for i := range p.Collaborators {
		if p.Collaborators[i].UserID == userID {
			p.Collaborators[i].Permission = permission
			return nil
		}
	}
	return domain.ErrCollaboratorNotFound
}

func (m *MockProjectRepository) RemoveCollaborator(ctx context.Context, projectID, userID int64) error {
	p, ok := m.projects[projectID]
	if !ok {
		return domain.ErrProjectNotFound
	}
	for i := range p.Collaborators {
		if p.Collaborators[i].UserID == userID {
			p.Collaborators = append(p.Collaborators[:i], p.Collaborators[i+1:]...)
			return nil
		}
	}
	return domain.ErrCollaboratorNotFound
}

func (m *MockProjectRepository) ListCollaborators(ctx context.Context, projectID int64) ([]*domain.Collaborator, error) {
	p, ok := m.projects[projectID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	result := make([]*domain.Collaborator, 0, len(p.Collaborators))
	for i := range p.Collaborators {
		result = append(result, &p.Collaborators[i])
	}
	return result, nil
}

// =============================================================================
// Mock file repository
// =============================================================================

// MockFileRepository is a mock implementation of repository.FileRepository.
type MockFileRepository struct {
	files  map[int64]*domain.File
	nextID int64
}

func NewMockFileRepository() *MockFileRepository {
	return &MockFileRepository{
		files:  make(map[int64]*domain.File),
		nextID: 1,
	}
}

func (m *MockFileRepository) Create(ctx context.Context, file *domain.File) error {
	file.ID = m.nextID
	m.nextID++
	m.files[file.ID] = file
	return nil
}

// GetByID returns a copy, like the SQL repositories scan a fresh row.
func (m *MockFileRepository) GetByID(ctx context.Context, id int64) (*domain.File, error) {
	if f, ok := m.files[id]; ok {
		clone := *f
		return &clone, nil
	}
	return nil, domain.ErrFileNotFound
}

func (m *MockFileRepository) ListByProject(ctx context.Context, projectID int64, opts repository.ListOptions) (*repository.ListResult[domain.File], error) {
	var items []*domain.File
	for _, f := range m.files {
		if f.ProjectID == projectID {
			clone := *f
			items = append(items, &clone)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return &repository.ListResult[domain.File]{
		Items:  items,
		Total:  int64(len(items)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

func (m *MockFileRepository) Update(ctx context.Context, file *domain.File) error {
	if _, ok := m.files[file.ID]; !ok {
		return domain.ErrFileNotFound
	}
	m.files[file.ID] = file
	return nil
}

func (m *MockFileRepository) IncrementDownloads(ctx context.Context, id int64) error {
	f, ok := m.files[id]
	if !ok {
		return domain.ErrFileNotFound
	}
	f.Downloads++
	return nil
}

func (m *MockFileRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.files[id]; !ok {
		return domain.ErrFileNotFound
	}
	delete(m.files, id)
	return nil
}

func (m *MockFileRepository) StorageKeysByProject(ctx context.Context, projectID int64) ([]string, error) {
	var keys []string
	for _, f := range m.files {
		if f.ProjectID == projectID {
			keys = append(keys, f.StorageKey)
		}
	}
	return keys, nil
}

// =============================================================================
// Mock share repository
// =============================================================================

// MockShareRepository is a mock implementation of repository.ShareRepository.
type MockShareRepository struct {
	shares map[int64]*domain.Share
	nextID int64
}

func NewMockShareRepository() *MockShareRepository {
	return &MockShareRepository{
		shares: make(map[int64]*domain.Share),
		nextID: 1,
	}
}

func (m *MockShareRepository) Create(ctx context.Context, share *domain.Share) error {
	for _, s := range m.shares {
		if s.ProjectID == share.ProjectID {
			return domain.ErrShareAlreadyExists
		}
	}
	share.ID = m.nextID
	m.nextID++
	m.shares[share.ID] = share
	return nil
}

func (m *MockShareRepository) GetByToken(ctx context.Context, token string) (*domain.Share, error) {
	for _, s := range m.shares {
		if s.Token == token {
			return s, nil
		}
	}
	return nil, domain.ErrShareNotFound
}

func (m *MockShareRepository) GetByProjectID(ctx context.Context, projectID int64) (*domain.Share, error) {
	for _, s := range m.shares {
		if s.ProjectID == projectID {
			return s, nil
		}
	}
	return nil, domain.ErrShareNotFound
}

func (m *MockShareRepository) ListByCreator(ctx context.Context, userID int64) ([]*domain.Share, error) {
	var result []*domain.Share
	for _, s := range m.shares {
		if s.CreatedBy == userID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockShareRepository) Update(ctx context.Context, share *domain.Share) error {
	if _, ok := m.shares[share.ID]; !ok {
		return domain.ErrShareNotFound
	}
	m.shares[share.ID] = share
	return nil
}

func (m *MockShareRepository) Deactivate(ctx context.Context, id int64) error {
	s, ok := m.shares[id]
	if !ok {
		return domain.ErrShareNotFound
	}
	s.IsActive = false
	return nil
}

func (m *MockShareRepository) ConsumeDownload(ctx context.Context, token string, now time.Time) error {
	for _, s := range m.shares {
		if s.Token != token {
			continue
		}
		if !s.IsValid(now) {
			return domain.ErrShareGone
		}
		s.CurrentDownloads++
		s.LastAccessed = &now
		return nil
	}
	return domain.ErrShareNotFound
}

func (m *MockShareRepository) DeleteByProjectID(ctx context.Context, projectID int64) error {
	for id, s := range m.shares {
		if s.ProjectID == projectID {
			delete(m.shares, id)
			return nil
		}
	}
	return domain.ErrShareNotFound
}

// =============================================================================
// Mock message repository
// =============================================================================

// MockMessageRepository is a mock implementation of repository.MessageRepository.
type MockMessageRepository struct {
	messages map[int64]*domain.Message
	nextID   int64
}

func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		messages: make(map[int64]*domain.Message),
		nextID:   1,
	}
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	message.ID = m.nextID
	m.nextID++
	m.messages[message.ID] = message
	return nil
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	if msg, ok := m.messages[id]; ok {
		return msg, nil
	}
	return nil, domain.ErrMessageNotFound
}

func (m *MockMessageRepository) ListByProject(ctx context.Context, projectID int64, opts repository.ListOptions) (*repository.ListResult[domain.Message], error) {
	var items []*domain.Message
	for _, msg := range m.messages {
		if msg.ProjectID == projectID {
			items = append(items, msg)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return &repository.ListResult[domain.Message]{
		Items:  items,
		Total:  int64(len(items)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

func (m *MockMessageRepository) Update(ctx context.Context, message *domain.Message) error {
	if _, ok := m.messages[message.ID]; !ok {
		return domain.ErrMessageNotFound
	}
	m.messages[message.ID] = message
	return nil
}

func (m *MockMessageRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.messages[id]; !ok {
		return domain.ErrMessageNotFound
	}
	delete(m.messages, id)
	return nil
}

// =============================================================================
// Mock storage backend
// =============================================================================

// MockBackend is an in-memory implementation of storage.Backend.
type MockBackend struct {
	blobs   map[string][]byte
	saveErr error
}

var _ storage.Backend = (*MockBackend)(nil)

func NewMockBackend() *MockBackend {
	return &MockBackend{blobs: make(map[string][]byte)}
}

func (m *MockBackend) Save(ctx context.Context, key string, reader io.Reader, size int64) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.blobs[key] = data
	return nil
}

func (m *MockBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockBackend) Delete(ctx context.Context, key string) error {
	delete(m.blobs, key)
	return nil
}

func (m *MockBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.blobs[key]
	return ok, nil
}
