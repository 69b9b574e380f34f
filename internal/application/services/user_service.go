package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/userdirectory/core/internal/adapters/repository"
	"github.com/userdirectory/core/internal/domain/entities"
	"github.com/userdirectory/core/internal/infrastructure/logger"
	"github.com/userdirectory/core/internal/ports"
)

// UserService owns the in-memory users document for the life of the process.
// The document is loaded once at construction and written through to the
// store on every successful mutation; edits made to the file by other
// processes are not seen until restart.
type UserService struct {
	store  ports.DocumentStore
	logger *logger.Logger

	mu  sync.Mutex
	doc *entities.Document
}

// NewUserService loads the document from store and returns a ready service
func NewUserService(ctx context.Context, store ports.DocumentStore, log *logger.Logger) *UserService {
	doc := store.Load(ctx)
	doc.Recount()

	return &UserService{
		store:  store,
		logger: log.WithComponent("user_service"),
		doc:    doc,
	}
}

// ListUsers returns every user in insertion order along with the document meta
func (s *UserService) ListUsers(ctx context.Context) ([]entities.User, entities.Meta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.doc.Clone()
	return snapshot.Users, snapshot.Meta
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id int) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := repository.FindByID(s.doc, id)
	if !ok {
		return entities.User{}, entities.ErrUserNotFound
	}
	return user.Clone(), nil
}

// UsersByCity returns users living in city, compared case-insensitively
func (s *UserService) UsersByCity(ctx context.Context, city string) []entities.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneUsers(repository.FindByCity(s.doc, city))
}

// UsersByOccupation returns users whose occupation contains job
func (s *UserService) UsersByOccupation(ctx context.Context, job string) []entities.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneUsers(repository.FindByOccupation(s.doc, job))
}

// CreateUser decodes the request into a new user, assigns its id and persists it
func (s *UserService) CreateUser(ctx context.Context, req ports.CreateUserRequest) (entities.User, error) {
	var user entities.User
	user.Apply(req.Fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	var created entities.User
	err := s.commit(ctx, func(doc *entities.Document) error {
		created = repository.Insert(doc, user)
		return nil
	})
	if err != nil {
		return entities.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.LogUserAction(created.ID, "create", map[string]interface{}{"email": created.Email})
	return created.Clone(), nil
}

// UpdateUser merges patch into an existing user and persists the result
func (s *UserService) UpdateUser(ctx context.Context, id int, patch entities.Fields) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated entities.User
	err := s.commit(ctx, func(doc *entities.Document) error {
		u, ok := repository.Update(doc, id, patch)
		if !ok {
			return entities.ErrUserNotFound
		}
		updated = u
		return nil
	})
	if err != nil {
		return entities.User{}, fmt.Errorf("update user %d: %w", id, err)
	}

	s.logger.LogUserAction(id, "update", map[string]interface{}{"fields": len(patch)})
	return updated.Clone(), nil
}

// DeleteUser removes a user and persists the result
func (s *UserService) DeleteUser(ctx context.Context, id int) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed entities.User
	err := s.commit(ctx, func(doc *entities.Document) error {
		u, ok := repository.Delete(doc, id)
		if !ok {
			return entities.ErrUserNotFound
		}
		removed = u
		return nil
	})
	if err != nil {
		return entities.User{}, fmt.Errorf("delete user %d: %w", id, err)
	}

	s.logger.LogUserAction(id, "delete", nil)
	return removed, nil
}

// Count returns the number of users currently held
func (s *UserService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.doc.Users)
}

// Ready reports whether the backing store is usable
func (s *UserService) Ready(ctx context.Context) error {
	return s.store.Ready(ctx)
}

// commit applies mutate to a copy of the document and swaps it in only after
// the store accepted it, so a failed save leaves memory matching disk.
// Callers must hold s.mu.
func (s *UserService) commit(ctx context.Context, mutate func(doc *entities.Document) error) error {
	next := s.doc.Clone()
	if err := mutate(next); err != nil {
		return err
	}
	next.Recount()

	if !s.store.Save(ctx, next) {
		s.logger.Errorw("Failed to persist users document", "users", len(next.Users))
		return entities.ErrPersistence
	}

	s.doc = next
	return nil
}

func cloneUsers(users []entities.User) []entities.User {
	out := make([]entities.User, len(users))
	for i, u := range users {
		out[i] = u.Clone()
	}
	return out
}
