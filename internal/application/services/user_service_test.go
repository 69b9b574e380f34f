package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/userdirectory/core/internal/domain/entities"
	"github.com/userdirectory/core/internal/infrastructure/logger"
	"github.com/userdirectory/core/internal/ports"
)

// memoryStore is an in-memory DocumentStore that can be told to fail saves.
type memoryStore struct {
	mu       sync.Mutex
	doc      *entities.Document
	failSave bool
	saves    int
}

func (m *memoryStore) Load(ctx context.Context) *entities.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return entities.NewDocument()
	}
	return m.doc.Clone()
}

func (m *memoryStore) Save(ctx context.Context, doc *entities.Document) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return false
	}
	m.saves++
	m.doc = doc.Clone()
	return true
}

func (m *memoryStore) Ready(ctx context.Context) error { return nil }

func (m *memoryStore) persisted() *entities.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc
}

func createRequest(t *testing.T, body string) ports.CreateUserRequest {
	t.Helper()
	fields, err := entities.DecodeFields([]byte(body))
	if err != nil {
		t.Fatalf("DecodeFields(%s) error = %v", body, err)
	}
	return ports.NewCreateUserRequest(fields)
}

const validUser = `{"name":"Budi","email":"budi@example.com","age":30,"city":"Jakarta","occupation":"Software Engineer","hobbies":["reading"]}`

func TestCreateUserAssignsSequentialIDs(t *testing.T) {
	store := &memoryStore{}
	svc := NewUserService(context.Background(), store, logger.NewNop())

	first, err := svc.CreateUser(context.Background(), createRequest(t, validUser))
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	second, err := svc.CreateUser(context.Background(), createRequest(t, validUser))
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if first.ID != 1 || second.ID != 2 {
		t.Errorf("ids = %d, %d; want 1, 2", first.ID, second.ID)
	}
	if got := store.persisted().Meta.TotalUsers; got != 2 {
		t.Errorf("persisted TotalUsers = %d, want 2", got)
	}
}

func TestCreateUserIgnoresClientID(t *testing.T) {
	svc := NewUserService(context.Background(), &memoryStore{}, logger.NewNop())

	body := `{"id":77,"name":"A","email":"a@x","age":1,"city":"c","occupation":"o","hobbies":"h"}`
	created, err := svc.CreateUser(context.Background(), createRequest(t, body))
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if created.ID != 1 {
		t.Errorf("ID = %d, want 1", created.ID)
	}
}

func TestCreateUserKeepsValuesOfAnyType(t *testing.T) {
	store := &memoryStore{}
	svc := NewUserService(context.Background(), store, logger.NewNop())

	body := `{"name":"A","email":"a@x","age":"thirty","city":"c","occupation":"o","hobbies":["h",1]}`
	created, err := svc.CreateUser(context.Background(), createRequest(t, body))
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	out, _ := json.Marshal(created)
	want := `{"id":1,"name":"A","email":"a@x","age":"thirty","city":"c","occupation":"o","hobbies":["h",1]}`
	if string(out) != want {
		t.Errorf("created = %s, want %s", out, want)
	}
	if svc.Count() != 1 {
		t.Errorf("Count() = %d, want 1", svc.Count())
	}
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	store := &memoryStore{}
	svc := NewUserService(context.Background(), store, logger.NewNop())

	const workers = 2
	ids := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := svc.CreateUser(context.Background(), createRequest(t, validUser))
			if err != nil {
				t.Errorf("CreateUser() error = %v", err)
				return
			}
			ids[i] = u.ID
		}(i)
	}
	wg.Wait()

	sort.Ints(ids)
	if ids[0] != 1 || ids[1] != 2 {
		t.Errorf("ids = %v, want [1 2]", ids)
	}
	if got := len(store.persisted().Users); got != 2 {
		t.Errorf("persisted %d users, want 2", got)
	}
}

func TestFailedSaveLeavesStateUntouched(t *testing.T) {
	store := &memoryStore{}
	svc := NewUserService(context.Background(), store, logger.NewNop())

	created, err := svc.CreateUser(context.Background(), createRequest(t, validUser))
	if err != nil {
		t.Fatal(err)
	}

	store.failSave = true

	if _, err := svc.CreateUser(context.Background(), createRequest(t, validUser)); !errors.Is(err, entities.ErrPersistence) {
		t.Errorf("CreateUser() error = %v, want ErrPersistence", err)
	}
	patch := entities.Fields{"city": json.RawMessage(`"Bandung"`)}
	if _, err := svc.UpdateUser(context.Background(), created.ID, patch); !errors.Is(err, entities.ErrPersistence) {
		t.Errorf("UpdateUser() error = %v, want ErrPersistence", err)
	}
	if _, err := svc.DeleteUser(context.Background(), created.ID); !errors.Is(err, entities.ErrPersistence) {
		t.Errorf("DeleteUser() error = %v, want ErrPersistence", err)
	}

	got, err := svc.GetUser(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.City != "Jakarta" || svc.Count() != 1 {
		t.Errorf("state changed after failed saves: %+v, count %d", got, svc.Count())
	}
}

func TestUpdateUserKeepsID(t *testing.T) {
	svc := NewUserService(context.Background(), &memoryStore{}, logger.NewNop())
	created, _ := svc.CreateUser(context.Background(), createRequest(t, validUser))

	patch := entities.Fields{
		"id":         json.RawMessage(`999`),
		"occupation": json.RawMessage(`"Data Engineer"`),
	}
	updated, err := svc.UpdateUser(context.Background(), created.ID, patch)
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if updated.ID != created.ID || updated.Occupation != "Data Engineer" {
		t.Errorf("updated = %+v", updated)
	}
	if _, err := svc.GetUser(context.Background(), 999); !errors.Is(err, entities.ErrUserNotFound) {
		t.Errorf("GetUser(999) error = %v, want not found", err)
	}
}

func TestUpdateAndDeleteMissingUser(t *testing.T) {
	svc := NewUserService(context.Background(), &memoryStore{}, logger.NewNop())

	if _, err := svc.UpdateUser(context.Background(), 4, entities.Fields{}); !errors.Is(err, entities.ErrUserNotFound) {
		t.Errorf("UpdateUser() error = %v, want ErrUserNotFound", err)
	}
	if _, err := svc.DeleteUser(context.Background(), 4); !errors.Is(err, entities.ErrUserNotFound) {
		t.Errorf("DeleteUser() error = %v, want ErrUserNotFound", err)
	}
}

func TestDeleteThenGet(t *testing.T) {
	store := &memoryStore{}
	svc := NewUserService(context.Background(), store, logger.NewNop())
	created, _ := svc.CreateUser(context.Background(), createRequest(t, validUser))

	removed, err := svc.DeleteUser(context.Background(), created.ID)
	if err != nil || removed.ID != created.ID {
		t.Fatalf("DeleteUser() = %+v, %v", removed, err)
	}
	if _, err := svc.GetUser(context.Background(), created.ID); !errors.Is(err, entities.ErrUserNotFound) {
		t.Errorf("GetUser() after delete error = %v", err)
	}
	if _, err := svc.DeleteUser(context.Background(), created.ID); !errors.Is(err, entities.ErrUserNotFound) {
		t.Errorf("second DeleteUser() error = %v", err)
	}
	if got := store.persisted().Meta.TotalUsers; got != 0 {
		t.Errorf("TotalUsers = %d, want 0", got)
	}
}

func TestListUsersReturnsCopies(t *testing.T) {
	svc := NewUserService(context.Background(), &memoryStore{}, logger.NewNop())
	svc.CreateUser(context.Background(), createRequest(t, validUser))

	users, meta := svc.ListUsers(context.Background())
	if len(users) != 1 || meta.TotalUsers != 1 {
		t.Fatalf("ListUsers() = %d users, total %d", len(users), meta.TotalUsers)
	}
	users[0].Name = "mutated"

	again, _ := svc.ListUsers(context.Background())
	if again[0].Name != "Budi" {
		t.Errorf("caller mutation leaked into service state")
	}
}

func TestNewUserServiceRecountsLoadedMeta(t *testing.T) {
	doc := entities.NewDocument()
	doc.Users = append(doc.Users, entities.User{ID: 3}, entities.User{ID: 8})
	doc.Meta.TotalUsers = 17

	svc := NewUserService(context.Background(), &memoryStore{doc: doc}, logger.NewNop())

	_, meta := svc.ListUsers(context.Background())
	if meta.TotalUsers != 2 {
		t.Errorf("TotalUsers = %d, want 2", meta.TotalUsers)
	}
	created, _ := svc.CreateUser(context.Background(), createRequest(t, validUser))
	if created.ID != 9 {
		t.Errorf("next id = %d, want 9", created.ID)
	}
}
