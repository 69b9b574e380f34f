package ports

import (
	"context"
	"encoding/json"

	"github.com/userdirectory/core/internal/domain/entities"
)

// UserService interface for user directory operations
type UserService interface {
	ListUsers(ctx context.Context) ([]entities.User, entities.Meta)
	GetUser(ctx context.Context, id int) (entities.User, error)
	UsersByCity(ctx context.Context, city string) []entities.User
	UsersByOccupation(ctx context.Context, job string) []entities.User
	CreateUser(ctx context.Context, req CreateUserRequest) (entities.User, error)
	UpdateUser(ctx context.Context, id int, patch entities.Fields) (entities.User, error)
	DeleteUser(ctx context.Context, id int) (entities.User, error)
	Ready(ctx context.Context) error
}

// CreateUserRequest carries the raw payload of a create call. Only presence
// of the required keys is validated here; values are decoded by the service.
// Field order matches entities.RequiredUserFields.
type CreateUserRequest struct {
	Name       json.RawMessage `json:"name" validate:"required"`
	Email      json.RawMessage `json:"email" validate:"required"`
	Age        json.RawMessage `json:"age" validate:"required"`
	City       json.RawMessage `json:"city" validate:"required"`
	Occupation json.RawMessage `json:"occupation" validate:"required"`
	Hobbies    json.RawMessage `json:"hobbies" validate:"required"`

	Fields entities.Fields `json:"-" validate:"-"`
}

// NewCreateUserRequest builds a CreateUserRequest from a decoded JSON object.
func NewCreateUserRequest(fields entities.Fields) CreateUserRequest {
	return CreateUserRequest{
		Name:       fields[entities.FieldName],
		Email:      fields[entities.FieldEmail],
		Age:        fields[entities.FieldAge],
		City:       fields[entities.FieldCity],
		Occupation: fields[entities.FieldOccupation],
		Hobbies:    fields[entities.FieldHobbies],
		Fields:     fields,
	}
}
