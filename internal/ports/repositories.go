package ports

import (
	"context"

	"github.com/userdirectory/core/internal/domain/entities"
)

// DocumentStore defines the durable boundary for the users document.
// Load never fails: missing or unreadable storage degrades to an empty
// document. Save reports false on any failure and never retries.
type DocumentStore interface {
	Load(ctx context.Context) *entities.Document
	Save(ctx context.Context, doc *entities.Document) bool
	Ready(ctx context.Context) error
}
