// Package storage persists the users document as a single JSON file.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/userdirectory/core/internal/domain/entities"
	"github.com/userdirectory/core/internal/infrastructure/config"
	"github.com/userdirectory/core/internal/infrastructure/logger"
)

// FileStore loads and saves the users document at a fixed path. It holds no
// lock; callers serialise access.
type FileStore struct {
	path       string
	dataSource string
	logger     *logger.Logger
}

// NewFileStore creates a store for the configured data file
func NewFileStore(cfg config.StorageConfig, log *logger.Logger) *FileStore {
	return &FileStore{
		path:       cfg.DataFile,
		dataSource: cfg.DataSource,
		logger:     log.WithComponent("storage"),
	}
}

// Path returns the data file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document. A missing or unparsable file yields an empty
// document; the cause is logged and never returned.
func (s *FileStore) Load(ctx context.Context) *entities.Document {
	doc, err := s.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Infow("Data file not found, starting empty", "path", s.path)
		} else {
			s.logger.Warnw("Data file unreadable, starting empty", "path", s.path, "error", err)
		}
		return entities.NewDocument()
	}

	s.logger.LogStorageOperation("load", s.path, len(doc.Users), nil)
	return doc
}

// Inspect reads the document and reports why it could not be used, for
// tooling that must tell "empty" from "broken".
func (s *FileStore) Inspect(ctx context.Context) (*entities.Document, error) {
	return s.read()
}

func (s *FileStore) read() (*entities.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var doc entities.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if doc.Users == nil {
		doc.Users = []entities.User{}
	}
	return &doc, nil
}

// Save writes the document through a temp file and rename, so readers see
// either the old or the new content. It reports false on any failure.
func (s *FileStore) Save(ctx context.Context, doc *entities.Document) bool {
	if err := s.write(ctx, doc); err != nil {
		s.logger.LogStorageOperation("save", s.path, len(doc.Users), err)
		return false
	}

	s.logger.LogStorageOperation("save", s.path, len(doc.Users), nil)
	return true
}

func (s *FileStore) write(ctx context.Context, doc *entities.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

// Init writes an empty document when the data file does not exist yet.
// It reports whether a file was created.
func (s *FileStore) Init(ctx context.Context) (bool, error) {
	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat data file: %w", err)
	}

	doc := entities.NewDocument()
	doc.Meta.DataSource = s.dataSource
	if err := s.write(ctx, doc); err != nil {
		return false, err
	}
	return true, nil
}

// Ready checks that the data directory is usable and, if the file exists,
// that it can be read.
func (s *FileStore) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory %s is not a directory", dir)
	}

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("data file: %w", err)
	}
	return f.Close()
}
