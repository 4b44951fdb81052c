package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tca/internal/models"
)

// FileStore is the local fallback backend: a single JSON file mapping
// collection -> key -> last-saved document. The whole file is loaded and
// rewritten on every write (single-writer assumption, last writer wins).
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore opens (or creates) the fallback file at path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create fallback store directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			return nil, fmt.Errorf("failed to create fallback store file: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() (map[string]map[string]models.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.path, err)
	}
	all := map[string]map[string]models.Document{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &all); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrUnavailable, s.path, err)
		}
	}
	return all, nil
}

func (s *FileStore) save(all map[string]map[string]models.Document) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode fallback store: %v", ErrUnavailable, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, s.path, err)
	}
	return nil
}

// GetDocument returns the document for key, nil when absent.
func (s *FileStore) GetDocument(_ context.Context, collection, key string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	doc, ok := all[collection][key]
	if !ok {
		return nil, nil
	}
	return doc.Clone(), nil
}

// UpsertDocument merges patch into the stored document field-by-field,
// creating it with the key field and created_at stamped when absent.
// created_at on an existing document is never overwritten.
func (s *FileStore) UpsertDocument(_ context.Context, collection, key string, patch models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if all[collection] == nil {
		all[collection] = map[string]models.Document{}
	}
	doc, exists := all[collection][key]
	if !exists {
		doc = models.Document{
			KeyField(collection): key,
			"created_at":         models.FormatTime(time.Now()),
		}
	}
	for k, v := range patch {
		if k == "created_at" {
			if !exists {
				doc[k] = v
			}
			continue
		}
		setField(doc, k, v)
	}
	all[collection][key] = doc
	return s.save(all)
}

// DeleteDocument removes the document for key; absent is not an error.
func (s *FileStore) DeleteDocument(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := all[collection][key]; !ok {
		return nil
	}
	delete(all[collection], key)
	return s.save(all)
}

// ListDocuments returns every document in collection whose user_id field
// matches key, in insertion-stable created_at order.
func (s *FileStore) ListDocuments(_ context.Context, collection, key string) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	var docs []models.Document
	for _, doc := range all[collection] {
		if userID, _ := doc["user_id"].(string); userID == key {
			docs = append(docs, doc.Clone())
		}
	}
	sortByCreatedAt(docs)
	return docs, nil
}

// setField applies one patch entry, treating dotted keys as nested paths the
// way Mongo's $set does ("profile.info" sets info inside the profile map).
func setField(doc models.Document, key string, value any) {
	parent, child, nested := strings.Cut(key, ".")
	if !nested {
		doc[key] = value
		return
	}
	m, ok := doc[parent].(map[string]any)
	if !ok {
		m = map[string]any{}
		doc[parent] = m
	}
	m[child] = value
}

func sortByCreatedAt(docs []models.Document) {
	for i := 1; i < len(docs); i++ {
		for j := i; j > 0; j-- {
			a, _ := docs[j-1]["created_at"].(string)
			b, _ := docs[j]["created_at"].(string)
			if a <= b {
				break
			}
			docs[j-1], docs[j] = docs[j], docs[j-1]
		}
	}
}
