package database

import (
	"context"
	"errors"

	"tca/internal/models"
)

// ErrUnavailable wraps network/driver failures so callers can degrade
// instead of crashing. Storage errors are recovered close to the source;
// only caller-programming errors propagate further up.
var ErrUnavailable = errors.New("storage backend unavailable")

// Collection names shared by both backends.
const (
	CollectionUsers = "users"
	CollectionChats = "chats"

	// Legacy per-field layout, kept readable for backward compatibility.
	CollectionProfile       = "profile"
	CollectionTodos         = "todos"
	CollectionInstructions  = "instructions"
	CollectionResearchGoals = "research_goals"
)

// DocumentStore is the uniform get/upsert/delete contract over the durable
// Mongo backend and the local file-backed fallback.
//
// Upsert semantics: patch is a flat field->value map applied as a
// backend-native set-by-key update. When the document does not exist yet it
// is created with the collection's key field stamped in; created_at is
// stamped on creation and never overwritten afterwards. Concurrent writers
// against the same key converge onto one document (upsert on the key
// filter), never a duplicate.
type DocumentStore interface {
	// GetDocument returns the document for key, or nil when absent.
	GetDocument(ctx context.Context, collection, key string) (models.Document, error)
	// UpsertDocument applies patch field-by-field, creating the document
	// when missing.
	UpsertDocument(ctx context.Context, collection, key string, patch models.Document) error
	// DeleteDocument removes the document for key; absent is not an error.
	DeleteDocument(ctx context.Context, collection, key string) error
	// ListDocuments returns every document in collection whose user_id
	// field matches key. Used by the legacy one-document-per-todo layout.
	ListDocuments(ctx context.Context, collection, key string) ([]models.Document, error)
}

// KeyField names the field a collection is keyed on. Chat checkpoints are
// per session, legacy todos get their own synthetic id, everything else is
// one document per user.
func KeyField(collection string) string {
	switch collection {
	case CollectionChats:
		return "session_id"
	case CollectionTodos:
		return "todo_id"
	default:
		return "user_id"
	}
}
