package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tca/internal/database"
	"tca/internal/models"
)

// ErrMalformedCheckpoint is returned when a stored checkpoint does not
// decode into the expected shape. Surfaced to the caller, never swallowed.
var ErrMalformedCheckpoint = errors.New("malformed conversation checkpoint")

// ChatHistoryService persists conversation checkpoints in the "chats"
// collection, keyed by session id, with upsert semantics and a fallback
// write target.
type ChatHistoryService struct {
	store    database.DocumentStore
	fallback database.DocumentStore
}

// NewChatHistoryService creates the checkpoint store. store may be nil when
// no backend is configured; Save then degrades to the fallback or a warning.
func NewChatHistoryService(store, fallback database.DocumentStore) *ChatHistoryService {
	return &ChatHistoryService{store: store, fallback: fallback}
}

// Load returns the stored checkpoint for a session, or an empty checkpoint
// when none exists or the backend is unreachable. A document that exists but
// does not decode is a ErrMalformedCheckpoint for the caller.
func (s *ChatHistoryService) Load(ctx context.Context, sessionID string) (*models.Checkpoint, error) {
	empty := &models.Checkpoint{Components: map[string]any{}}
	if s.store == nil {
		return empty, nil
	}
	doc, err := s.store.GetDocument(ctx, database.CollectionChats, sessionID)
	if err != nil {
		slog.Warn("failed to load chat history, starting fresh", "session_id", sessionID, "error", err)
		return empty, nil
	}
	if doc == nil {
		return empty, nil
	}
	checkpoint, err := checkpointFromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: session %s: %v", ErrMalformedCheckpoint, sessionID, err)
	}
	return checkpoint, nil
}

// Save upserts the checkpoint for a session, stamping updated_at. A failed
// write is retried once against the fallback store; with no fallback the
// error is returned for the caller to log; persistence is best-effort and
// must not abort the turn.
func (s *ChatHistoryService) Save(ctx context.Context, sessionID string, checkpoint *models.Checkpoint) error {
	patch, err := checkpointToPatch(sessionID, checkpoint)
	if err != nil {
		return err
	}
	if s.store == nil {
		if s.fallback != nil {
			return s.fallback.UpsertDocument(ctx, database.CollectionChats, sessionID, patch)
		}
		slog.Warn("no store configured, chat history not persisted", "session_id", sessionID)
		return nil
	}
	if err := s.store.UpsertDocument(ctx, database.CollectionChats, sessionID, patch); err != nil {
		if s.fallback != nil {
			slog.Warn("chat history write failed, retrying on fallback", "session_id", sessionID, "error", err)
			return s.fallback.UpsertDocument(ctx, database.CollectionChats, sessionID, patch)
		}
		return err
	}
	return nil
}

// Clear deletes the stored checkpoint for a session.
func (s *ChatHistoryService) Clear(ctx context.Context, sessionID string) error {
	if s.store == nil {
		return nil
	}
	return s.store.DeleteDocument(ctx, database.CollectionChats, sessionID)
}

func checkpointToPatch(sessionID string, checkpoint *models.Checkpoint) (models.Document, error) {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	patch := models.Document{
		"session_id": sessionID,
		"updated_at": models.FormatTime(time.Now()),
	}
	for k, v := range fields {
		patch[k] = v
	}
	return patch, nil
}

func checkpointFromDocument(doc models.Document) (*models.Checkpoint, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var checkpoint models.Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, err
	}
	if checkpoint.Components == nil {
		checkpoint.Components = map[string]any{}
	}
	return &checkpoint, nil
}
