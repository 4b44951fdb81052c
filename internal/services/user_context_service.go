package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tca/internal/database"
	"tca/internal/models"
)

// ErrInvalidTodos is returned when a todos update is not a sequence of strings.
var ErrInvalidTodos = errors.New("todos must be a list of strings")

// UserContextService owns the canonical per-user record. It reads and writes
// the "users" collection on the primary backend, retries failed writes once
// against the fallback backend, and degrades to an in-memory-only record
// when no backend is reachable; a turn never fails because storage is down.
type UserContextService struct {
	primary  database.DocumentStore // nil when the durable store is unconfigured
	fallback database.DocumentStore // optional write-retry target

	mu      sync.RWMutex
	records map[string]*models.UserRecord
}

// NewUserContextService creates the store. primary may be nil (unconfigured
// durable backend); fallback may be nil (no local retry target).
func NewUserContextService(primary, fallback database.DocumentStore) *UserContextService {
	return &UserContextService{
		primary:  primary,
		fallback: fallback,
		records:  map[string]*models.UserRecord{},
	}
}

// Load returns the record for userID, creating and persisting a default one
// for first-time users. When the backend is unreachable it returns an
// in-memory-only default and logs a warning instead of failing.
func (s *UserContextService) Load(ctx context.Context, userID string) *models.UserRecord {
	if s.primary == nil {
		slog.Warn("durable store not configured, returning default user context", "user_id", userID)
		return s.remember(s.cachedOrDefault(userID))
	}

	doc, err := s.primary.GetDocument(ctx, database.CollectionUsers, userID)
	if err != nil {
		slog.Warn("failed to load user context, treating user as new", "user_id", userID, "error", err)
		return s.remember(s.cachedOrDefault(userID))
	}
	if doc == nil {
		// No consolidated record yet. Fold any legacy-layout documents into
		// the record being created so the write never shadows them.
		rec := s.migrateLegacy(ctx, userID)
		if rec == nil {
			rec = models.NewUserRecord(userID)
		}
		if err := s.primary.UpsertDocument(ctx, database.CollectionUsers, userID, rec.Document()); err != nil {
			slog.Warn("failed to persist new user record", "user_id", userID, "error", err)
		}
		return s.remember(rec)
	}

	rec, err := models.UserRecordFromDocument(userID, doc)
	if err != nil {
		slog.Error("failed to parse stored user record, using default", "user_id", userID, "error", err)
		return s.remember(models.NewUserRecord(userID))
	}
	return s.remember(rec)
}

// MergeUpdate applies a partial field set to the user record.
//
// Per-field policy: profile (bare string wraps to {info: s}) appends only
// novel text to "info" and last-write-wins per other sub-key; todos append
// each novel string; every other field is last-write-wins. updated_at is
// refreshed as part of the same write, and the in-memory view is re-read
// from the backend afterwards so callers observe the merged result.
//
// The novelty checks for profile/todos are read-then-write and only
// best-effort race-free across processes; scalar fields go down as atomic
// set-by-key updates.
func (s *UserContextService) MergeUpdate(ctx context.Context, userID string, fields map[string]any) error {
	s.mu.Lock()
	rec, ok := s.records[userID]
	s.mu.Unlock()
	if !ok {
		rec = s.Load(ctx, userID)
	}

	patch, err := buildPatch(rec, fields)
	if err != nil {
		return err
	}
	if len(patch) == 0 {
		return nil
	}
	now := time.Now().UTC()
	patch["updated_at"] = models.FormatTime(now)

	if s.primary == nil {
		s.applyLocal(userID, rec, patch, now)
		slog.Warn("durable store not configured, user context updated in memory only", "user_id", userID)
		return nil
	}

	if err := s.primary.UpsertDocument(ctx, database.CollectionUsers, userID, patch); err != nil {
		if s.fallback != nil {
			slog.Warn("primary store write failed, retrying on fallback", "user_id", userID, "error", err)
			if fbErr := s.fallback.UpsertDocument(ctx, database.CollectionUsers, userID, patch); fbErr != nil {
				return fmt.Errorf("fallback store write failed: %w", fbErr)
			}
			s.applyLocal(userID, rec, patch, now)
			return nil
		}
		return fmt.Errorf("user context write failed: %w", err)
	}

	// Read-after-write so the in-memory view reflects the merged document,
	// not just our own patch.
	doc, err := s.primary.GetDocument(ctx, database.CollectionUsers, userID)
	if err == nil && doc != nil {
		if fresh, parseErr := models.UserRecordFromDocument(userID, doc); parseErr == nil {
			s.remember(fresh)
			return nil
		}
	}
	s.applyLocal(userID, rec, patch, now)
	return nil
}

// Snapshot flattens the current in-memory record for response-generation
// context. Pure projection: no backend calls, no side effects.
func (s *UserContextService) Snapshot(userID string) map[string]any {
	s.mu.RLock()
	rec, ok := s.records[userID]
	s.mu.RUnlock()
	if !ok {
		return models.NewUserRecord(userID).Snapshot()
	}
	return rec.Snapshot()
}

// Current returns a copy of the in-memory record, loading it on first use.
func (s *UserContextService) Current(ctx context.Context, userID string) *models.UserRecord {
	s.mu.RLock()
	rec, ok := s.records[userID]
	s.mu.RUnlock()
	if ok {
		return rec.Clone()
	}
	return s.Load(ctx, userID)
}

// migrateLegacy folds data stored under the legacy four-collection layout
// into a fresh consolidated record, so the user's first consolidated write
// carries that data forward instead of hiding it from layout-probing
// readers. Returns nil when the user has no legacy documents.
func (s *UserContextService) migrateLegacy(ctx context.Context, userID string) *models.UserRecord {
	reader := &legacyReader{store: s.primary}
	snapshot, err := reader.Read(ctx, userID)
	if err != nil {
		slog.Warn("legacy context read failed, starting from an empty record", "user_id", userID, "error", err)
		return nil
	}
	if snapshot.Empty() {
		return nil
	}
	rec := models.NewUserRecord(userID)
	for k, v := range snapshot.Profile {
		rec.Profile[k] = v
	}
	rec.Todos = append(rec.Todos, snapshot.Todos...)
	rec.Instructions = snapshot.Instructions
	rec.ResearchGoals = snapshot.ResearchGoals
	return rec
}

func (s *UserContextService) cachedOrDefault(userID string) *models.UserRecord {
	s.mu.RLock()
	rec, ok := s.records[userID]
	s.mu.RUnlock()
	if ok {
		return rec
	}
	return models.NewUserRecord(userID)
}

func (s *UserContextService) remember(rec *models.UserRecord) *models.UserRecord {
	s.mu.Lock()
	s.records[rec.UserID] = rec
	s.mu.Unlock()
	return rec.Clone()
}

// buildPatch turns an incoming partial field set into a flat store patch,
// applying the merge policy against the current record.
func buildPatch(rec *models.UserRecord, fields map[string]any) (models.Document, error) {
	patch := models.Document{}
	for field, value := range fields {
		switch field {
		case "profile":
			if err := mergeProfile(rec, value, patch); err != nil {
				return nil, err
			}
		case "todos":
			todos, err := asStringSlice(value)
			if err != nil {
				return nil, err
			}
			merged := mergeTodos(rec.Todos, todos)
			if merged != nil {
				patch["todos"] = merged
			}
		default:
			// Scalars are last-write-wins, set atomically by key.
			patch[field] = value
		}
	}
	return patch, nil
}

func mergeProfile(rec *models.UserRecord, value any, patch models.Document) error {
	incoming := map[string]string{}
	switch v := value.(type) {
	case string:
		incoming[models.ProfileInfoKey] = v
	case map[string]string:
		for k, s := range v {
			incoming[k] = s
		}
	case map[string]any:
		for k, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("profile value for %q must be a string, got %T", k, item)
			}
			incoming[k] = s
		}
	default:
		return fmt.Errorf("profile must be a string or a map of strings, got %T", value)
	}

	for k, v := range incoming {
		if k == models.ProfileInfoKey {
			if merged, changed := AppendNovelText(rec.Profile[models.ProfileInfoKey], v); changed {
				patch["profile."+models.ProfileInfoKey] = merged
			}
			continue
		}
		patch["profile."+k] = v
	}
	return nil
}

// AppendNovelText implements the duplicate-suppression append rule for
// profile notes: the addition is applied only when it is not already a
// literal (case-sensitive) substring of the existing value.
func AppendNovelText(existing, addition string) (string, bool) {
	addition = strings.TrimSpace(addition)
	if addition == "" {
		return existing, false
	}
	if strings.Contains(existing, addition) {
		return existing, false
	}
	return strings.TrimSpace(existing + " " + addition), true
}

// mergeTodos returns the full merged list when at least one incoming todo is
// novel, nil when nothing changes. Append-only, no removal.
func mergeTodos(existing, incoming []string) []any {
	merged := append([]string{}, existing...)
	changed := false
	for _, todo := range incoming {
		if todo == "" || containsString(merged, todo) {
			continue
		}
		merged = append(merged, todo)
		changed = true
	}
	if !changed {
		return nil
	}
	out := make([]any, len(merged))
	for i, t := range merged {
		out[i] = t
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func asStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: got %T element", ErrInvalidTodos, item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidTodos, value)
	}
}

// applyLocal applies the patch to the in-memory record when the backend
// round-trip is unavailable.
func (s *UserContextService) applyLocal(userID string, rec *models.UserRecord, patch models.Document, now time.Time) {
	updated := rec.Clone()
	for k, v := range patch {
		switch {
		case k == "updated_at":
			updated.UpdatedAt = now
		case k == "todos":
			updated.Todos = anySliceToStrings(v)
		case strings.HasPrefix(k, "profile."):
			if s, ok := v.(string); ok {
				updated.Profile[strings.TrimPrefix(k, "profile.")] = s
			}
		case k == "instructions":
			updated.Instructions, _ = v.(string)
		case k == "research_goals":
			updated.ResearchGoals, _ = v.(string)
		case k == "conversation_summary":
			updated.ConversationSummary, _ = v.(string)
		case k == "last_summary_update":
			if s, ok := v.(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					updated.LastSummaryUpdate = t
				}
			}
		}
	}
	s.mu.Lock()
	s.records[userID] = updated
	s.mu.Unlock()
}

func anySliceToStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
