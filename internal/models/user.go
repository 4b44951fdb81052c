package models

import (
	"fmt"
	"time"
)

// UserRecord is the canonical persistent per-user document stored in the
// "users" collection. Profile notes accumulate by appending novel text,
// todos append with duplicate suppression, everything else is
// last-write-wins.
type UserRecord struct {
	UserID              string            `bson:"user_id" json:"user_id"`
	Profile             map[string]string `bson:"profile" json:"profile"`
	Todos               []string          `bson:"todos" json:"todos"`
	Instructions        string            `bson:"instructions" json:"instructions"`
	ResearchGoals       string            `bson:"research_goals" json:"research_goals"`
	ConversationSummary string            `bson:"conversation_summary" json:"conversation_summary"`
	LastSummaryUpdate   time.Time         `bson:"last_summary_update,omitempty" json:"last_summary_update,omitempty"`
	CreatedAt           time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time         `bson:"updated_at" json:"updated_at"`
}

// ProfileInfoKey is the profile sub-key holding accumulated free-text notes.
const ProfileInfoKey = "info"

// NewUserRecord returns the default record for a user that has never been
// seen before. Timestamps are set to now.
func NewUserRecord(userID string) *UserRecord {
	now := time.Now().UTC()
	return &UserRecord{
		UserID:    userID,
		Profile:   map[string]string{},
		Todos:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UserRecordFromDocument rebuilds a UserRecord from a raw stored document.
// It tolerates the legacy shape where profile was a bare string (normalized
// to {info: <string>}) and defaults missing optional fields to their empty
// values instead of failing the read.
func UserRecordFromDocument(userID string, doc Document) (*UserRecord, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document for user %q", userID)
	}
	rec := NewUserRecord(userID)
	if id, ok := doc["user_id"].(string); ok && id != "" {
		rec.UserID = id
	}

	switch profile := doc["profile"].(type) {
	case nil:
	case string:
		// Legacy layout stored profile as a bare string.
		if profile != "" {
			rec.Profile[ProfileInfoKey] = profile
		}
	case map[string]string:
		for k, v := range profile {
			rec.Profile[k] = v
		}
	case map[string]any:
		for k, v := range profile {
			if s, ok := v.(string); ok {
				rec.Profile[k] = s
			}
		}
	default:
		return nil, fmt.Errorf("user %q: unsupported profile type %T", userID, profile)
	}

	rec.Todos = stringSlice(doc["todos"])
	rec.Instructions = stringField(doc, "instructions")
	rec.ResearchGoals = stringField(doc, "research_goals")
	rec.ConversationSummary = stringField(doc, "conversation_summary")
	rec.LastSummaryUpdate = timeField(doc, "last_summary_update")
	if t := timeField(doc, "created_at"); !t.IsZero() {
		rec.CreatedAt = t
	}
	if t := timeField(doc, "updated_at"); !t.IsZero() {
		rec.UpdatedAt = t
	}
	return rec, nil
}

// Document flattens the record into the stored field layout. Timestamps are
// serialized as RFC 3339 strings so both backends store the same shape.
func (r *UserRecord) Document() Document {
	profile := map[string]any{}
	for k, v := range r.Profile {
		profile[k] = v
	}
	todos := make([]any, len(r.Todos))
	for i, t := range r.Todos {
		todos[i] = t
	}
	doc := Document{
		"user_id":              r.UserID,
		"profile":              profile,
		"todos":                todos,
		"instructions":         r.Instructions,
		"research_goals":       r.ResearchGoals,
		"conversation_summary": r.ConversationSummary,
		"created_at":           FormatTime(r.CreatedAt),
		"updated_at":           FormatTime(r.UpdatedAt),
	}
	if !r.LastSummaryUpdate.IsZero() {
		doc["last_summary_update"] = FormatTime(r.LastSummaryUpdate)
	}
	return doc
}

// Snapshot projects the record into a flat map for response-generation
// context. Pure projection, no side effects.
func (r *UserRecord) Snapshot() map[string]any {
	profile := map[string]string{}
	for k, v := range r.Profile {
		profile[k] = v
	}
	return map[string]any{
		"user_id":              r.UserID,
		"profile":              profile,
		"todos":                append([]string{}, r.Todos...),
		"instructions":         r.Instructions,
		"research_goals":       r.ResearchGoals,
		"conversation_summary": r.ConversationSummary,
		"updated_at":           FormatTime(r.UpdatedAt),
	}
}

// Clone returns a deep copy so callers can't mutate the cached view.
func (r *UserRecord) Clone() *UserRecord {
	cp := *r
	cp.Profile = map[string]string{}
	for k, v := range r.Profile {
		cp.Profile[k] = v
	}
	cp.Todos = append([]string{}, r.Todos...)
	return &cp
}

// HasTodo reports whether the exact todo text is already present.
func (r *UserRecord) HasTodo(todo string) bool {
	for _, t := range r.Todos {
		if t == todo {
			return true
		}
	}
	return false
}

func stringField(doc Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

func timeField(doc Document, key string) time.Time {
	s, ok := doc[key].(string)
	if !ok {
		if t, ok := doc[key].(time.Time); ok {
			return t
		}
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return append([]string{}, vv...)
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

// FormatTime renders timestamps the way they are stored in documents.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
