package pipeline

import (
	"context"
	"sync"

	"tca/internal/models"
	"tca/internal/services"
)

// SessionManager hands out one pipeline per session id, restoring persisted
// checkpoints on first use. Safe for concurrent use across sessions; each
// pipeline still serializes its own turns.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Pipeline

	registry        *Registry
	defaultMode     string
	users           *services.UserContextService
	personalization *services.PersonalizationService
	history         *services.ChatHistoryService
}

// NewSessionManager creates the manager.
func NewSessionManager(registry *Registry, defaultMode string, users *services.UserContextService, personalization *services.PersonalizationService, history *services.ChatHistoryService) *SessionManager {
	return &SessionManager{
		sessions:        map[string]*Pipeline{},
		registry:        registry,
		defaultMode:     defaultMode,
		users:           users,
		personalization: personalization,
		history:         history,
	}
}

// Get returns the pipeline for a session, creating it (and restoring its
// checkpoint) on first use. An unknown mode is rejected here, before any
// turn runs; a malformed stored checkpoint surfaces as a validation error.
func (m *SessionManager) Get(ctx context.Context, sessionID, mode string) (*Pipeline, error) {
	if mode == "" {
		mode = m.defaultMode
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.sessions[sessionID]; ok && p.Mode() == mode {
		return p, nil
	}

	p, err := New(m.registry, Options{Mode: mode, SessionID: sessionID, UserID: sessionID}, m.users, m.personalization, m.history)
	if err != nil {
		return nil, err
	}
	checkpoint, err := m.history.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	p.Restore(checkpoint)
	m.sessions[sessionID] = p
	return p, nil
}

// Remove forgets a session's in-process pipeline.
func (m *SessionManager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Count reports the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ActiveTurns snapshots the turns of every live conversation, keyed by the
// user id the context is stored under. Feed for the summary sweep.
func (m *SessionManager) ActiveTurns() map[string][]models.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]models.Turn, len(m.sessions))
	for _, p := range m.sessions {
		turns := p.Turns()
		if len(turns) == 0 {
			continue
		}
		out[p.UserID()] = turns
	}
	return out
}
