package pipeline

import (
	"context"
	"sync"

	"tca/internal/logging"
	"tca/internal/models"
	"tca/internal/services"
)

// FallbackResponse is the canned reply used when the responder fails. The
// turn still completes and persists whatever state was accumulated.
const FallbackResponse = "I'm sorry, I wasn't able to put together a proper response just now, but I'm still here with you."

// Options configures one conversation pipeline.
type Options struct {
	Mode      string
	SessionID string
	UserID    string
}

// Pipeline orchestrates the turn state machine for a single conversation:
// Received -> Analyzed -> PatternTracked -> SessionUpdated -> ContextLoaded
// -> ResponseGenerated -> Persisted. A mutex enforces one active turn.
type Pipeline struct {
	mu sync.Mutex

	mode      string
	sessionID string
	userID    string

	analyzer  Analyzer
	responder Responder
	pattern   PatternTracker

	tracker         *services.SessionTracker
	users           *services.UserContextService
	personalization *services.PersonalizationService
	history         *services.ChatHistoryService

	components map[string]any
}

// New builds a pipeline for the requested mode. Unknown modes are rejected
// here, before any turn runs.
func New(registry *Registry, opts Options, users *services.UserContextService, personalization *services.PersonalizationService, history *services.ChatHistoryService) (*Pipeline, error) {
	mode, err := registry.Lookup(opts.Mode)
	if err != nil {
		return nil, err
	}
	userID := opts.UserID
	if userID == "" {
		userID = opts.SessionID
	}
	return &Pipeline{
		mode:            opts.Mode,
		sessionID:       opts.SessionID,
		userID:          userID,
		analyzer:        mode.Analyzer,
		responder:       mode.Responder,
		tracker:         services.NewSessionTracker(),
		users:           users,
		personalization: personalization,
		history:         history,
		components:      map[string]any{},
	}, nil
}

// Mode returns the pipeline's mode identifier.
func (p *Pipeline) Mode() string {
	return p.mode
}

// SessionID returns the conversation's session identifier.
func (p *Pipeline) SessionID() string {
	return p.sessionID
}

// Turns returns the conversation turns recorded so far.
func (p *Pipeline) Turns() []models.Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker.Turns()
}

// UserID returns the id the user context is stored under.
func (p *Pipeline) UserID() string {
	return p.userID
}

// Restore loads a previously persisted checkpoint into the pipeline. Live
// state is expected to be empty at restore time.
func (p *Pipeline) Restore(checkpoint *models.Checkpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker.LoadSnapshot(checkpoint.SessionMemory)
	if len(checkpoint.Turns) > 0 && len(checkpoint.SessionMemory.Turns) == 0 {
		p.tracker.LoadSnapshot(models.SessionSnapshot{Turns: checkpoint.Turns})
	}
	if checkpoint.Components != nil {
		p.components = checkpoint.Components
	}
}

// Process runs one turn end to end. It only fails on caller errors; storage
// and generator failures are recovered inside and logged.
func (p *Pipeline) Process(ctx context.Context, userInput string) (models.Reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := logging.WithSession(p.sessionID, p.userID, p.mode)

	// Analyzed
	tags := p.analyzer.Analyze(userInput)

	// PatternTracked
	shift := p.pattern.Track(p.tracker.EmotionTrends(), tags)

	// SessionUpdated
	p.tracker.Update(tags)

	// ContextLoaded: merge extracted personalization into the durable user
	// record, then assemble the response context.
	if fields := personalizationFields(tags.Personalization); len(fields) > 0 {
		if err := p.users.MergeUpdate(ctx, p.userID, fields); err != nil {
			logger.Warn("user context merge failed, continuing turn", "error", err)
		}
		// The merge bypassed SaveField, so drop the cached snapshot here.
		p.personalization.Invalidate(p.sessionID)
	}
	snapshot := p.personalization.Fetch(ctx, p.sessionID)
	responseContext := map[string]any{
		"user_context":    p.users.Snapshot(p.userID),
		"personalization": snapshot,
		"pattern":         shift,
	}

	// ResponseGenerated: a generator failure degrades to the canned reply,
	// never aborts the turn.
	reply, err := p.responder.Respond(tags, responseContext, p.tracker.Turns())
	if err != nil {
		logger.Warn("response generation failed, using fallback reply", "error", err)
		reply = models.Reply{Response: FallbackResponse, Mode: "fallback"}
	}

	// Persisted
	p.tracker.AppendTurn(userInput, reply.Response)
	p.components = map[string]any{
		"last_analysis": tags,
		"pattern":       shift,
	}
	if err := p.history.Save(ctx, p.sessionID, p.checkpointLocked()); err != nil {
		logger.Warn("checkpoint persistence failed", "error", err)
	}

	return reply, nil
}

// Checkpoint exports the conversation state for persistence.
func (p *Pipeline) Checkpoint() *models.Checkpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkpointLocked()
}

func (p *Pipeline) checkpointLocked() *models.Checkpoint {
	memory := p.tracker.ToSnapshot()
	memory.UserContext = p.users.Snapshot(p.userID)
	return &models.Checkpoint{
		SessionMemory: memory,
		Turns:         p.tracker.Turns(),
		Components:    p.components,
	}
}

// personalizationFields maps extracted tags onto user-record fields.
func personalizationFields(p *models.PersonalizationTags) map[string]any {
	if p.Empty() {
		return nil
	}
	fields := map[string]any{}
	if len(p.Profile) > 0 {
		fields["profile"] = p.Profile
	}
	if len(p.Todos) > 0 {
		fields["todos"] = p.Todos
	}
	if p.Instructions != "" {
		fields["instructions"] = p.Instructions
	}
	if p.Goals != "" {
		fields["research_goals"] = p.Goals
	}
	return fields
}
