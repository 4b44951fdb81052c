// Package pipeline sequences one conversation turn: analyze, track pattern
// shifts, update session state, merge user context, generate the response,
// persist. Turns within one conversation are strictly sequential.
package pipeline

import (
	"errors"
	"fmt"

	"tca/internal/models"
)

// ErrUnknownMode is a configuration error: the requested mode was never
// registered. It is raised at pipeline construction, before any turn runs.
var ErrUnknownMode = errors.New("unrecognized mode")

// Analyzer is the opaque per-mode analysis capability.
type Analyzer interface {
	Analyze(text string) models.Tags
}

// Responder is the opaque per-mode response generation capability.
type Responder interface {
	Respond(tags models.Tags, context map[string]any, turns []models.Turn) (models.Reply, error)
}

// Mode pairs the two capabilities that define a conversation mode.
type Mode struct {
	Analyzer  Analyzer
	Responder Responder
}

// Registry maps mode identifiers to their capabilities. Registration is
// validated up front; lookups of unknown modes fail before a turn starts.
type Registry struct {
	modes map[string]Mode
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modes: map[string]Mode{}}
}

// Register adds a mode, rejecting incomplete capability pairs.
func (r *Registry) Register(name string, mode Mode) error {
	if name == "" {
		return fmt.Errorf("mode name must not be empty")
	}
	if mode.Analyzer == nil || mode.Responder == nil {
		return fmt.Errorf("mode %q requires both an analyzer and a responder", name)
	}
	r.modes[name] = mode
	return nil
}

// Lookup resolves a mode name.
func (r *Registry) Lookup(name string) (Mode, error) {
	mode, ok := r.modes[name]
	if !ok {
		return Mode{}, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return mode, nil
}

// Names lists the registered mode identifiers.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.modes))
	for name := range r.modes {
		names = append(names, name)
	}
	return names
}
