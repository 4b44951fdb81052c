package models

// PersonalizationSnapshot is the derived read view combining profile, todos,
// instructions and research goals for a session, materialized on demand from
// either storage layout.
type PersonalizationSnapshot struct {
	Profile       map[string]string `json:"profile"`
	Todos         []string          `json:"todos"`
	Instructions  string            `json:"instructions"`
	ResearchGoals string            `json:"research_goals"`
}

// EmptyPersonalizationSnapshot is what readers return when nothing is stored
// or the backend is unreachable.
func EmptyPersonalizationSnapshot() PersonalizationSnapshot {
	return PersonalizationSnapshot{
		Profile: map[string]string{},
		Todos:   []string{},
	}
}

// Empty reports whether the snapshot carries no stored fields.
func (s PersonalizationSnapshot) Empty() bool {
	return len(s.Profile) == 0 && len(s.Todos) == 0 && s.Instructions == "" && s.ResearchGoals == ""
}

// Clone returns a copy with its own profile map and todos slice, so callers
// can't mutate shared state through a returned snapshot.
func (s PersonalizationSnapshot) Clone() PersonalizationSnapshot {
	out := s
	out.Profile = make(map[string]string, len(s.Profile))
	for k, v := range s.Profile {
		out.Profile[k] = v
	}
	out.Todos = append([]string{}, s.Todos...)
	return out
}
