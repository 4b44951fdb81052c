package models

// Turn is one (user input, bot output) pair in a conversation.
type Turn struct {
	User string `bson:"user" json:"user"`
	Bot  string `bson:"bot" json:"bot"`
}

// Tags is the structured result of analyzing one user input. Missing
// signals are empty strings; Personalization is nil unless the active
// analyzer extracts personal details.
type Tags struct {
	Intent          string               `json:"intent"`
	Emotion         string               `json:"emotion"`
	Topic           string               `json:"topic"`
	Tone            string               `json:"tone,omitempty"`
	RiskLevel       string               `json:"risk_level,omitempty"`
	Personalization *PersonalizationTags `json:"personalization,omitempty"`
}

// PersonalizationTags is the schema for personal details extracted from a
// single input: profile facts, tasks, answer-style instructions and goals.
type PersonalizationTags struct {
	Profile      map[string]string `json:"profile,omitempty"`
	Todos        []string          `json:"todos,omitempty"`
	Instructions string            `json:"instructions,omitempty"`
	Goals        string            `json:"goals,omitempty"`
}

// Empty reports whether nothing was extracted.
func (p *PersonalizationTags) Empty() bool {
	return p == nil || (len(p.Profile) == 0 && len(p.Todos) == 0 && p.Instructions == "" && p.Goals == "")
}

// SessionSnapshot is the serializable export of a session tracker: four
// parallel per-turn sequences plus the conversation turns. A nil slice
// means the key was absent from the checkpoint.
type SessionSnapshot struct {
	EmotionTrends   []string              `bson:"emotion_trends" json:"emotion_trends"`
	Intents         []string              `bson:"intents" json:"intents"`
	Topics          []string              `bson:"topics" json:"topics"`
	Personalization []PersonalizationTags `bson:"personalization,omitempty" json:"personalization,omitempty"`
	Turns           []Turn                `bson:"turns" json:"turns"`
	UserContext     map[string]any        `bson:"user_context,omitempty" json:"user_context,omitempty"`
}

// Checkpoint is the conversation-level persistence unit stored in the
// "chats" collection, keyed by session id.
type Checkpoint struct {
	SessionMemory SessionSnapshot `bson:"session_memory" json:"session_memory"`
	Turns         []Turn          `bson:"turns" json:"turns"`
	Components    map[string]any  `bson:"components" json:"components"`
}

// Reply is the response generator's output for one turn.
type Reply struct {
	Response string `json:"response"`
	Mode     string `json:"mode"`
}
