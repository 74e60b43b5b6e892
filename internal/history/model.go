// Package history reconciles the version and action records of a generated
// asset into a single display-ready timeline. Everything in this package is a
// pure transformation: records are read, never mutated, and malformed input
// degrades to safe defaults instead of returning errors.
package history

import "encoding/json"

// ActionType labels a recorded lifecycle event. The backend may emit values
// outside this set; unrecognized types are rendered with a generic label, not
// rejected.
type ActionType string

const (
	// ActionInitialCreation marks the first version of an asset.
	ActionInitialCreation ActionType = "initial_creation"
	// ActionPromptEdit records a prompt change that did not produce content.
	ActionPromptEdit ActionType = "prompt_edit"
	// ActionContentGeneration records a completed generation run.
	ActionContentGeneration ActionType = "content_generation"
	// ActionVersionRestoration records an archived version being re-activated.
	ActionVersionRestoration ActionType = "version_restoration"
)

// ActionRecord is one lifecycle event attached to a version, exactly as the
// backend emits it. Prompt fields overlap for legacy reasons; DisplayPrompt
// resolves them into a single rendered value.
type ActionRecord struct {
	Type        ActionType `json:"type"`
	FromVersion *int       `json:"fromVersion,omitempty"`
	ToVersion   *int       `json:"toVersion,omitempty"`

	NewPrompt      string `json:"newPrompt,omitempty"`
	FinalPrompt    string `json:"finalPrompt,omitempty"`
	OriginalPrompt string `json:"originalPrompt,omitempty"`
	PreviousPrompt string `json:"previousPrompt,omitempty"`
	Prompt         string `json:"prompt,omitempty"`

	Timestamp Timestamp `json:"timestamp"`

	RegenerationReason         string          `json:"regenerationReason,omitempty"`
	Duration                   float64         `json:"duration,omitempty"`
	Model                      string          `json:"model,omitempty"`
	CurrentModel               string          `json:"currentModel,omitempty"`
	ModelTier                  int             `json:"modelTier,omitempty"`
	CurrentModelTier           int             `json:"currentModelTier,omitempty"`
	TotalEditsBeforeGeneration int             `json:"totalEditsBeforeGeneration,omitempty"`
	VoiceConfig                json.RawMessage `json:"voiceConfig,omitempty"`
	ActorID                    string          `json:"actorId,omitempty"`
	NarratorID                 string          `json:"narratorId,omitempty"`
	AudioMetrics               json.RawMessage `json:"audioMetrics,omitempty"`
	ContentPath                string          `json:"contentPath,omitempty"`
	DestinationPath            string          `json:"destinationPath,omitempty"`
	SourceVersion              *int            `json:"sourceVersion,omitempty"`
	RestoredFromVersion        *int            `json:"restoredFromVersion,omitempty"`
	WasCompleted               bool            `json:"wasCompleted,omitempty"`
	ContentGenerated           bool            `json:"contentGenerated,omitempty"`
}

// VersionRecord is one saved revision of a generated asset together with the
// ordered actions recorded against it.
type VersionRecord struct {
	Version         int            `json:"version"`
	Prompt          string         `json:"prompt,omitempty"`
	DestinationPath string         `json:"destinationPath,omitempty"`
	Duration        float64        `json:"duration,omitempty"`
	ModelTier       int            `json:"modelTier,omitempty"`
	Status          string         `json:"status,omitempty"`
	IsDraft         bool           `json:"isDraft,omitempty"`
	Timestamp       Timestamp      `json:"timestamp"`
	Actions         []ActionRecord `json:"actions,omitempty"`
}

// VersionContext distinguishes where in the version set an action originated.
type VersionContext string

const (
	// ContextCurrent tags actions taken from the active version.
	ContextCurrent VersionContext = "current"
	// ContextArchived tags actions taken from superseded versions.
	ContextArchived VersionContext = "archived"
)

// PromptJourney captures how an action moved the prompt, for display.
type PromptJourney struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	WasEdited bool   `json:"wasEdited"`
}

// EnhancedMetadata bundles the derived classification flags the dashboard
// renders badges from.
type EnhancedMetadata struct {
	IsVersionCreation    bool `json:"isVersionCreation"`
	IsContentGeneration  bool `json:"isContentGeneration"`
	IsInitialCreation    bool `json:"isInitialCreation"`
	HasVersionTransition bool `json:"hasVersionTransition"`
}

// AnnotatedAction is the display-ready form of an ActionRecord: the canonical
// record plus every derived field the timeline view needs. The embedded record
// is a copy; annotation never writes back to the source.
type AnnotatedAction struct {
	Action ActionRecord `json:"action"`

	Source         string         `json:"source"`
	VersionContext VersionContext `json:"versionContext"`
	DisplayVersion int            `json:"displayVersion"`
	FromVersion    int            `json:"fromVersion"`
	ToVersion      int            `json:"toVersion"`

	VersionTransition string           `json:"versionTransition,omitempty"`
	DisplayPrompt     string           `json:"displayPrompt,omitempty"`
	Label             string           `json:"label"`
	PromptJourney     PromptJourney    `json:"promptJourney"`
	Metadata          EnhancedMetadata `json:"enhancedMetadata"`

	// SortSeconds is the normalized chronological key the timeline was
	// ordered by; zero when the source timestamp was unparseable.
	SortSeconds int64 `json:"sortSeconds"`
}
