package assets

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidAssetID indicates that an asset identifier is empty or exceeds storage bounds.
	ErrInvalidAssetID = errors.New("assets: invalid asset id")
	// ErrInvalidOwnerID indicates that an owner identifier is empty or exceeds storage bounds.
	ErrInvalidOwnerID = errors.New("assets: invalid owner id")
)

// AssetID represents a validated generated-asset identifier.
type AssetID string

// NewAssetID validates raw input and returns an AssetID.
func NewAssetID(rawInput string) (AssetID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAssetID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidAssetID, maxIdentifierLength)
	}
	return AssetID(trimmed), nil
}

// String returns the underlying string identifier.
func (id AssetID) String() string {
	return string(id)
}

// OwnerID represents a validated owning-user identifier.
type OwnerID string

// NewOwnerID validates raw input and returns an OwnerID.
func NewOwnerID(rawInput string) (OwnerID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidOwnerID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidOwnerID, maxIdentifierLength)
	}
	return OwnerID(trimmed), nil
}

// String returns the underlying string identifier.
func (id OwnerID) String() string {
	return string(id)
}

// Version status labels. The column is stored as an opaque string so unknown
// backend statuses survive round trips.
const (
	StatusDraft     = "draft"
	StatusGenerated = "generated"
	StatusError     = "error"
)

// AssetVersion models one persisted revision of a generated asset. Exactly one
// row per asset carries is_current; all others are archived and addressable by
// version number.
type AssetVersion struct {
	OwnerID          string  `gorm:"column:owner_id;primaryKey;size:190;not null;index:idx_versions_owner_asset,priority:1"`
	AssetID          string  `gorm:"column:asset_id;primaryKey;size:190;not null;index:idx_versions_owner_asset,priority:2"`
	Version          int     `gorm:"column:version;primaryKey;not null"`
	Prompt           string  `gorm:"column:prompt;type:text"`
	DestinationPath  string  `gorm:"column:destination_path;size:512"`
	Duration         float64 `gorm:"column:duration;not null;default:0"`
	ModelTier        int     `gorm:"column:model_tier;not null;default:0"`
	Status           string  `gorm:"column:status;size:64;not null;default:'draft'"`
	IsDraft          bool    `gorm:"column:is_draft;not null"`
	IsCurrent        bool    `gorm:"column:is_current;not null;default:false"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (AssetVersion) TableName() string {
	return "asset_versions"
}

// VersionAction captures an append-only lifecycle event against a version.
// Actions are written once and never mutated; the history reconciler derives
// all display fields from them at read time.
type VersionAction struct {
	ActionID           string  `gorm:"column:action_id;primaryKey;size:190;not null"`
	OwnerID            string  `gorm:"column:owner_id;size:190;not null;index:idx_actions_owner_asset,priority:1"`
	AssetID            string  `gorm:"column:asset_id;size:190;not null;index:idx_actions_owner_asset,priority:2"`
	Version            int     `gorm:"column:version;not null"`
	ActionType         string  `gorm:"column:action_type;size:64;not null"`
	FromVersion        *int    `gorm:"column:from_version"`
	ToVersion          *int    `gorm:"column:to_version"`
	NewPrompt          string  `gorm:"column:new_prompt;type:text"`
	FinalPrompt        string  `gorm:"column:final_prompt;type:text"`
	OriginalPrompt     string  `gorm:"column:original_prompt;type:text"`
	PreviousPrompt     string  `gorm:"column:previous_prompt;type:text"`
	Prompt             string  `gorm:"column:prompt;type:text"`
	RegenerationReason string  `gorm:"column:regeneration_reason;size:512"`
	Duration           float64 `gorm:"column:duration;not null;default:0"`
	Model              string  `gorm:"column:model;size:190"`
	ModelTier          int     `gorm:"column:model_tier;not null;default:0"`
	TotalEdits         int     `gorm:"column:total_edits;not null;default:0"`
	ContentPath        string  `gorm:"column:content_path;size:512"`
	SourceVersion      *int    `gorm:"column:source_version"`
	WasCompleted       bool    `gorm:"column:was_completed;not null;default:false"`
	ContentGenerated   bool    `gorm:"column:content_generated;not null;default:false"`
	OccurredAtSeconds  int64   `gorm:"column:occurred_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (VersionAction) TableName() string {
	return "version_actions"
}
