package assets

import "github.com/reelforge/studio/backend/internal/history"

// buildVersionRecords maps persisted rows into the reconciler's input shape:
// the single current version plus archived versions keyed by number. Action
// rows attach to their owning version in insertion order.
func buildVersionRecords(versions []AssetVersion, actions []VersionAction) (*history.VersionRecord, map[int]*history.VersionRecord) {
	byVersion := make(map[int]*history.VersionRecord, len(versions))
	var current *history.VersionRecord

	for _, version := range versions {
		record := &history.VersionRecord{
			Version:         version.Version,
			Prompt:          version.Prompt,
			DestinationPath: version.DestinationPath,
			Duration:        version.Duration,
			ModelTier:       version.ModelTier,
			Status:          version.Status,
			IsDraft:         version.IsDraft,
			Timestamp:       history.NewTimestamp(version.CreatedAtSeconds),
		}
		byVersion[version.Version] = record
		if version.IsCurrent {
			current = record
		}
	}

	for _, action := range actions {
		record, ok := byVersion[action.Version]
		if !ok {
			continue
		}
		record.Actions = append(record.Actions, toActionRecord(action))
	}

	archived := make(map[int]*history.VersionRecord, len(byVersion))
	for versionNumber, record := range byVersion {
		if current != nil && versionNumber == current.Version {
			continue
		}
		archived[versionNumber] = record
	}

	return current, archived
}

func toActionRecord(action VersionAction) history.ActionRecord {
	return history.ActionRecord{
		Type:                       history.ActionType(action.ActionType),
		FromVersion:                action.FromVersion,
		ToVersion:                  action.ToVersion,
		NewPrompt:                  action.NewPrompt,
		FinalPrompt:                action.FinalPrompt,
		OriginalPrompt:             action.OriginalPrompt,
		PreviousPrompt:             action.PreviousPrompt,
		Prompt:                     action.Prompt,
		Timestamp:                  history.NewTimestamp(action.OccurredAtSeconds),
		RegenerationReason:         action.RegenerationReason,
		Duration:                   action.Duration,
		Model:                      action.Model,
		ModelTier:                  action.ModelTier,
		TotalEditsBeforeGeneration: action.TotalEdits,
		ContentPath:                action.ContentPath,
		SourceVersion:              action.SourceVersion,
		WasCompleted:               action.WasCompleted,
		ContentGenerated:           action.ContentGenerated,
	}
}
