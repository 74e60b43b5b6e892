package history

import (
	"fmt"
	"sort"
	"strings"
)

// labelOverrides maps the recognized action types to their display labels.
var labelOverrides = map[ActionType]string{
	ActionInitialCreation:    "Initial Creation",
	ActionPromptEdit:         "Prompt Edit",
	ActionContentGeneration:  "Content Generation",
	ActionVersionRestoration: "Version Restoration",
}

const unknownActionLabel = "Unknown Action"

// ActionLabel returns the timeline label for an action type. Unrecognized
// types render as the raw type with underscores replaced by spaces; a missing
// type renders as "Unknown Action".
func ActionLabel(actionType ActionType) string {
	if actionType == "" {
		return unknownActionLabel
	}
	if label, ok := labelOverrides[actionType]; ok {
		return label
	}
	return strings.ReplaceAll(string(actionType), "_", " ")
}

// Reconcile merges the current version and the archived version set into one
// deduplication-free, display-annotated action timeline, most recent first.
//
// Actions are collected in recording order (archived versions visited in
// ascending version order, the current version last), stamped with their
// owning version wherever the action does not carry its own transition, and
// stably sorted by normalized timestamp descending. Actions sharing a
// timestamp keep reverse collection order, so the latest recorded action
// renders first. A nil current version, missing action lists, and unparseable
// timestamps all degrade per the package policy; the result is never an
// error, at worst an empty slice.
func Reconcile(current *VersionRecord, archived map[int]*VersionRecord) []AnnotatedAction {
	collected := collectActions(current, archived)
	if len(collected) == 0 {
		return []AnnotatedAction{}
	}

	order := make([]int, len(collected))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		left, right := collected[order[i]], collected[order[j]]
		if left.SortSeconds != right.SortSeconds {
			return left.SortSeconds > right.SortSeconds
		}
		return order[i] > order[j]
	})

	timeline := make([]AnnotatedAction, len(collected))
	for i, sourceIndex := range order {
		timeline[i] = collected[sourceIndex]
	}
	return timeline
}

func collectActions(current *VersionRecord, archived map[int]*VersionRecord) []AnnotatedAction {
	var collected []AnnotatedAction

	versionNumbers := make([]int, 0, len(archived))
	for versionNumber := range archived {
		versionNumbers = append(versionNumbers, versionNumber)
	}
	sort.Ints(versionNumbers)

	for _, versionNumber := range versionNumbers {
		record := archived[versionNumber]
		if record == nil {
			continue
		}
		source := fmt.Sprintf("archived-v%d", versionNumber)
		for _, action := range record.Actions {
			collected = append(collected, annotate(action, versionNumber, source, ContextArchived))
		}
	}

	if current != nil {
		for _, action := range current.Actions {
			collected = append(collected, annotate(action, current.Version, "current", ContextCurrent))
		}
	}

	return collected
}

// annotate copies the action and fills every derived display field. The
// owning version number backfills from/to/display whenever the action did not
// record its own transition.
func annotate(action ActionRecord, owningVersion int, source string, context VersionContext) AnnotatedAction {
	fromVersion := owningVersion
	if action.FromVersion != nil {
		fromVersion = *action.FromVersion
	}
	toVersion := owningVersion
	if action.ToVersion != nil {
		toVersion = *action.ToVersion
	}

	transition := versionTransition(action, fromVersion, toVersion)

	return AnnotatedAction{
		Action:            action,
		Source:            source,
		VersionContext:    context,
		DisplayVersion:    owningVersion,
		FromVersion:       fromVersion,
		ToVersion:         toVersion,
		VersionTransition: transition,
		DisplayPrompt:     DisplayPrompt(action),
		Label:             ActionLabel(action.Type),
		PromptJourney:     promptJourney(action),
		Metadata: EnhancedMetadata{
			IsVersionCreation:    action.Type == ActionVersionRestoration || action.Type == ActionContentGeneration,
			IsContentGeneration:  action.Type == ActionContentGeneration,
			IsInitialCreation:    action.Type == ActionInitialCreation,
			HasVersionTransition: transition != "",
		},
		SortSeconds: action.Timestamp.Seconds,
	}
}

func versionTransition(action ActionRecord, fromVersion, toVersion int) string {
	if fromVersion != toVersion {
		return fmt.Sprintf("v%d → v%d", fromVersion, toVersion)
	}
	if action.Type == ActionContentGeneration {
		return fmt.Sprintf("v%d", toVersion)
	}
	return ""
}
