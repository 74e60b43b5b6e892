package history

import "fmt"

const dedupePromptPrefixLength = 30

// DedupeActions drops repeated annotated actions, keeping the first occurrence
// of each (timestamp, type, prompt prefix) key. The reconciler itself does not
// deduplicate; callers whose backends replay actions across versions apply
// this as a pre- or post-pass over the annotated timeline. Input order is
// preserved.
func DedupeActions(actions []AnnotatedAction) []AnnotatedAction {
	if len(actions) == 0 {
		return actions
	}

	seen := make(map[string]struct{}, len(actions))
	deduped := make([]AnnotatedAction, 0, len(actions))
	for _, action := range actions {
		key := dedupeKey(action)
		if _, duplicate := seen[key]; duplicate {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, action)
	}
	return deduped
}

func dedupeKey(action AnnotatedAction) string {
	prefix := action.DisplayPrompt
	if len(prefix) > dedupePromptPrefixLength {
		prefix = prefix[:dedupePromptPrefixLength]
	}
	return fmt.Sprintf("%d|%s|%s", action.SortSeconds, action.Action.Type, prefix)
}
