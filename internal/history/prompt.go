package history

import "strings"

// DisplayPrompt resolves the overlapping legacy prompt fields into the single
// prompt the timeline renders: first non-empty of newPrompt, finalPrompt,
// originalPrompt, prompt. The ordering is fixed; first match wins.
func DisplayPrompt(action ActionRecord) string {
	return firstNonEmpty(action.NewPrompt, action.FinalPrompt, action.OriginalPrompt, action.Prompt)
}

// promptJourney derives the from/to movement of the prompt for one action.
// WasEdited is only set when both endpoints are present and differ.
func promptJourney(action ActionRecord) PromptJourney {
	from := firstNonEmpty(action.OriginalPrompt, action.PreviousPrompt)
	to := firstNonEmpty(action.FinalPrompt, action.NewPrompt, action.Prompt)
	return PromptJourney{
		From:      from,
		To:        to,
		WasEdited: from != "" && to != "" && from != to,
	}
}

// firstNonEmpty returns the first candidate with non-whitespace content.
func firstNonEmpty(candidates ...string) string {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}
