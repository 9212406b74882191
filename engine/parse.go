package engine

import "strings"

// finalAnswerSentinel is the action value that signals run completion.
// Matching is case-insensitive.
const finalAnswerSentinel = "final answer"

// noopSentinel is an action value meaning "no tool this step".
const noopSentinel = "none"

// reply holds the fields extracted from one model response. Parsing is
// line-anchored and tolerant: any marker may be absent. structured is
// false when no marker matched at all, which triggers the raw-text
// fallback in the loop.
type reply struct {
	Thought     string
	Action      string
	ActionInput string
	Final       bool
	FinalAnswer string
	structured  bool
}

// parseReply scans a model response for Thought:, Action:, and
// Action Input: markers at line starts. An Action of "Final Answer"
// (any case) makes the reply terminal, with the Action Input as the
// answer text.
func parseReply(text string) reply {
	var r reply
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Thought:"):
			r.Thought = strings.TrimSpace(line[len("Thought:"):])
			r.structured = true
		case strings.HasPrefix(line, "Action Input:"):
			r.ActionInput = strings.TrimSpace(line[len("Action Input:"):])
			r.structured = true
			if r.Final {
				r.FinalAnswer = r.ActionInput
			}
		case strings.HasPrefix(line, "Action:"):
			r.Action = strings.TrimSpace(line[len("Action:"):])
			r.structured = true
			if strings.EqualFold(r.Action, finalAnswerSentinel) {
				r.Final = true
			}
		}
	}
	return r
}

// isNoop reports whether the model explicitly declined to act.
func isNoop(action string) bool {
	return strings.EqualFold(action, noopSentinel)
}
