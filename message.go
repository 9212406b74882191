package reagent

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in the conversation sent to a model adapter.
// Adapters must not truncate or reshape message content; context shaping
// is the engine's responsibility.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Usage is a map of named token counters reported by a model call.
// Providers populate the counters they know about; the map may be empty.
type Usage map[string]int

// Common usage counter names shared across providers.
const (
	UsagePromptTokens     = "prompt_tokens"
	UsageCompletionTokens = "completion_tokens"
	UsageTotalTokens      = "total_tokens"
)

// Completion is the result of one model call: the raw response text plus
// usage metadata.
type Completion struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage,omitempty"`
}

// Total returns the total token counter, falling back to the sum of the
// prompt and completion counters when the provider does not report one.
func (u Usage) Total() int {
	if t, ok := u[UsageTotalTokens]; ok {
		return t
	}
	return u[UsagePromptTokens] + u[UsageCompletionTokens]
}
