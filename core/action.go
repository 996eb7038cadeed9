package core

// Action is the tool invocation parsed from one model response. It lives for
// a single iteration.
type Action struct {
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
	// CallID correlates the action with the provider's tool call id, when any.
	CallID string `json:"call_id,omitempty"`
}

// Goal is a named objective rendered into the system prompt.
type Goal struct {
	Priority    int    `json:"priority"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
