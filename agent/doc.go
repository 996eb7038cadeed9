// Package agent implements the agent loop.
//
// One run appends the user input to memory, runs the capability Init hooks
// and then iterates: build the prompt from memory and goals, call the model,
// parse at most one action, execute it through the tool executor and append
// the resulting memory entries. Capabilities observe and transform every
// phase (see package capability). A run ends on a final answer, a terminal
// tool, a capability request, or when the iteration or duration bound is
// reached.
//
// The prompt format is pluggable through Language: FunctionCallingLanguage
// relies on provider tool calling, JSONActionLanguage on fenced JSON blocks
// in the response text.
package agent
