// Package capability defines the pluggable hooks wrapped around every phase
// of the agent loop and ships the built-in capabilities.
//
// A Capability observes and transforms one run: it can seed memory at Init,
// veto an iteration, rewrite the prompt, the model response, the parsed
// action, the tool result and the new memory entries, and it can ask the
// loop to stop. Embed Base to implement only the hooks you need.
//
// The Pipeline runs capabilities in registration order for every hook. A
// panicking hook is recovered and logged; its output is ignored for that
// phase and the chain continues with the previous value.
package capability
