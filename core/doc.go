// Package core provides the foundational domain types shared by every other
// package of agentloop. It defines:
//
//   - ActionContext (the property bag handed to tools and capabilities)
//   - Memory and Entry (the append-only conversational log of one run)
//   - Action (a parsed tool invocation for a single iteration)
//   - RunState (identity and progress of a run, passed to every hook)
//   - AgentRegistry / RunFunc (named entrypoints used for delegation)
//   - Budget (iteration and wall-clock bounds checked between iterations)
//
// The package keeps implementation concerns (tool execution, capability
// pipelines, the loop itself) out of scope, exposing small types and
// interfaces so the higher layers can depend on it without cycles.
package core
