// Package memory contains concrete core.Memory implementations. The Memory
// interface and Entry type reside in the core package; depend on core.Memory
// in your code and pick an implementation (like the in-memory Log below) at
// wiring time.
package memory
