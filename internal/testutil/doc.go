// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing run states, contexts and memories. They are
// not intended for production usage.
package testutil
