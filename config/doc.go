// Package config loads application configuration for agentloop binaries.
//
// Values are resolved in this order, later sources winning: built-in
// defaults, a YAML file, a .env file next to the YAML file (or in the working
// directory) and finally AGENTLOOP_* environment variables. Credentials are
// read here only and handed to model constructors explicitly.
package config
