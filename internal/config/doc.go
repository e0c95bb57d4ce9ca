// Package config loads and validates keygate configuration from YAML files,
// expanding ${VAR} environment references and parsing duration strings.
package config
