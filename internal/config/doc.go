// Package config loads the attestd runtime configuration from a JSON file and
// the per-kind trust boundary (expected recipients, organisations and proving
// programs) from a YAML kind registry.
package config
