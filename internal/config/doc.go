// Package config loads operator overrides for the supervisor's default
// paths, safety-gate sets, and aggressive-cleanup behavior from an
// optional YAML file, layered over compiled-in defaults matching the
// original supervisor's hardcoded constants.
package config
