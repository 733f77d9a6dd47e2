// Package config resolves model parameters from layered sources: built-in
// defaults, then a YAML file, then dotted "group.key=value" overrides.
//
// Parameters travel as nested mappings until the last layer is applied and
// are then decoded into the typed Params, rejecting unknown keys. Nested
// mappings convert to and from dotted paths with Flatten/Unflatten (exact)
// and Dots/ParseDots (one line per value, sequences spread over repeated paths).
package config
