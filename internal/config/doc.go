// Package config loads and validates the hlspress TOML configuration.
//
// Configuration flows through Default -> Load -> normalize -> Validate. Path
// fields are tilde-expanded and made absolute during normalization so the
// rest of the codebase can treat them as canonical.
package config
