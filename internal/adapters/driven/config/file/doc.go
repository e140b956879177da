// Package file provides the TOML-backed ConfigStore adapter.
// Values live in config.toml under the quarry config directory and are
// addressed with dot-notation keys (e.g. "chunking.size").
package file
