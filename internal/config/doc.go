// Package config loads and merges amber configuration from defaults, the
// workspace config file (.amber/config.yaml), AMBER_* environment
// variables, and CLI flag overrides, in that precedence order.
package config
