// Package cli wires the amber commands: context building, send tracking,
// staleness cleanup, index maintenance, watch mode, and configuration.
package cli
