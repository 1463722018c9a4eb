// Package plugin provides the embeddable BasePlugin plus the built-in echo
// and whisper plugins used by the examples and tests.
package plugin
