// Package core defines the shared contracts of the engine: the immutable
// Event record, the fault taxonomy, the Plugin contract with its optional
// capability hooks, the Hub handle plugins are initialized with, and the
// HauntPolicy strategy that concentrates probabilistic behavior.
//
// The package has no dependencies on the hub or loader implementations so
// plugins can be authored against core alone.
package core
