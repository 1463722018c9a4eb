package loader

// LifecycleState tracks where a plugin is in its life. States move
// dormant -> awakening -> active, optionally on to haunting, and terminally
// to banished. Banished requires a fresh load to recover.
type LifecycleState int

const (
	// StateDormant: instantiated, not yet initialized.
	StateDormant LifecycleState = iota
	// StateAwakening: initialization in progress.
	StateAwakening
	// StateActive: initialized and receiving routed events.
	StateActive
	// StateHaunting: active and additionally emitting spontaneous events.
	StateHaunting
	// StateBanished: terminal until reload.
	StateBanished
)

// String returns the state label used in logs and diagnostics.
func (s LifecycleState) String() string {
	switch s {
	case StateDormant:
		return "dormant"
	case StateAwakening:
		return "awakening"
	case StateActive:
		return "active"
	case StateHaunting:
		return "haunting"
	case StateBanished:
		return "banished"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state requires a fresh load to leave.
func (s LifecycleState) Terminal() bool { return s == StateBanished }

// Routable reports whether routing may invoke the plugin's process hook.
func (s LifecycleState) Routable() bool { return s == StateActive || s == StateHaunting }
