package plugin

import (
	"context"

	"github.com/ghostlabs/seance/core"
)

// EchoID is the identity EchoPlugin registers under.
const EchoID = "echo_haunt"

// Event types the echo plugin consumes and produces.
const (
	EventTypeUserMessage  = "user_message"
	EventTypeSpectralEcho = "spectral_echo"
)

// EchoPlugin answers every user message with a single spectral echo carrying
// the original payload. It is the canonical minimal plugin and doubles as
// the reference implementation for plugin authors.
type EchoPlugin struct {
	BasePlugin
}

var _ core.Plugin = (*EchoPlugin)(nil)

// NewEchoPlugin constructs an EchoPlugin.
func NewEchoPlugin() *EchoPlugin {
	return &EchoPlugin{
		BasePlugin: NewBasePlugin(EchoID, core.PluginManifest{
			Version:     "1.0.0",
			Descriptors: []string{EventTypeUserMessage},
		}),
	}
}

// Init stores the hub handle.
func (p *EchoPlugin) Init(_ context.Context, h core.Hub) error {
	return p.Attach(h)
}

// Process turns one user message into one spectral echo. Every other event
// type is ignored.
func (p *EchoPlugin) Process(ev core.Event) ([]core.Event, error) {
	if ev.Type != EventTypeUserMessage {
		return nil, nil
	}
	echo := core.NewEvent(EventTypeSpectralEcho, p.ID(), map[string]any{
		"echo": ev.Data,
	})
	return []core.Event{echo}, nil
}

// Teardown releases the hub handle.
func (p *EchoPlugin) Teardown() error {
	return p.Detach()
}
