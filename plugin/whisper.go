package plugin

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ghostlabs/seance/core"
)

// WhisperID is the identity WhisperPlugin registers under.
const WhisperID = "whisper"

// EventTypeWhisper is the event type of a spontaneous whisper.
const EventTypeWhisper = "whisper"

// WhisperPlugin periodically produces whisper events on its own, without any
// triggering input. It also exposes the distress hook so health monitoring
// has something to poll. Useful as a fixture and as a demo of the
// spontaneous-emission contract.
type WhisperPlugin struct {
	BasePlugin
	interval time.Duration
	phrases  []string
	distress atomic.Bool
}

var (
	_ core.Plugin             = (*WhisperPlugin)(nil)
	_ core.SpontaneousEmitter = (*WhisperPlugin)(nil)
	_ core.DistressReporter   = (*WhisperPlugin)(nil)
)

// NewWhisperPlugin constructs a WhisperPlugin whispering on the given
// interval. An interval of zero defaults to one second.
func NewWhisperPlugin(interval time.Duration, phrases ...string) *WhisperPlugin {
	if interval <= 0 {
		interval = time.Second
	}
	if len(phrases) == 0 {
		phrases = []string{"did you hear that?"}
	}
	return &WhisperPlugin{
		BasePlugin: NewBasePlugin(WhisperID, core.PluginManifest{
			Version:     "1.0.0",
			Descriptors: []string{},
			HauntWeight: 1,
		}),
		interval: interval,
		phrases:  phrases,
	}
}

// Init stores the hub handle.
func (p *WhisperPlugin) Init(_ context.Context, h core.Hub) error {
	return p.Attach(h)
}

// Process ignores every routed event; this plugin only speaks unprompted.
func (p *WhisperPlugin) Process(core.Event) ([]core.Event, error) {
	return nil, nil
}

// SpontaneousEmission produces a whisper per interval until ctx is
// cancelled, cycling through the configured phrases.
func (p *WhisperPlugin) SpontaneousEmission(ctx context.Context) <-chan core.Event {
	out := make(chan core.Event)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			ev := core.NewEvent(EventTypeWhisper, p.ID(), map[string]any{
				"phrase": p.phrases[i%len(p.phrases)],
			})
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Teardown releases the hub handle.
func (p *WhisperPlugin) Teardown() error {
	return p.Detach()
}

// SetDistress flips the distress flag reported to health monitoring.
func (p *WhisperPlugin) SetDistress(v bool) { p.distress.Store(v) }

// ReportsDistress reports the current distress flag.
func (p *WhisperPlugin) ReportsDistress() bool { return p.distress.Load() }
