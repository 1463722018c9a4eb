package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ghostlabs/seance/core"
	"github.com/ghostlabs/seance/logging"
	"github.com/ghostlabs/seance/metrics"
)

// Source identifier stamped on loader-emitted diagnostics.
const diagnosticSource = "loader"

// Provenance keys attached by routing and haunt re-emission.
const (
	ProvenanceProcessedBy    = "processed_by"
	ProvenanceOriginalSource = "original_source"
	ProvenanceHauntedBy      = "haunted_by"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// MaxRetries bounds load retries per plugin.
	MaxRetries int
	// RetryBaseDelay is the backoff base for load retries.
	RetryBaseDelay time.Duration
	// MaxCascadeDepth bounds multi-hop routing cascades; an event at or
	// beyond this depth is not routed further.
	MaxCascadeDepth int
	// HealthInterval is the distress-poll period.
	HealthInterval time.Duration
	// InitTimeout caps how long one plugin's init may take.
	InitTimeout time.Duration
	// Policy decides the spontaneous-emission draw.
	Policy core.HauntPolicy
	// Logger receives structured loader diagnostics. Defaults to NoOp.
	Logger logging.Logger
	// Collector records Prometheus metrics. Nil disables instrumentation.
	Collector *metrics.Collector
}

// record is the loader-side bookkeeping for one plugin.
type record struct {
	desc        Descriptor
	plugin      core.Plugin
	state       LifecycleState
	retries     int
	lastErr     error
	hauntCancel context.CancelFunc
}

// PluginStatus is the introspection view of one plugin record.
type PluginStatus struct {
	ID      string
	State   LifecycleState
	Retries int
	Err     error
}

// LoadReport summarizes one batch load.
type LoadReport struct {
	Loaded []string
	Failed []string
}

// Loader reads a manifest, resolves and instantiates each plugin through the
// registry, drives it through its lifecycle, retries failed loads with
// exponential backoff, and installs the fan-out routing connecting every
// loaded plugin to the hub. The loader exclusively owns plugin lifecycle
// state and retry bookkeeping.
type Loader struct {
	hub      core.Hub
	registry *Registry

	maxRetries      int
	retryBaseDelay  time.Duration
	maxCascadeDepth int
	healthInterval  time.Duration
	initTimeout     time.Duration
	policy          core.HauntPolicy
	logger          logging.Logger
	collector       *metrics.Collector

	mu      sync.RWMutex
	records map[string]*record
	order   []string
	routing core.Subscription
}

// New constructs a Loader bound to a hub and a factory registry.
func New(h core.Hub, registry *Registry, optFns ...func(o *Options)) *Loader {
	opts := Options{
		MaxRetries:      3,
		RetryBaseDelay:  100 * time.Millisecond,
		MaxCascadeDepth: 8,
		HealthInterval:  5 * time.Second,
		InitTimeout:     30 * time.Second,
		Policy:          core.NewHauntPolicy(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Loader{
		hub:             h,
		registry:        registry,
		maxRetries:      opts.MaxRetries,
		retryBaseDelay:  opts.RetryBaseDelay,
		maxCascadeDepth: opts.MaxCascadeDepth,
		healthInterval:  opts.HealthInterval,
		initTimeout:     opts.InitTimeout,
		policy:          opts.Policy,
		logger:          opts.Logger,
		collector:       opts.Collector,
		records:         make(map[string]*record),
	}
}

// LoadPlugin resolves the descriptor's factory, instantiates the plugin and
// validates that it exposes the contract under the descriptor's id. Any
// failure yields a manifestation fault and records the plugin as banished.
func (l *Loader) LoadPlugin(desc Descriptor) (core.Plugin, error) {
	plugin, err := l.instantiate(desc)
	if err != nil {
		l.recordFailure(desc, err)
		return nil, err
	}

	l.mu.Lock()
	rec, ok := l.records[desc.ID]
	if !ok {
		rec = &record{desc: desc}
		l.records[desc.ID] = rec
		l.order = append(l.order, desc.ID)
	}
	rec.desc = desc
	rec.plugin = plugin
	rec.state = StateDormant
	rec.lastErr = nil
	l.mu.Unlock()

	l.logger.Debug("plugin instantiated plugin_id=%s factory=%s", desc.ID, desc.Factory)
	return plugin, nil
}

func (l *Loader) instantiate(desc Descriptor) (plugin core.Plugin, err error) {
	factory, ok := l.registry.Resolve(desc.Factory)
	if !ok {
		return nil, core.NewManifestationFault(fmt.Sprintf("no factory registered for %q", desc.Factory), nil)
	}

	defer func() {
		if r := recover(); r != nil {
			plugin = nil
			err = core.NewManifestationFault(fmt.Sprintf("factory %q panicked", desc.Factory), fmt.Errorf("%v", r))
		}
	}()

	plugin, err = factory(desc)
	if err != nil {
		return nil, core.NewManifestationFault(fmt.Sprintf("factory %q failed", desc.Factory), err)
	}
	if plugin == nil {
		return nil, core.NewManifestationFault(fmt.Sprintf("factory %q returned no plugin", desc.Factory), nil)
	}
	if plugin.ID() != desc.ID {
		return nil, core.NewManifestationFault(
			fmt.Sprintf("plugin reports id %q, descriptor declares %q", plugin.ID(), desc.ID), nil)
	}
	return plugin, nil
}

// retryLoad wraps LoadPlugin with exponential backoff and a hard retry
// ceiling. Exhausting retries surfaces a terminal manifestation fault.
func (l *Loader) retryLoad(ctx context.Context, desc Descriptor) (core.Plugin, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.retryBaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 1
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		plugin, err := l.LoadPlugin(desc)
		if err == nil {
			return plugin, nil
		}
		lastErr = err
		l.bumpRetries(desc.ID)

		if attempt == l.maxRetries {
			break
		}
		delay := bo.NextBackOff()
		l.logger.Warn("plugin load retry plugin_id=%s attempt=%d delay=%s error=%v", desc.ID, attempt+1, delay, err)
		select {
		case <-ctx.Done():
			return nil, core.NewManifestationFault(fmt.Sprintf("loading %q cancelled", desc.ID), ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, core.NewManifestationFault(
		fmt.Sprintf("loading %q exhausted %d retries", desc.ID, l.maxRetries), lastErr)
}

// InitializePlugin drives one instantiated plugin dormant -> awakening ->
// active, handing it the live hub handle. When the plugin exposes the
// spontaneous-emission hook and the policy draw succeeds, it moves on to
// haunting and its emissions are re-published through the hub with
// provenance attached.
func (l *Loader) InitializePlugin(ctx context.Context, plugin core.Plugin) error {
	l.mu.Lock()
	rec, ok := l.records[plugin.ID()]
	if !ok {
		l.mu.Unlock()
		return core.NewManifestationFault(fmt.Sprintf("plugin %q was never loaded", plugin.ID()), nil)
	}
	// Snapshot under the lock; a concurrent reload rewrites rec.desc.
	id := rec.desc.ID
	descWeight := rec.desc.HauntWeight
	l.mu.Unlock()

	l.setState(id, StateAwakening)

	initCtx, cancel := context.WithTimeout(ctx, l.initTimeout)
	defer cancel()

	if err := l.runInit(initCtx, plugin); err != nil {
		fault := core.NewManifestationFault(fmt.Sprintf("initializing %q", plugin.ID()), err)
		l.mu.Lock()
		rec.state = StateBanished
		rec.lastErr = fault
		l.mu.Unlock()
		l.logger.Error("plugin initialization failed plugin_id=%s error=%v", plugin.ID(), err)
		return fault
	}

	l.setState(id, StateActive)

	// The descriptor's configured probability wins when present, including
	// an explicit zero; otherwise the plugin's own default applies.
	weight := plugin.Manifest().HauntWeight
	if descWeight != nil {
		weight = *descWeight
	}
	if emitter, ok := plugin.(core.SpontaneousEmitter); ok && l.policy.DrawHaunt(weight) {
		l.startHaunt(id, rec, emitter)
	}
	return nil
}

func (l *Loader) runInit(ctx context.Context, plugin core.Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("init panic: %v", r)
		}
	}()
	return plugin.Init(ctx, l.hub)
}

// startHaunt transitions the record to haunting and re-emits everything the
// plugin's spontaneous stream produces. A fault in the subscription is logged
// and the state reverts to active; it is not fatal.
func (l *Loader) startHaunt(id string, rec *record, emitter core.SpontaneousEmitter) {
	hauntCtx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	rec.hauntCancel = cancel
	l.mu.Unlock()
	l.setState(id, StateHaunting)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Warn("spontaneous emission fault plugin_id=%s panic=%v", id, r)
				l.setState(id, StateActive)
			}
		}()

		stream := emitter.SpontaneousEmission(hauntCtx)
		if stream == nil {
			l.setState(id, StateActive)
			return
		}
		for ev := range stream {
			l.hub.Emit(ev.WithProvenance(map[string]string{ProvenanceHauntedBy: id}))
		}
		// Stream ended on its own: the plugin is still healthy, just quiet.
		if hauntCtx.Err() == nil {
			l.setState(id, StateActive)
		}
	}()
}

// LoadAll loads the manifest at path and then drives every descriptor
// through retryLoad and initialization. A single plugin's terminal failure is
// recorded and the batch continues. Lifecycle diagnostics are emitted to the
// hub throughout.
func (l *Loader) LoadAll(ctx context.Context, manifestPath string) (*LoadReport, error) {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return l.LoadAllManifest(ctx, manifest)
}

// LoadAllManifest is LoadAll for an already decoded manifest.
func (l *Loader) LoadAllManifest(ctx context.Context, manifest *Manifest) (*LoadReport, error) {
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	l.hub.Emit(core.NewEvent(core.EventTypeManifestLoaded, diagnosticSource, map[string]any{
		"plugins":  len(manifest.Plugins),
		"severity": string(manifest.Severity),
	}))

	report := &LoadReport{}
	for _, desc := range manifest.Plugins {
		if err := l.loadOne(ctx, desc); err != nil {
			report.Failed = append(report.Failed, desc.ID)
			l.collector.PluginFailed()
			if fault, ok := core.AsFault(err); ok {
				l.hub.Emit(core.NewDiagnosticEvent(core.EventTypePluginFailed, diagnosticSource, fault))
			}
			l.logger.Error("plugin load failed plugin_id=%s error=%v", desc.ID, err)
			continue
		}
		report.Loaded = append(report.Loaded, desc.ID)
		l.collector.PluginLoaded()
		l.hub.Emit(core.NewEvent(core.EventTypePluginLoaded, diagnosticSource, map[string]any{
			"plugin_id": desc.ID,
		}))
		l.logger.Info("plugin loaded plugin_id=%s", desc.ID)
	}

	l.hub.Emit(core.NewEvent(core.EventTypeLoadComplete, diagnosticSource, map[string]any{
		"loaded": len(report.Loaded),
		"failed": len(report.Failed),
	}))

	// Routing goes live only after the load announcement so plugins see
	// post-load traffic exclusively.
	l.ensureRouting()
	return report, nil
}

func (l *Loader) loadOne(ctx context.Context, desc Descriptor) error {
	plugin, err := l.retryLoad(ctx, desc)
	if err != nil {
		return err
	}
	return l.InitializePlugin(ctx, plugin)
}

// ensureRouting installs the fan-out subscription exactly once.
func (l *Loader) ensureRouting() {
	l.mu.Lock()
	installed := l.routing != nil
	l.mu.Unlock()
	if installed {
		return
	}

	sub := l.hub.Subscribe(l.route)
	l.mu.Lock()
	if l.routing == nil {
		l.routing = sub
		sub = nil
	}
	l.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// route is the fan-out algorithm: every event the hub emits is offered to
// every routable plugin except the one whose id equals the event's source,
// and each output is re-emitted with routing provenance. A plugin's
// processing failure is contained and the remaining plugins still see the
// event. The hop counter bounds multi-hop cascades.
func (l *Loader) route(ev core.Event) error {
	hop := ev.Hop()
	if hop >= l.maxCascadeDepth {
		l.hub.Emit(core.NewDiagnosticEvent(core.EventTypeDisturbanceDetected, diagnosticSource,
			core.NewDisturbanceFault(
				fmt.Sprintf("cascade depth %d reached routing %s from %s", hop, ev.Type, ev.Source), nil)))
		return nil
	}

	// Snapshot so a plugin unloading itself mid-pass cannot corrupt the
	// iteration.
	type target struct {
		id     string
		plugin core.Plugin
	}
	l.mu.RLock()
	targets := make([]target, 0, len(l.order))
	for _, id := range l.order {
		rec := l.records[id]
		if rec != nil && rec.state.Routable() {
			targets = append(targets, target{id: id, plugin: rec.plugin})
		}
	}
	l.mu.RUnlock()

	start := time.Now()
	produced := 0
	for _, tgt := range targets {
		if tgt.id == ev.Source {
			continue
		}
		l.collector.EventRouted()

		outputs, err := safeProcess(tgt.plugin, ev)
		if err != nil {
			// A failure while handling a processing-error diagnostic is
			// only logged; emitting another diagnostic for it would loop.
			if ev.Type == core.EventTypePluginProcessingError {
				l.logger.Warn("plugin failed on diagnostic plugin_id=%s error=%v", tgt.id, err)
				continue
			}
			l.hub.Emit(core.NewDiagnosticEvent(core.EventTypePluginProcessingError, diagnosticSource,
				core.NewDisturbanceFault(fmt.Sprintf("plugin %q failed processing %s", tgt.id, ev.Type), err)))
			continue
		}
		for _, out := range outputs {
			produced++
			l.hub.Emit(out.WithProvenance(map[string]string{
				ProvenanceProcessedBy:    tgt.id,
				ProvenanceOriginalSource: ev.Source,
			}).WithHop(hop + 1))
		}
	}
	l.logger.Debug("routing pass completed event_type=%s targets=%d produced=%d duration=%s", ev.Type, len(targets), produced, time.Since(start))
	return nil
}

func safeProcess(plugin core.Plugin, ev core.Event) (outputs []core.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs = nil
			err = fmt.Errorf("process panic: %v", r)
		}
	}()
	return plugin.Process(ev)
}

// StartHealthMonitoring polls every loaded plugin's distress hook and
// lifecycle state on a fixed interval until ctx is cancelled, emitting
// diagnostics for reported distress and banished plugins.
func (l *Loader) StartHealthMonitoring(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(l.healthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.pollHealth()
			}
		}
	}()
}

func (l *Loader) pollHealth() {
	type probe struct {
		id      string
		state   LifecycleState
		plugin  core.Plugin
		lastErr error
	}

	l.mu.RLock()
	probes := make([]probe, 0, len(l.order))
	for _, id := range l.order {
		if rec := l.records[id]; rec != nil {
			probes = append(probes, probe{id: id, state: rec.state, plugin: rec.plugin, lastErr: rec.lastErr})
		}
	}
	l.mu.RUnlock()

	for _, p := range probes {
		if p.state == StateBanished {
			l.hub.Emit(core.NewDiagnosticEvent(core.EventTypePluginBanished, diagnosticSource,
				core.NewBanishmentFault(fmt.Sprintf("plugin %q is banished", p.id), p.lastErr)))
			continue
		}
		reporter, ok := p.plugin.(core.DistressReporter)
		if !ok {
			continue
		}
		if safeReportsDistress(reporter) {
			l.hub.Emit(core.NewDiagnosticEvent(core.EventTypePluginDisturbance, diagnosticSource,
				core.NewDisturbanceFault(fmt.Sprintf("plugin %q reports distress", p.id), nil)))
		}
	}
}

func safeReportsDistress(reporter core.DistressReporter) (distress bool) {
	defer func() {
		if r := recover(); r != nil {
			distress = true
		}
	}()
	return reporter.ReportsDistress()
}

// Teardown invokes the plugin's teardown hook and removes all loader-side
// bookkeeping for the id. A failing hook surfaces as a banishment fault; the
// bookkeeping is removed either way.
func (l *Loader) Teardown(id string) error {
	l.mu.Lock()
	rec, ok := l.records[id]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("seance: plugin %q is not loaded", id)
	}
	delete(l.records, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	wasRoutable := rec.state.Routable()
	cancelHaunt := rec.hauntCancel
	plugin := rec.plugin
	l.mu.Unlock()

	if cancelHaunt != nil {
		cancelHaunt()
	}
	if wasRoutable {
		l.collector.PluginRemoved()
	}

	if err := safeTeardown(plugin); err != nil {
		return core.NewBanishmentFault(fmt.Sprintf("tearing down %q", id), err)
	}
	l.logger.Info("plugin torn down plugin_id=%s", id)
	return nil
}

func safeTeardown(plugin core.Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("teardown panic: %v", r)
		}
	}()
	if plugin == nil {
		return nil
	}
	return plugin.Teardown()
}

// TeardownAll tears down every plugin in reverse load order and joins the
// failures.
func (l *Loader) TeardownAll() error {
	l.mu.RLock()
	ids := make([]string, len(l.order))
	copy(ids, l.order)
	l.mu.RUnlock()

	var errs []error
	for i := len(ids) - 1; i >= 0; i-- {
		if err := l.Teardown(ids[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status returns the introspection view of one plugin record.
func (l *Loader) Status(id string) (PluginStatus, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	if !ok {
		return PluginStatus{}, false
	}
	return PluginStatus{ID: id, State: rec.state, Retries: rec.retries, Err: rec.lastErr}, true
}

// Statuses lists every plugin record in load order.
func (l *Loader) Statuses() []PluginStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	statuses := make([]PluginStatus, 0, len(l.order))
	for _, id := range l.order {
		if rec := l.records[id]; rec != nil {
			statuses = append(statuses, PluginStatus{ID: id, State: rec.state, Retries: rec.retries, Err: rec.lastErr})
		}
	}
	return statuses
}

// Plugin returns the live instance for id.
func (l *Loader) Plugin(id string) (core.Plugin, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	if !ok || rec.plugin == nil {
		return nil, false
	}
	return rec.plugin, true
}

func (l *Loader) setState(id string, state LifecycleState) {
	l.mu.Lock()
	rec, ok := l.records[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	from := rec.state
	rec.state = state
	l.mu.Unlock()
	l.logger.Debug("plugin lifecycle transition plugin_id=%s from=%s to=%s", id, from.String(), state.String())
}

func (l *Loader) bumpRetries(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[id]; ok {
		rec.retries++
	}
}

func (l *Loader) recordFailure(desc Descriptor, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[desc.ID]
	if !ok {
		rec = &record{desc: desc}
		l.records[desc.ID] = rec
		l.order = append(l.order, desc.ID)
	}
	rec.state = StateBanished
	rec.lastErr = err
}
