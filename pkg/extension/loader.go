package extension

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/subculture-collective/spywatcher/internal/metrics"
)

// Loader orchestrates the full extension pipeline: discovery, manifest
// validation, dependency checks, entry resolution, capability scoping,
// lifecycle supervision, hook registration, and route mounting. All
// instance state lives behind the loader; callers get read snapshots.
type Loader struct {
	cfg       Config
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	registry  *HookRegistry
	mounter   *Mounter
	factory   *contextFactory
	manifests *manifestLoader

	mu        sync.RWMutex
	instances map[string]*Instance
	hooks     map[string]*Hooks
	loadOrder []string
}

// NewLoader wires a loader against the host singletons. Metrics may be
// nil; every metrics touch point is guarded.
func NewLoader(cfg Config, hosts Hosts, log zerolog.Logger, m *metrics.Metrics) *Loader {
	return &Loader{
		cfg:       cfg,
		logger:    log.With().Str("component", "extension-loader").Logger(),
		metrics:   m,
		registry:  NewHookRegistry(log, m),
		mounter:   NewMounter(),
		factory:   &contextFactory{hosts: hosts, dataRoot: cfg.DataDir, logger: log},
		manifests: newManifestLoader(log),
		instances: make(map[string]*Instance),
		hooks:     make(map[string]*Hooks),
	}
}

// Registry exposes the hook registry for host-side dispatch.
func (l *Loader) Registry() *HookRegistry { return l.registry }

// Mounter exposes the dynamic route mount point for the HTTP server.
func (l *Loader) Mounter() *Mounter { return l.mounter }

// callCtx derives the context used for one extension callback, applying
// the configured call timeout when set.
func (l *Loader) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, l.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// Load runs the pipeline for one extension directory under the configured
// extensions root. A failure before instantiation leaves no state behind;
// a failing init callback leaves the instance registered in the error
// state with no hooks or routes exposed.
func (l *Loader) Load(ctx context.Context, dirID string) error {
	dir := filepath.Join(l.cfg.ExtensionsDir, dirID)

	manifest, err := l.manifests.Load(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return err
	}

	l.mu.Lock()
	if _, exists := l.instances[manifest.ID]; exists {
		l.mu.Unlock()
		return &DuplicateError{ID: manifest.ID}
	}
	err = checkDependencies(manifest, func(id string) (*Manifest, bool) {
		inst, ok := l.instances[id]
		if !ok {
			return nil, false
		}
		return inst.manifest, true
	})
	l.mu.Unlock()
	if err != nil {
		return err
	}

	config, err := loadExtensionConfig(dir)
	if err != nil {
		return &ManifestError{Path: dir, Reason: "reading config.json", Err: err}
	}
	if err := validateConfig(manifest, config); err != nil {
		return &ManifestError{Path: dir, Reason: "config validation", Err: err}
	}

	impl, kill, err := l.resolveEntry(manifest, dir)
	if err != nil {
		return &ModuleLoadError{ID: manifest.ID, Err: err}
	}

	perms := NewPermissionSet(manifest.ID, manifest.Permissions)
	ectx, err := l.factory.build(manifest, perms, config)
	if err != nil {
		if kill != nil {
			kill()
		}
		return &ModuleLoadError{ID: manifest.ID, Err: err}
	}

	inst := newInstance(manifest, impl, ectx, kill)

	l.mu.Lock()
	if _, exists := l.instances[manifest.ID]; exists {
		l.mu.Unlock()
		ectx.close()
		if kill != nil {
			kill()
		}
		return &DuplicateError{ID: manifest.ID}
	}
	l.instances[manifest.ID] = inst
	l.loadOrder = append(l.loadOrder, manifest.ID)
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.ExtensionsLoaded.Inc()
	}

	if err := l.initialize(ctx, inst); err != nil {
		l.recordState(inst)
		return err
	}
	l.recordState(inst)

	l.logger.Info().
		Str("plugin", manifest.ID).
		Str("version", manifest.Version).
		Msg("Extension loaded")

	if l.cfg.AutoStart {
		if err := l.Start(ctx, manifest.ID); err != nil {
			return err
		}
	}
	return nil
}

// resolveEntry picks the extension implementation: a builtin factory
// registered under the manifest id wins; otherwise the manifest's main
// executable is launched as a subprocess.
func (l *Loader) resolveEntry(manifest *Manifest, dir string) (Extension, func(), error) {
	if factory, ok := lookupBuiltin(manifest.ID); ok {
		return factory(), nil, nil
	}
	if manifest.Main != "" {
		return launchRemote(filepath.Join(dir, manifest.Main))
	}
	return nil, nil, fmt.Errorf("no builtin registered and manifest declares no main executable")
}

// initialize runs the init callback and, on success, the hook and route
// registration steps. Any failure forces the error state.
func (l *Loader) initialize(ctx context.Context, inst *Instance) error {
	inst.opMu.Lock()
	defer inst.opMu.Unlock()

	if err := inst.transitionTo(StateInitializing, "init"); err != nil {
		return err
	}
	l.recordTransition(inst.id, "initializing")

	cctx, cancel := l.callCtx(ctx)
	err := inst.impl.Init(cctx, inst.context)
	cancel()
	if err != nil {
		lerr := &LifecycleError{ID: inst.id, Phase: "init", Err: err}
		l.failInstance(inst, lerr, "init")
		return lerr
	}

	if registrar, ok := inst.impl.(HookRegistrar); ok {
		h := newHooks(l.registry, inst.context.perms, inst.id)
		if err := registrar.RegisterHooks(h); err != nil {
			h.close()
			lerr := &LifecycleError{ID: inst.id, Phase: "init", Err: err}
			l.failInstance(inst, lerr, "init")
			return lerr
		}
		l.mu.Lock()
		l.hooks[inst.id] = h
		l.mu.Unlock()
	}

	if registrar, ok := inst.impl.(RouteRegistrar); ok {
		if inst.context.Routes != nil {
			registrar.RegisterRoutes(inst.context.Routes)
			var handler http.Handler = inst.context.Routes
			if inst.context.Middleware != nil {
				handler = inst.context.Middleware.wrap(handler)
			}
			l.mounter.Mount(inst.id, handler)
		} else {
			l.logger.Warn().
				Str("plugin", inst.id).
				Msg("Extension registers routes without api-routes permission, skipping")
		}
	}

	if err := inst.transitionTo(StateInitialized, "init"); err != nil {
		l.failInstance(inst, err, "init")
		return err
	}
	l.recordTransition(inst.id, "initialized")
	return nil
}

// Start moves an initialized or stopped extension to running.
func (l *Loader) Start(ctx context.Context, id string) error {
	inst, err := l.instance(id)
	if err != nil {
		return err
	}

	inst.opMu.Lock()
	defer inst.opMu.Unlock()

	if err := inst.transitionTo(StateStarting, "start"); err != nil {
		return err
	}
	l.recordTransition(id, "starting")

	if starter, ok := inst.impl.(Starter); ok {
		cctx, cancel := l.callCtx(ctx)
		err := starter.Start(cctx)
		cancel()
		if err != nil {
			lerr := &LifecycleError{ID: id, Phase: "start", Err: err}
			l.failInstance(inst, lerr, "start")
			l.recordState(inst)
			return lerr
		}
	}

	if err := inst.transitionTo(StateRunning, "start"); err != nil {
		l.failInstance(inst, err, "start")
		l.recordState(inst)
		return err
	}
	l.recordTransition(id, "running")
	l.recordState(inst)
	l.logger.Info().Str("plugin", id).Msg("Extension started")
	return nil
}

// Stop moves a running extension to stopped. Handlers stay registered;
// stopping pauses work, it does not unload.
func (l *Loader) Stop(ctx context.Context, id string) error {
	inst, err := l.instance(id)
	if err != nil {
		return err
	}

	inst.opMu.Lock()
	defer inst.opMu.Unlock()

	if err := inst.transitionTo(StateStopping, "stop"); err != nil {
		return err
	}
	l.recordTransition(id, "stopping")

	if stopper, ok := inst.impl.(Stopper); ok {
		cctx, cancel := l.callCtx(ctx)
		err := stopper.Stop(cctx)
		cancel()
		if err != nil {
			lerr := &LifecycleError{ID: id, Phase: "stop", Err: err}
			l.failInstance(inst, lerr, "stop")
			l.recordState(inst)
			return lerr
		}
	}

	if err := inst.transitionTo(StateStopped, "stop"); err != nil {
		l.failInstance(inst, err, "stop")
		l.recordState(inst)
		return err
	}
	l.recordTransition(id, "stopped")
	l.recordState(inst)
	l.logger.Info().Str("plugin", id).Msg("Extension stopped")
	return nil
}

// Unload removes an extension entirely: stops it if running, runs the
// destroy callback, removes its hook handlers and routes, releases its
// context, and kills any subprocess. Unload succeeds even when callbacks
// fail; cleanup is unconditional.
func (l *Loader) Unload(ctx context.Context, id string) error {
	inst, err := l.instance(id)
	if err != nil {
		return err
	}

	if inst.State() == StateRunning {
		if err := l.Stop(ctx, id); err != nil {
			l.logger.Warn().Err(err).Str("plugin", id).Msg("Stop during unload failed")
		}
	}

	inst.opMu.Lock()
	if destroyer, ok := inst.impl.(Destroyer); ok {
		cctx, cancel := l.callCtx(ctx)
		if err := destroyer.Destroy(cctx); err != nil {
			l.logger.Warn().Err(err).Str("plugin", id).Msg("Destroy callback failed")
		}
		cancel()
	}
	inst.opMu.Unlock()

	l.mu.Lock()
	if h, ok := l.hooks[id]; ok {
		h.close()
		delete(l.hooks, id)
	}
	delete(l.instances, id)
	for i, loadedID := range l.loadOrder {
		if loadedID == id {
			l.loadOrder = append(l.loadOrder[:i], l.loadOrder[i+1:]...)
			break
		}
	}
	l.mu.Unlock()

	l.registry.UnregisterExtension(id)
	l.mounter.Unmount(id)
	inst.context.close()
	if inst.kill != nil {
		inst.kill()
	}

	if l.metrics != nil {
		l.metrics.ExtensionsLoaded.Dec()
		l.metrics.ClearExtension(id)
	}
	l.logger.Info().Str("plugin", id).Msg("Extension unloaded")
	return nil
}

// LoadAll discovers and loads every extension under the extensions root.
// One extension's failure never aborts the sweep; failures are collected
// per id in the result.
func (l *Loader) LoadAll(ctx context.Context) *LoadResult {
	result := &LoadResult{Errors: make(map[string]error)}

	discovered, err := discover(l.cfg.ExtensionsDir, l.logger)
	if err != nil {
		l.logger.Error().Err(err).Msg("Extension discovery failed")
		return result
	}

	if l.cfg.PreSortDependencies {
		discovered = l.presort(discovered, result)
	}

	for _, d := range discovered {
		if err := l.Load(ctx, d.DirID); err != nil {
			l.logger.Error().Err(err).Str("plugin", d.DirID).Msg("Failed to load extension")
			result.Failed = append(result.Failed, d.DirID)
			result.Errors[d.DirID] = err
			continue
		}
		result.Loaded = append(result.Loaded, d.DirID)
	}

	l.logger.Info().
		Int("loaded", len(result.Loaded)).
		Int("failed", len(result.Failed)).
		Msg("Extension sweep complete")
	return result
}

// presort orders discovered extensions so dependencies load first.
// Extensions whose manifests fail to parse, and cycle participants, are
// recorded as failures and dropped from the order.
func (l *Loader) presort(discovered []DiscoveredExtension, result *LoadResult) []DiscoveredExtension {
	manifests := make(map[string]*Manifest, len(discovered))
	var parseable []DiscoveredExtension
	for _, d := range discovered {
		manifest, err := l.manifests.Load(d.ManifestPath)
		if err != nil {
			result.Failed = append(result.Failed, d.DirID)
			result.Errors[d.DirID] = err
			continue
		}
		manifests[d.DirID] = manifest
		parseable = append(parseable, d)
	}

	sorted, failures := sortByDependencies(parseable, manifests)
	for id, err := range failures {
		result.Failed = append(result.Failed, id)
		result.Errors[id] = err
	}
	return sorted
}

// StopAll stops every running extension in reverse load order.
func (l *Loader) StopAll(ctx context.Context) {
	for _, id := range l.reverseLoadOrder() {
		inst, err := l.instance(id)
		if err != nil || inst.State() != StateRunning {
			continue
		}
		if err := l.Stop(ctx, id); err != nil {
			l.logger.Warn().Err(err).Str("plugin", id).Msg("Stop during shutdown failed")
		}
	}
}

// Shutdown stops and unloads everything, newest load first.
func (l *Loader) Shutdown(ctx context.Context) {
	l.StopAll(ctx)
	for _, id := range l.reverseLoadOrder() {
		if err := l.Unload(ctx, id); err != nil {
			l.logger.Warn().Err(err).Str("plugin", id).Msg("Unload during shutdown failed")
		}
	}
}

func (l *Loader) reverseLoadOrder() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, len(l.loadOrder))
	for i, id := range l.loadOrder {
		ids[len(ids)-1-i] = id
	}
	return ids
}

// Health probes one extension. An implementation-provided probe is
// authoritative; otherwise health is synthesized from lifecycle state.
func (l *Loader) Health(ctx context.Context, id string) (Health, error) {
	inst, err := l.instance(id)
	if err != nil {
		return Health{}, err
	}

	if checker, ok := inst.impl.(HealthChecker); ok {
		cctx, cancel := l.callCtx(ctx)
		defer cancel()
		health := checker.HealthCheck(cctx)
		if health.State == "" {
			health.State = inst.State().String()
		}
		return health, nil
	}

	state := inst.State()
	health := Health{
		Healthy: state == StateRunning,
		State:   state.String(),
	}
	if lastErr := inst.Err(); lastErr != nil {
		health.Error = lastErr.Error()
	}
	return health, nil
}

// HealthAll probes every loaded extension.
func (l *Loader) HealthAll(ctx context.Context) map[string]Health {
	l.mu.RLock()
	ids := make([]string, 0, len(l.instances))
	for id := range l.instances {
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	all := make(map[string]Health, len(ids))
	for _, id := range ids {
		health, err := l.Health(ctx, id)
		if err != nil {
			continue
		}
		all[id] = health
	}
	return all
}

// Instances returns read snapshots of all loaded extensions, sorted by id.
func (l *Loader) Instances() []InstanceInfo {
	l.mu.RLock()
	infos := make([]InstanceInfo, 0, len(l.instances))
	for _, inst := range l.instances {
		infos = append(infos, inst.info())
	}
	l.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Instance returns the snapshot for one extension id.
func (l *Loader) Instance(id string) (InstanceInfo, bool) {
	inst, err := l.instance(id)
	if err != nil {
		return InstanceInfo{}, false
	}
	return inst.info(), true
}

// ExecuteHook dispatches a hook through the registry fold and returns the
// final payload. Discord hooks additionally fan the final payload out to
// each granted extension's event emitter, outside the fold.
func (l *Loader) ExecuteHook(ctx context.Context, hook HookType, data any) any {
	result := l.registry.Execute(ctx, hook, data)

	if IsDiscordHook(hook) {
		if l.metrics != nil {
			l.metrics.GatewayEventsTotal.WithLabelValues(string(hook)).Inc()
		}
		l.mu.RLock()
		emitters := make([]*Emitter, 0, len(l.instances))
		for _, inst := range l.instances {
			if inst.State() == StateRunning && inst.context.Events != nil {
				emitters = append(emitters, inst.context.Events)
			}
		}
		l.mu.RUnlock()
		for _, e := range emitters {
			e.emit(hook, result)
		}
	}
	return result
}

func (l *Loader) instance(id string) (*Instance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	inst, ok := l.instances[id]
	if !ok {
		return nil, fmt.Errorf("extension %q is not loaded", id)
	}
	return inst, nil
}

func (l *Loader) failInstance(inst *Instance, err error, phase string) {
	inst.fail(err)
	l.logger.Error().Err(err).Str("plugin", inst.id).Msg("Extension entered error state")
	if l.metrics != nil {
		l.metrics.LifecycleErrorsTotal.WithLabelValues(inst.id, phase).Inc()
	}
}

func (l *Loader) recordTransition(id, state string) {
	if l.metrics != nil {
		l.metrics.LifecycleTransitionsTotal.WithLabelValues(id, state).Inc()
	}
}

func (l *Loader) recordState(inst *Instance) {
	if l.metrics != nil {
		l.metrics.SetExtensionState(inst.id, inst.State().String())
	}
}

// loadExtensionConfig reads the optional config.json next to the
// manifest. A missing file yields an empty config.
func loadExtensionConfig(dir string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return config, nil
}
