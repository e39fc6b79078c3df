package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/san-kum/pxwrap/internal/sdk"
)

// Handles is a snapshot of the manager's handle slots. Unused slots are nil.
// Actors belong to Scene and are listed in creation order.
type Handles struct {
	Foundation sdk.Foundation
	Dispatcher sdk.Dispatcher
	Debugger   sdk.DebugConnection
	Physics    sdk.Physics
	Cooking    sdk.Cooking
	Scene      sdk.Scene
	Actors     []sdk.Actor
}

// Count returns the number of populated slots. Actors are not counted.
func (h Handles) Count() int {
	n := 0
	for _, x := range h.list() {
		if !sdk.IsNil(x) {
			n++
		}
	}
	return n
}

// IDs maps every populated slot to its handle identity.
func (h Handles) IDs() map[sdk.Kind]string {
	ids := make(map[sdk.Kind]string)
	for _, x := range h.list() {
		if !sdk.IsNil(x) {
			ids[x.Kind()] = x.ID()
		}
	}
	return ids
}

func (h Handles) clone() Handles {
	h.Actors = append([]sdk.Actor(nil), h.Actors...)
	return h
}

func (h Handles) list() []sdk.Handle {
	out := make([]sdk.Handle, 0, 6)
	if h.Foundation != nil {
		out = append(out, h.Foundation)
	}
	if h.Dispatcher != nil {
		out = append(out, h.Dispatcher)
	}
	if h.Debugger != nil {
		out = append(out, h.Debugger)
	}
	if h.Physics != nil {
		out = append(out, h.Physics)
	}
	if h.Cooking != nil {
		out = append(out, h.Cooking)
	}
	if h.Scene != nil {
		out = append(out, h.Scene)
	}
	return out
}

type owned struct {
	kind sdk.Kind
	h    sdk.Handle
}

// Manager sequences construction and destruction of the SDK's root objects.
type Manager struct {
	sdk  sdk.SDK
	opts Options
	log  *zap.Logger
	obs  observers

	mu       sync.Mutex
	state    State
	mode     sdk.Mode
	abort    bool
	inflight string
	h        Handles
	stack    []owned
}

func New(s sdk.SDK, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		sdk:  s,
		opts: opts,
		log:  opts.Logger.With(zap.String("sdk", s.Name())),
		obs:  observers(opts.Observers),
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Mode returns the mode of a Ready manager and ModeUnknown otherwise.
func (m *Manager) Mode() sdk.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Manager) Variant() Variant { return m.opts.Variant }

func (m *Manager) Handles() Handles {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h.clone()
}

// Initialize builds the handle set for mode. On failure every handle built
// by this call has been released and the manager is Uninitialized.
func (m *Manager) Initialize(mode sdk.Mode) error {
	if mode != sdk.ModeWide {
		m.log.Warn("unsupported mode", zap.Stringer("mode", mode))
		return &UnsupportedModeError{Mode: mode}
	}

	m.mu.Lock()
	if err := m.guard("initialize"); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state != StateUninitialized {
		state := m.state
		m.mu.Unlock()
		return &StateError{Op: "initialize", State: state}
	}
	m.state = StateInitializing
	m.abort = false
	m.mu.Unlock()

	m.obs.state(StateUninitialized, StateInitializing, mode)
	return m.build(mode)
}

// InitializeAuto initializes in the mode matching the running binary.
func (m *Manager) InitializeAuto() error {
	return m.Initialize(sdk.DetectMode())
}

// Shutdown releases every held handle in reverse creation order. It is a
// no-op when nothing is held. Called during Initialize, it makes that
// Initialize roll back and fail with ErrAborted.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if err := m.guard("shutdown"); err != nil {
		m.mu.Unlock()
		return err
	}
	switch m.state {
	case StateUninitialized, StateShuttingDown:
		m.mu.Unlock()
		return nil
	case StateInitializing:
		m.abort = true
		m.mu.Unlock()
		m.log.Warn("shutdown requested during initialization")
		return nil
	}
	mode := m.mode
	m.state = StateShuttingDown
	m.mu.Unlock()

	m.obs.state(StateReady, StateShuttingDown, mode)
	err := m.releaseAll()
	m.finish(StateUninitialized, sdk.ModeUnknown)

	if err != nil {
		m.log.Error("shutdown completed with release errors", zap.Error(err))
		return err
	}
	m.log.Info("shutdown complete", zap.Stringer("mode", mode))
	return nil
}

// Close implements io.Closer.
func (m *Manager) Close() error {
	return m.Shutdown()
}

// SwitchMode moves the manager to mode. An unsupported mode is rejected
// before anything is released. Switching to the current mode is a no-op.
// Any other switch is a full Shutdown followed by Initialize; scene contents
// are not carried over. An Uninitialized manager is initialized.
func (m *Manager) SwitchMode(mode sdk.Mode) error {
	if mode != sdk.ModeWide {
		m.log.Warn("unsupported mode", zap.Stringer("mode", mode))
		return &UnsupportedModeError{Mode: mode}
	}

	m.mu.Lock()
	err := m.guard("switch mode")
	state, current := m.state, m.mode
	m.mu.Unlock()

	switch {
	case err != nil:
		return err
	case state.busy():
		return &StateError{Op: "switch mode", State: state}
	case state == StateUninitialized:
		return m.Initialize(mode)
	case current == mode:
		m.log.Debug("switch to current mode ignored", zap.Stringer("mode", mode))
		return nil
	}

	m.log.Info("switching mode", zap.Stringer("from", current), zap.Stringer("to", mode))
	return m.rebuild("switch mode", mode)
}

// UpgradeToWide switches to the 64-bit path.
func (m *Manager) UpgradeToWide() error {
	return m.SwitchMode(sdk.ModeWide)
}

// DowngradeToNarrow switches to the 32-bit path. The narrow path is not
// implemented, so it always returns an *UnsupportedModeError and leaves the
// manager as it was.
func (m *Manager) DowngradeToNarrow() error {
	return m.SwitchMode(sdk.ModeNarrow)
}

// Reload tears down and rebuilds the current mode, producing fresh handles.
func (m *Manager) Reload() error {
	m.mu.Lock()
	err := m.guard("reload")
	state, mode := m.state, m.mode
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if state != StateReady {
		return &StateError{Op: "reload", State: state}
	}
	m.log.Info("reloading", zap.Stringer("mode", mode))
	return m.rebuild("reload", mode)
}

func (m *Manager) rebuild(op string, mode sdk.Mode) error {
	m.mu.Lock()
	if err := m.guard(op); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state != StateReady {
		state := m.state
		m.mu.Unlock()
		return &StateError{Op: op, State: state}
	}
	current := m.mode
	m.state = StateShuttingDown
	m.mu.Unlock()

	m.obs.state(StateReady, StateShuttingDown, current)
	releaseErr := m.releaseAll()

	m.mu.Lock()
	m.state = StateInitializing
	m.mode = sdk.ModeUnknown
	m.abort = false
	m.mu.Unlock()
	m.obs.state(StateShuttingDown, StateInitializing, mode)

	if err := m.build(mode); err != nil {
		return errors.Join(releaseErr, err)
	}
	return releaseErr
}

// CreateScene creates a scene on the live physics instance, replacing any
// existing scene and its actors. A dispatcher is created first if none is
// held. If the old scene cannot be released it stays in place and no new
// scene is created.
func (m *Manager) CreateScene() (sdk.Scene, error) {
	h, err := m.enter("create scene")
	if err != nil {
		var stateErr *StateError
		if errors.As(err, &stateErr) && (stateErr.State.busy() || stateErr.During != "") {
			return nil, &SceneCreationError{Reason: "manager is busy", Err: err}
		}
		return nil, &SceneCreationError{Reason: "no physics instance"}
	}
	defer m.leave()

	if h.Physics == nil {
		return nil, &SceneCreationError{Reason: "no physics instance"}
	}

	scene, err := m.createScene(h.Physics)
	if err != nil {
		m.log.Warn("scene creation failed", zap.Error(err))
		return nil, &SceneCreationError{Reason: "sdk construction failed", Err: err}
	}
	return scene, nil
}

// CreateActor adds a rigid dynamic actor at pose to the live scene. Actors
// are released before their scene.
func (m *Manager) CreateActor(pose sdk.Transform) (sdk.Actor, error) {
	h, err := m.enter("create actor")
	if err != nil {
		return nil, &ActorCreationError{Reason: "manager not ready", Err: err}
	}
	defer m.leave()

	if h.Scene == nil {
		return nil, &ActorCreationError{Reason: "no scene", Err: ErrNoScene}
	}

	a, err := m.sdk.CreateActor(h.Scene, pose)
	if err := adopt(m, sdk.KindActor, nil, a, err); err != nil {
		m.log.Warn("actor creation failed", zap.Error(err))
		return nil, &ActorCreationError{Reason: "sdk construction failed", Err: err}
	}
	return a, nil
}

// Step advances the live scene by dt and waits for the results.
func (m *Manager) Step(dt float32) error {
	m.mu.Lock()
	err := m.guard("step")
	state, scene := m.state, m.h.Scene
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if state != StateReady {
		return &StateError{Op: "step", State: state}
	}
	if scene == nil {
		return ErrNoScene
	}
	if err := scene.Simulate(dt); err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	if _, err := scene.FetchResults(true); err != nil {
		return fmt.Errorf("fetch results: %w", err)
	}
	return nil
}

// enter marks op in flight on a Ready manager and returns the current
// handles. Lifecycle calls made before leave get a *StateError.
func (m *Manager) enter(op string) (Handles, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard(op); err != nil {
		return Handles{}, err
	}
	if m.state != StateReady {
		return Handles{}, &StateError{Op: op, State: m.state}
	}
	m.inflight = op
	return m.h.clone(), nil
}

func (m *Manager) leave() {
	m.mu.Lock()
	m.inflight = ""
	m.mu.Unlock()
}

// guard must be called with m.mu held.
func (m *Manager) guard(op string) error {
	if m.inflight != "" {
		return &StateError{Op: op, State: m.state, During: m.inflight}
	}
	return nil
}

func (m *Manager) build(mode sdk.Mode) error {
	log := m.log.With(zap.Stringer("mode", mode), zap.Stringer("variant", m.opts.Variant))

	if err := m.construct(mode); err != nil {
		var initErr *InitError
		if !errors.As(err, &initErr) {
			initErr = &InitError{Mode: mode, Err: err}
		}
		initErr.Rollback = m.releaseAll()
		m.finish(StateUninitialized, sdk.ModeUnknown)
		log.Warn("initialization failed, rolled back", zap.Error(initErr))
		return initErr
	}

	m.finish(StateReady, mode)
	log.Info("initialized", zap.Int("handles", m.Handles().Count()))
	return nil
}

func (m *Manager) construct(mode sdk.Mode) error {
	fail := func(kind sdk.Kind, err error) error {
		return &InitError{Mode: mode, Step: kind, Err: err}
	}
	checkAbort := func(kind sdk.Kind) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.abort {
			return fail(kind, ErrAborted)
		}
		return nil
	}

	f, err := m.sdk.CreateFoundation(sdk.Version, m.opts.Allocator, m.opts.ErrorCallback)
	if err := adopt(m, sdk.KindFoundation, &m.h.Foundation, f, err); err != nil {
		return fail(sdk.KindFoundation, err)
	}
	if err := checkAbort(sdk.KindFoundation); err != nil {
		return err
	}

	if m.opts.Variant == VariantCooking {
		p, err := m.sdk.CreatePhysics(f, m.opts.Tolerances, nil)
		if err := adopt(m, sdk.KindPhysics, &m.h.Physics, p, err); err != nil {
			return fail(sdk.KindPhysics, err)
		}
		if err := checkAbort(sdk.KindPhysics); err != nil {
			return err
		}

		c, err := m.sdk.CreateCooking(f, m.opts.Cooking)
		if err := adopt(m, sdk.KindCooking, &m.h.Cooking, c, err); err != nil {
			return fail(sdk.KindCooking, err)
		}
		return checkAbort(sdk.KindCooking)
	}

	d, err := m.sdk.CreateDispatcher(m.opts.Workers)
	if err := adopt(m, sdk.KindDispatcher, &m.h.Dispatcher, d, err); err != nil {
		return fail(sdk.KindDispatcher, err)
	}
	if err := checkAbort(sdk.KindDispatcher); err != nil {
		return err
	}

	var dbg sdk.DebugConnection
	if m.opts.Debugger.Enabled {
		dbg, err = m.sdk.CreateDebugConnection(f, m.opts.Debugger)
		if err := adopt(m, sdk.KindDebugger, &m.h.Debugger, dbg, err); err != nil {
			return fail(sdk.KindDebugger, err)
		}
		if err := checkAbort(sdk.KindDebugger); err != nil {
			return err
		}
	}

	p, err := m.sdk.CreatePhysics(f, m.opts.Tolerances, dbg)
	if err := adopt(m, sdk.KindPhysics, &m.h.Physics, p, err); err != nil {
		return fail(sdk.KindPhysics, err)
	}
	if err := checkAbort(sdk.KindPhysics); err != nil {
		return err
	}

	if _, err := m.createScene(p); err != nil {
		return fail(sdk.KindScene, err)
	}
	return checkAbort(sdk.KindScene)
}

func (m *Manager) createScene(physics sdk.Physics) (sdk.Scene, error) {
	m.mu.Lock()
	hasScene, dispatcher, dbg := m.h.Scene != nil, m.h.Dispatcher, m.h.Debugger
	m.mu.Unlock()

	if hasScene {
		err := m.releaseWhere(func(o owned) bool {
			return o.kind == sdk.KindScene || o.kind == sdk.KindActor
		})
		if err != nil {
			return nil, fmt.Errorf("release previous scene: %w", err)
		}
	}

	if dispatcher == nil {
		d, err := m.sdk.CreateDispatcher(m.opts.Workers)
		if err := adopt(m, sdk.KindDispatcher, &m.h.Dispatcher, d, err); err != nil {
			return nil, fmt.Errorf("create dispatcher: %w", err)
		}
		dispatcher = d
	}

	s, err := m.sdk.CreateScene(physics, sdk.SceneDesc{
		Tolerances:         physics.Tolerances(),
		Gravity:            m.opts.Gravity,
		Dispatcher:         dispatcher,
		VisualizationScale: m.opts.VisualizationScale,
	})
	if err := adopt(m, sdk.KindScene, &m.h.Scene, s, err); err != nil {
		return nil, err
	}

	s.SetVisualizationScale(m.opts.VisualizationScale)
	if dbg != nil {
		s.SetDebugConnection(dbg)
	}
	return s, nil
}

// adopt records a freshly constructed handle in its slot and on the release
// stack. A nil slot appends to the actor list. A nil handle with no error
// becomes ErrNilHandle.
func adopt[H sdk.Handle](m *Manager, kind sdk.Kind, slot *H, h H, err error) error {
	if err == nil && sdk.IsNil(h) {
		err = ErrNilHandle
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	if slot != nil {
		*slot = h
	} else if a, ok := any(h).(sdk.Actor); ok {
		m.h.Actors = append(m.h.Actors, a)
	}
	m.stack = append(m.stack, owned{kind: kind, h: h})
	m.mu.Unlock()

	m.obs.create(kind, h.ID())
	m.log.Debug("created", zap.String("kind", string(kind)), zap.String("id", h.ID()))
	return nil
}

// releaseAll pops the release stack until it is empty. Slots are cleared
// before each release so no handle is released twice.
func (m *Manager) releaseAll() error {
	var errs []error
	for {
		m.mu.Lock()
		n := len(m.stack)
		if n == 0 {
			m.mu.Unlock()
			break
		}
		top := m.stack[n-1]
		m.stack = m.stack[:n-1]
		m.clearSlot(top)
		m.mu.Unlock()

		if err := m.release(top); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// releaseWhere releases matching handles, newest first. An entry leaves the
// release stack only after its Release succeeds; on failure it stays owned
// and the error is returned.
func (m *Manager) releaseWhere(match func(owned) bool) error {
	for {
		m.mu.Lock()
		var (
			entry owned
			found bool
		)
		for i := len(m.stack) - 1; i >= 0; i-- {
			if match(m.stack[i]) {
				entry, found = m.stack[i], true
				break
			}
		}
		m.mu.Unlock()
		if !found {
			return nil
		}

		if err := m.release(entry); err != nil {
			return err
		}

		m.mu.Lock()
		for i := len(m.stack) - 1; i >= 0; i-- {
			if m.stack[i].h == entry.h {
				m.stack = append(m.stack[:i], m.stack[i+1:]...)
				break
			}
		}
		m.clearSlot(entry)
		m.mu.Unlock()
	}
}

func (m *Manager) release(o owned) error {
	id := o.h.ID()
	err := o.h.Release()
	m.obs.release(o.kind, id, err)
	if err != nil {
		m.log.Warn("release failed", zap.String("kind", string(o.kind)), zap.String("id", id), zap.Error(err))
		return fmt.Errorf("release %s %s: %w", o.kind, id, err)
	}
	m.log.Debug("released", zap.String("kind", string(o.kind)), zap.String("id", id))
	return nil
}

// clearSlot must be called with m.mu held.
func (m *Manager) clearSlot(o owned) {
	switch o.kind {
	case sdk.KindFoundation:
		m.h.Foundation = nil
	case sdk.KindDispatcher:
		m.h.Dispatcher = nil
	case sdk.KindDebugger:
		m.h.Debugger = nil
	case sdk.KindPhysics:
		m.h.Physics = nil
	case sdk.KindCooking:
		m.h.Cooking = nil
	case sdk.KindScene:
		m.h.Scene = nil
	case sdk.KindActor:
		for i, a := range m.h.Actors {
			if sdk.Handle(a) == o.h {
				m.h.Actors = append(m.h.Actors[:i:i], m.h.Actors[i+1:]...)
				break
			}
		}
	}
}

func (m *Manager) finish(to State, mode sdk.Mode) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mode = mode
	m.abort = false
	m.mu.Unlock()

	if to == StateReady {
		m.obs.state(from, to, mode)
		return
	}
	m.obs.state(from, to, sdk.ModeUnknown)
}
