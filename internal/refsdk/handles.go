package refsdk

import (
	"fmt"

	"github.com/san-kum/pxwrap/internal/sdk"
)

type nopCallback struct{}

func (nopCallback) ReportError(sdk.ErrorCode, string, string, int) {}

type Foundation struct {
	*handle
	version uint32
	alloc   sdk.Allocator
	cb      sdk.ErrorCallback
}

func (f *Foundation) Version() uint32          { return f.version }
func (f *Foundation) Allocator() sdk.Allocator { return f.alloc }
func (f *Foundation) Release() error           { return f.release() }

func (f *Foundation) ReportError(code sdk.ErrorCode, message string) {
	f.cb.ReportError(code, message, "refsdk", 0)
}

type Physics struct {
	*handle
	scale sdk.TolerancesScale
}

func (p *Physics) Tolerances() sdk.TolerancesScale { return p.scale }
func (p *Physics) Release() error                  { return p.release() }

type Cooking struct {
	*handle
	params sdk.CookingParams
}

func (c *Cooking) Params() sdk.CookingParams { return c.params }
func (c *Cooking) Release() error            { return c.release() }

type DebugConnection struct {
	*handle
	endpoint string
}

func (d *DebugConnection) Endpoint() string { return d.endpoint }
func (d *DebugConnection) Connected() bool  { return !d.isReleased() }
func (d *DebugConnection) Release() error   { return d.release() }

type Actor struct {
	*handle
	pose    sdk.Transform
	sceneID string
}

func (a *Actor) Pose() sdk.Transform { return a.pose }
func (a *Actor) SceneID() string     { return a.sceneID }
func (a *Actor) Release() error      { return a.release() }

func (r *Runtime) CreateFoundation(version uint32, alloc sdk.Allocator, cb sdk.ErrorCallback) (sdk.Foundation, error) {
	null, err := r.inject(sdk.KindFoundation)
	if err != nil {
		return nil, err
	}
	if null {
		return nil, nil
	}
	if version != sdk.Version {
		return nil, fmt.Errorf("%w: got %#x, want %#x", ErrVersionMismatch, version, sdk.Version)
	}
	if alloc == nil {
		return nil, fmt.Errorf("%w: allocator is nil", ErrInvalidArgument)
	}
	if cb == nil {
		cb = nopCallback{}
	}

	f := &Foundation{version: version, alloc: alloc, cb: cb}
	h, err := r.newHandle(sdk.KindFoundation, f)
	if err != nil {
		return nil, err
	}
	f.handle = h
	return f, nil
}

func (r *Runtime) foundation(f sdk.Foundation) (*Foundation, error) {
	if sdk.IsNil(f) {
		return nil, fmt.Errorf("%w: foundation is nil", ErrInvalidArgument)
	}
	rf, ok := f.(*Foundation)
	if !ok {
		return nil, ErrForeignHandle
	}
	return rf, nil
}

func (r *Runtime) CreatePhysics(f sdk.Foundation, scale sdk.TolerancesScale, dbg sdk.DebugConnection) (sdk.Physics, error) {
	null, err := r.inject(sdk.KindPhysics)
	if err != nil {
		return nil, err
	}
	if null {
		return nil, nil
	}
	rf, err := r.foundation(f)
	if err != nil {
		return nil, err
	}
	if !scale.IsValid() {
		rf.ReportError(sdk.ErrorInvalidParameter, "tolerances scale must be positive")
		return nil, fmt.Errorf("%w: tolerances scale %+v", ErrInvalidArgument, scale)
	}

	deps := []*handle{rf.handle}
	if !sdk.IsNil(dbg) {
		rd, ok := dbg.(*DebugConnection)
		if !ok {
			return nil, ErrForeignHandle
		}
		deps = append(deps, rd.handle)
	}

	h, err := r.newHandle(sdk.KindPhysics, rf, deps...)
	if err != nil {
		return nil, err
	}
	return &Physics{handle: h, scale: scale}, nil
}

func (r *Runtime) CreateCooking(f sdk.Foundation, params sdk.CookingParams) (sdk.Cooking, error) {
	null, err := r.inject(sdk.KindCooking)
	if err != nil {
		return nil, err
	}
	if null {
		return nil, nil
	}
	rf, err := r.foundation(f)
	if err != nil {
		return nil, err
	}
	if !params.Tolerances.IsValid() {
		return nil, fmt.Errorf("%w: cooking tolerances %+v", ErrInvalidArgument, params.Tolerances)
	}

	h, err := r.newHandle(sdk.KindCooking, rf, rf.handle)
	if err != nil {
		return nil, err
	}
	return &Cooking{handle: h, params: params}, nil
}

func (r *Runtime) CreateDebugConnection(f sdk.Foundation, cfg sdk.DebuggerConfig) (sdk.DebugConnection, error) {
	null, err := r.inject(sdk.KindDebugger)
	if err != nil {
		return nil, err
	}
	if null {
		return nil, nil
	}
	rf, err := r.foundation(f)
	if err != nil {
		return nil, err
	}
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("%w: debugger endpoint %q", ErrInvalidArgument, cfg.Endpoint())
	}

	h, err := r.newHandle(sdk.KindDebugger, rf, rf.handle)
	if err != nil {
		return nil, err
	}
	return &DebugConnection{handle: h, endpoint: cfg.Endpoint()}, nil
}

func (r *Runtime) CreateDispatcher(workers int) (sdk.Dispatcher, error) {
	null, err := r.inject(sdk.KindDispatcher)
	if err != nil {
		return nil, err
	}
	if null {
		return nil, nil
	}
	if workers <= 0 {
		return nil, fmt.Errorf("%w: worker count %d", ErrInvalidArgument, workers)
	}

	h, err := r.newHandle(sdk.KindDispatcher, nil)
	if err != nil {
		return nil, err
	}
	return newDispatcher(h, workers), nil
}

func (r *Runtime) CreateScene(p sdk.Physics, desc sdk.SceneDesc) (sdk.Scene, error) {
	null, err := r.inject(sdk.KindScene)
	if err != nil {
		return nil, err
	}
	if null {
		return nil, nil
	}
	if sdk.IsNil(p) {
		return nil, fmt.Errorf("%w: physics is nil", ErrInvalidArgument)
	}
	rp, ok := p.(*Physics)
	if !ok {
		return nil, ErrForeignHandle
	}
	if sdk.IsNil(desc.Dispatcher) {
		rp.report(sdk.ErrorInvalidParameter, "scene descriptor has no dispatcher")
		return nil, fmt.Errorf("%w: scene requires a dispatcher", ErrInvalidArgument)
	}
	rd, ok := desc.Dispatcher.(*Dispatcher)
	if !ok {
		return nil, ErrForeignHandle
	}
	if !desc.Tolerances.IsValid() {
		desc.Tolerances = rp.scale
	}

	h, err := r.newHandle(sdk.KindScene, rp.foundation, rp.handle, rd.handle)
	if err != nil {
		return nil, err
	}
	return newScene(h, rd, desc), nil
}

// CreateActor adds a rigid dynamic body to s. The scene cannot be released
// while the actor is live.
func (r *Runtime) CreateActor(s sdk.Scene, pose sdk.Transform) (sdk.Actor, error) {
	null, err := r.inject(sdk.KindActor)
	if err != nil {
		return nil, err
	}
	if null {
		return nil, nil
	}
	if sdk.IsNil(s) {
		return nil, fmt.Errorf("%w: scene is nil", ErrInvalidArgument)
	}
	rs, ok := s.(*Scene)
	if !ok {
		return nil, ErrForeignHandle
	}
	if !pose.IsValid() {
		rs.report(sdk.ErrorInvalidParameter, "actor pose has a non-unit rotation")
		return nil, fmt.Errorf("%w: actor pose %+v", ErrInvalidArgument, pose)
	}

	h, err := r.newHandle(sdk.KindActor, rs.foundation, rs.handle)
	if err != nil {
		return nil, err
	}
	return &Actor{handle: h, pose: pose, sceneID: rs.id}, nil
}
