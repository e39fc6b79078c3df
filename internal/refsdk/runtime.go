package refsdk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/san-kum/pxwrap/internal/sdk"
)

var (
	ErrReleased        = errors.New("refsdk: handle already released")
	ErrLiveDependents  = errors.New("refsdk: handle has live dependents")
	ErrVersionMismatch = errors.New("refsdk: sdk version mismatch")
	ErrForeignHandle   = errors.New("refsdk: handle not created by this runtime")
	ErrInvalidArgument = errors.New("refsdk: invalid argument")
	ErrSimulating      = errors.New("refsdk: scene is already simulating")
)

var blockSizes = map[sdk.Kind]int{
	sdk.KindFoundation: 256,
	sdk.KindPhysics:    1024,
	sdk.KindScene:      512,
	sdk.KindDebugger:   128,
	sdk.KindCooking:    256,
	sdk.KindActor:      192,
}

type Option func(*Runtime)

// WithNullHandle makes the constructor for kind return a nil handle and no error.
func WithNullHandle(kind sdk.Kind) Option {
	return func(r *Runtime) { r.nulls[kind] = true }
}

// WithError makes the constructor for kind fail with err.
func WithError(kind sdk.Kind, err error) Option {
	return func(r *Runtime) { r.errs[kind] = err }
}

// WithHook runs fn at the start of the constructor for kind.
func WithHook(kind sdk.Kind, fn func()) Option {
	return func(r *Runtime) { r.hooks[kind] = fn }
}

// Runtime is the reference SDK. It is safe for concurrent use.
type Runtime struct {
	nulls map[sdk.Kind]bool
	errs  map[sdk.Kind]error
	hooks map[sdk.Kind]func()

	mu       sync.Mutex
	live     map[string]*handle
	created  []sdk.Kind
	released []sdk.Kind
}

func New(opts ...Option) *Runtime {
	r := &Runtime{
		nulls: make(map[sdk.Kind]bool),
		errs:  make(map[sdk.Kind]error),
		hooks: make(map[sdk.Kind]func()),
		live:  make(map[string]*handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) Name() string { return "reference" }

// SetFault changes fault injection for kind after construction. A nil err
// with null=false clears it.
func (r *Runtime) SetFault(kind sdk.Kind, null bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nulls[kind] = null
	if err == nil {
		delete(r.errs, kind)
	} else {
		r.errs[kind] = err
	}
}

// Live returns the number of handles created and not yet released.
func (r *Runtime) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Created returns handle kinds in construction order.
func (r *Runtime) Created() []sdk.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sdk.Kind(nil), r.created...)
}

// Released returns handle kinds in release order.
func (r *Runtime) Released() []sdk.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sdk.Kind(nil), r.released...)
}

func (r *Runtime) inject(kind sdk.Kind) (null bool, err error) {
	r.mu.Lock()
	hook := r.hooks[kind]
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[kind]; err != nil {
		return false, err
	}
	return r.nulls[kind], nil
}

func (r *Runtime) newHandle(kind sdk.Kind, f *Foundation, deps ...*handle) (*handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range deps {
		if d.rt != r {
			return nil, ErrForeignHandle
		}
		if d.released {
			return nil, fmt.Errorf("%w: %s dependency %s", ErrReleased, kind, d.kind)
		}
	}

	h := &handle{
		rt:         r,
		id:         uuid.NewString(),
		kind:       kind,
		foundation: f,
		deps:       deps,
	}
	for _, d := range deps {
		d.dependents++
	}
	if f != nil {
		h.block = f.alloc.Allocate(blockSizes[kind], kind)
	}
	r.live[h.id] = h
	r.created = append(r.created, kind)
	return h, nil
}

type handle struct {
	rt         *Runtime
	id         string
	kind       sdk.Kind
	foundation *Foundation
	block      []byte
	deps       []*handle
	dependents int
	released   bool
}

func (h *handle) ID() string       { return h.id }
func (h *handle) Kind() sdk.Kind   { return h.kind }
func (h *handle) String() string   { return string(h.kind) + "/" + h.id }
func (h *handle) isReleased() bool { h.rt.mu.Lock(); defer h.rt.mu.Unlock(); return h.released }

func (h *handle) release() error {
	r := h.rt
	r.mu.Lock()
	if h.released {
		r.mu.Unlock()
		h.report(sdk.ErrorInvalidOperation, fmt.Sprintf("%s released twice", h.kind))
		return fmt.Errorf("%w: %s", ErrReleased, h.kind)
	}
	if h.dependents > 0 {
		n := h.dependents
		r.mu.Unlock()
		h.report(sdk.ErrorInvalidOperation, fmt.Sprintf("%s released with %d live dependents", h.kind, n))
		return fmt.Errorf("%w: %s has %d", ErrLiveDependents, h.kind, n)
	}
	h.released = true
	for _, d := range h.deps {
		d.dependents--
	}
	delete(r.live, h.id)
	r.released = append(r.released, h.kind)
	r.mu.Unlock()

	if h.foundation != nil && h.block != nil {
		h.foundation.alloc.Deallocate(h.block)
		h.block = nil
	}
	return nil
}

// attach adds d as a dependency of h after construction.
func (h *handle) attach(d *handle) {
	h.rt.mu.Lock()
	defer h.rt.mu.Unlock()
	d.dependents++
	h.deps = append(h.deps, d)
}

func (h *handle) detach(d *handle) {
	h.rt.mu.Lock()
	defer h.rt.mu.Unlock()
	for i, dep := range h.deps {
		if dep == d {
			d.dependents--
			h.deps = append(h.deps[:i], h.deps[i+1:]...)
			return
		}
	}
}

func (h *handle) report(code sdk.ErrorCode, msg string) {
	if h.foundation != nil {
		h.foundation.ReportError(code, msg)
	}
}
