package lifecycle_test

import (
	"errors"
	"sync"

	"github.com/san-kum/pxwrap/internal/refsdk"
	"github.com/san-kum/pxwrap/internal/sdk"
)

var errReleaseRefused = errors.New("release refused")

// releaseFaults wraps the reference SDK so that dispatcher and scene
// releases can be made to fail without touching the underlying handle.
type releaseFaults struct {
	*refsdk.Runtime

	mu        sync.Mutex
	remaining map[sdk.Kind]int
}

func newReleaseFaults(rt *refsdk.Runtime) *releaseFaults {
	return &releaseFaults{Runtime: rt, remaining: make(map[sdk.Kind]int)}
}

// failNext makes the next n releases of kind fail.
func (f *releaseFaults) failNext(kind sdk.Kind, n int) {
	f.mu.Lock()
	f.remaining[kind] = n
	f.mu.Unlock()
}

func (f *releaseFaults) check(kind sdk.Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining[kind] > 0 {
		f.remaining[kind]--
		return errReleaseRefused
	}
	return nil
}

type flakyDispatcher struct {
	sdk.Dispatcher
	f *releaseFaults
}

func (d *flakyDispatcher) Release() error {
	if err := d.f.check(sdk.KindDispatcher); err != nil {
		return err
	}
	return d.Dispatcher.Release()
}

type flakyScene struct {
	sdk.Scene
	f *releaseFaults
}

func (s *flakyScene) Release() error {
	if err := s.f.check(sdk.KindScene); err != nil {
		return err
	}
	return s.Scene.Release()
}

func (f *releaseFaults) CreateDispatcher(workers int) (sdk.Dispatcher, error) {
	d, err := f.Runtime.CreateDispatcher(workers)
	if err != nil || sdk.IsNil(d) {
		return d, err
	}
	return &flakyDispatcher{Dispatcher: d, f: f}, nil
}

func (f *releaseFaults) CreateScene(p sdk.Physics, desc sdk.SceneDesc) (sdk.Scene, error) {
	if fd, ok := desc.Dispatcher.(*flakyDispatcher); ok {
		desc.Dispatcher = fd.Dispatcher
	}
	s, err := f.Runtime.CreateScene(p, desc)
	if err != nil || sdk.IsNil(s) {
		return s, err
	}
	return &flakyScene{Scene: s, f: f}, nil
}

func (f *releaseFaults) CreateActor(s sdk.Scene, pose sdk.Transform) (sdk.Actor, error) {
	if fs, ok := s.(*flakyScene); ok {
		s = fs.Scene
	}
	return f.Runtime.CreateActor(s, pose)
}
