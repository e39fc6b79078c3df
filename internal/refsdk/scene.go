package refsdk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/san-kum/pxwrap/internal/sdk"
)

type Scene struct {
	*handle
	dispatcher *Dispatcher
	gravity    sdk.Vec3
	tolerances sdk.TolerancesScale

	mu      sync.Mutex
	scale   float32
	debug   *DebugConnection
	hooks   []func(dt float32)
	pending chan struct{}
	stepDt  float32
	stepErr error
	elapsed float64
	steps   int
}

func newScene(h *handle, d *Dispatcher, desc sdk.SceneDesc) *Scene {
	return &Scene{
		handle:     h,
		dispatcher: d,
		gravity:    desc.Gravity,
		tolerances: desc.Tolerances,
		scale:      desc.VisualizationScale,
	}
}

func (s *Scene) Gravity() sdk.Vec3 { return s.gravity }

func (s *Scene) VisualizationScale() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

func (s *Scene) SetVisualizationScale(scale float32) {
	s.mu.Lock()
	s.scale = scale
	s.mu.Unlock()
}

// SetDebugConnection attaches conn to the scene. While attached, conn cannot
// be released before the scene.
func (s *Scene) SetDebugConnection(conn sdk.DebugConnection) {
	var next *DebugConnection
	if !sdk.IsNil(conn) {
		rd, ok := conn.(*DebugConnection)
		if !ok {
			s.report(sdk.ErrorInvalidParameter, "foreign debug connection")
			return
		}
		next = rd
	}

	s.mu.Lock()
	prev := s.debug
	s.debug = next
	s.mu.Unlock()

	if prev != nil {
		s.detach(prev.handle)
	}
	if next != nil {
		s.attach(next.handle)
	}
}

func (s *Scene) DebugConnection() sdk.DebugConnection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debug == nil {
		return nil
	}
	return s.debug
}

func (s *Scene) AddStepHook(hook func(dt float32)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, hook)
	s.mu.Unlock()
}

// Simulate starts one step of length dt. Results become visible after
// FetchResults. Hooks may call back into the scene.
func (s *Scene) Simulate(dt float32) error {
	if dt <= 0 {
		return fmt.Errorf("%w: dt %g", ErrInvalidArgument, dt)
	}
	if s.isReleased() {
		return ErrReleased
	}

	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		s.report(sdk.ErrorInvalidOperation, "simulate called before fetchResults")
		return ErrSimulating
	}
	hooks := append(([]func(float32))(nil), s.hooks...)
	done := make(chan struct{})
	s.pending = done
	s.stepDt = dt
	s.stepErr = nil
	s.mu.Unlock()

	var (
		wg      sync.WaitGroup
		stepErr error
	)
	for _, hook := range hooks {
		hook := hook
		wg.Add(1)
		err := s.dispatcher.Submit(func() {
			defer wg.Done()
			hook(dt)
		})
		if err != nil {
			wg.Done()
			stepErr = errors.Join(stepErr, err)
		}
	}

	s.mu.Lock()
	s.stepErr = stepErr
	s.mu.Unlock()

	go func() {
		wg.Wait()
		close(done)
	}()
	return nil
}

// FetchResults completes the pending step. With block=false it returns
// false if the step is still running. It returns false when no step is
// pending.
func (s *Scene) FetchResults(block bool) (bool, error) {
	s.mu.Lock()
	done := s.pending
	s.mu.Unlock()
	if done == nil {
		return false, nil
	}

	if block {
		<-done
	} else {
		select {
		case <-done:
		default:
			return false, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.elapsed += float64(s.stepDt)
	s.steps++
	err := s.stepErr
	s.stepErr = nil
	return true, err
}

func (s *Scene) Elapsed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

func (s *Scene) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// Release waits for a pending step, detaches the debugger and frees the scene.
func (s *Scene) Release() error {
	s.mu.Lock()
	done := s.pending
	s.mu.Unlock()
	if done != nil {
		<-done
	}

	if err := s.release(); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = nil
	s.debug = nil
	s.mu.Unlock()
	return nil
}
