package sdk

import "reflect"

// Handle is an SDK-owned object held by the caller.
type Handle interface {
	ID() string
	Kind() Kind
	Release() error
}

type Foundation interface {
	Handle
	Version() uint32
	Allocator() Allocator
	// ReportError routes an SDK error through the foundation's error callback.
	ReportError(code ErrorCode, message string)
}

type Physics interface {
	Handle
	Tolerances() TolerancesScale
}

type Dispatcher interface {
	Handle
	Workers() int
	// Submit queues a task on the worker pool. It fails once the dispatcher
	// has been released.
	Submit(task func()) error
}

type Scene interface {
	Handle
	Gravity() Vec3
	VisualizationScale() float32
	SetVisualizationScale(scale float32)
	SetDebugConnection(conn DebugConnection)
	DebugConnection() DebugConnection
	// AddStepHook registers work the scene fans out over its dispatcher on
	// every Simulate call.
	AddStepHook(hook func(dt float32))
	Simulate(dt float32) error
	FetchResults(block bool) (bool, error)
	Elapsed() float64
	Steps() int
}

// Actor is a rigid dynamic body owned by a scene.
type Actor interface {
	Handle
	Pose() Transform
	SceneID() string
}

type DebugConnection interface {
	Handle
	Endpoint() string
	Connected() bool
}

type Cooking interface {
	Handle
	Params() CookingParams
}

// SDK constructs root handles. A constructor reports failure either with an
// error or by returning a nil handle.
type SDK interface {
	Name() string
	CreateFoundation(version uint32, alloc Allocator, cb ErrorCallback) (Foundation, error)
	CreateDispatcher(workers int) (Dispatcher, error)
	CreateDebugConnection(f Foundation, cfg DebuggerConfig) (DebugConnection, error)
	CreatePhysics(f Foundation, scale TolerancesScale, dbg DebugConnection) (Physics, error)
	CreateCooking(f Foundation, params CookingParams) (Cooking, error)
	CreateScene(p Physics, desc SceneDesc) (Scene, error)
	CreateActor(s Scene, pose Transform) (Actor, error)
}

// IsNil reports whether h is nil, including a typed nil inside the interface.
func IsNil(h Handle) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
