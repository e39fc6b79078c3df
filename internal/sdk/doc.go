// Package sdk describes the boundary of the physics SDK wrapped by pxwrap.
//
// The SDK is an opaque collaborator. Its root objects are exposed as handles:
//
//   - [Foundation]: root allocator and error-callback context
//   - [Physics]: the engine instance that scenes and cooking hang off
//   - [Dispatcher]: worker pool used for per-step simulation work
//   - [Scene]: a simulated world
//   - [DebugConnection]: optional link to a visual debugger
//   - [Cooking]: optional mesh preprocessing interface
//
// Every handle is released through [Handle.Release]. Callers must release a
// handle before any of its dependencies and must never release twice.
//
// # Construction
//
// An [SDK] implementation builds handles from their dependencies and a fixed
// set of tuning values:
//
//	f, err := s.CreateFoundation(sdk.Version, sdk.NewHeapAllocator(sdk.ModeWide), cb)
//	p, err := s.CreatePhysics(f, sdk.DefaultTolerancesScale(), nil)
//
// A constructor that returns a nil handle without an error is treated as a
// failed construction by callers.
package sdk
