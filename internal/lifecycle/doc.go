// Package lifecycle owns the root objects of a physics SDK for the lifetime
// of a [Manager].
//
// A Manager creates the foundation, dispatcher, debugger connection, physics
// instance, cooking interface and scene in dependency order and releases
// them in exactly the reverse order. Actors added with CreateActor live in
// the scene and go before it. Failed initialization rolls back what
// it built, so the manager is always left either Ready or Uninitialized:
//
//	m := lifecycle.New(refsdk.New(), lifecycle.DefaultOptions())
//	if err := m.Initialize(sdk.ModeWide); err != nil {
//	    return err
//	}
//	defer m.Shutdown()
//
// Only [sdk.ModeWide] is implemented. [sdk.ModeNarrow] always fails with
// [*UnsupportedModeError] and never constructs anything.
//
// # Concurrency
//
// Lifecycle calls must be serialized by the caller. The manager guards its
// state so that a call made while it is Initializing, ShuttingDown or inside
// CreateScene or CreateActor, for example from an SDK callback, fails with
// [*StateError] instead of corrupting the handle set.
package lifecycle
