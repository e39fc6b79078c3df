package lifecycle

import (
	"errors"
	"fmt"

	"github.com/san-kum/pxwrap/internal/sdk"
)

var (
	// ErrAborted means Shutdown was requested while Initialize was running.
	ErrAborted = errors.New("lifecycle: initialization aborted by shutdown")

	// ErrNilHandle means an SDK constructor returned no handle and no error.
	ErrNilHandle = errors.New("lifecycle: sdk returned a nil handle")

	// ErrNoScene means a scene operation was attempted with no live scene.
	ErrNoScene = errors.New("lifecycle: no live scene")
)

// InitError reports a failed construction step during Initialize.
// Rollback holds errors from releasing the handles built before the failure.
type InitError struct {
	Mode     sdk.Mode
	Step     sdk.Kind
	Err      error
	Rollback error
}

func (e *InitError) Error() string {
	msg := fmt.Sprintf("initialize %s: create %s: %v", e.Mode, e.Step, e.Err)
	if e.Rollback != nil {
		msg += fmt.Sprintf(" (rollback: %v)", e.Rollback)
	}
	return msg
}

func (e *InitError) Unwrap() error { return e.Err }

// SceneCreationError reports a failed CreateScene.
type SceneCreationError struct {
	Reason string
	Err    error
}

func (e *SceneCreationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("create scene: %s: %v", e.Reason, e.Err)
	}
	return "create scene: " + e.Reason
}

func (e *SceneCreationError) Unwrap() error { return e.Err }

// ActorCreationError reports a failed CreateActor.
type ActorCreationError struct {
	Reason string
	Err    error
}

func (e *ActorCreationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("create actor: %s: %v", e.Reason, e.Err)
	}
	return "create actor: " + e.Reason
}

func (e *ActorCreationError) Unwrap() error { return e.Err }

// UnsupportedModeError reports a mode with no implemented initialization path.
type UnsupportedModeError struct {
	Mode sdk.Mode
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("mode %s (%d-bit) is not supported", e.Mode, e.Mode.Bits())
}

// StateError reports an operation that is invalid in the manager's current
// state. During names the operation in flight when one was blocking it.
type StateError struct {
	Op     string
	State  State
	During string
}

func (e *StateError) Error() string {
	if e.During != "" {
		return fmt.Sprintf("%s: invalid during %s", e.Op, e.During)
	}
	return fmt.Sprintf("%s: invalid while %s", e.Op, e.State)
}
