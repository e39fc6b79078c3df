package lifecycle

type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

func (s State) busy() bool {
	return s == StateInitializing || s == StateShuttingDown
}

// Variant selects which optional objects Initialize builds.
type Variant int

const (
	// VariantSimulation builds dispatcher, debugger connection and scene.
	VariantSimulation Variant = iota
	// VariantCooking builds a cooking interface; scenes are created on demand.
	VariantCooking
)

func (v Variant) String() string {
	switch v {
	case VariantSimulation:
		return "simulation"
	case VariantCooking:
		return "cooking"
	default:
		return "unknown"
	}
}
