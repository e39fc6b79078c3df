package lifecycle

import (
	"go.uber.org/zap"

	"github.com/san-kum/pxwrap/internal/sdk"
)

// Options are the construction parameters a Manager passes to the SDK.
// Allocator and ErrorCallback belong to the manager; they are never shared
// through package state.
type Options struct {
	Variant            Variant
	Allocator          sdk.Allocator
	ErrorCallback      sdk.ErrorCallback
	Tolerances         sdk.TolerancesScale
	Gravity            sdk.Vec3
	Workers            int
	VisualizationScale float32
	Debugger           sdk.DebuggerConfig
	Cooking            sdk.CookingParams
	Logger             *zap.Logger
	Observers          []Observer
}

func DefaultOptions() Options {
	scale := sdk.DefaultTolerancesScale()
	return Options{
		Variant:            VariantSimulation,
		Tolerances:         scale,
		Gravity:            sdk.DefaultGravity,
		Workers:            sdk.DefaultWorkers,
		VisualizationScale: sdk.DefaultVisualizationScale,
		Debugger:           sdk.DefaultDebuggerConfig(),
		Cooking:            sdk.DefaultCookingParams(scale),
	}
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.ErrorCallback == nil {
		o.ErrorCallback = sdk.NewLogErrorCallback(o.Logger)
	}
	if o.Allocator == nil {
		o.Allocator = sdk.NewHeapAllocator(sdk.ModeWide)
	}
	if !o.Tolerances.IsValid() {
		o.Tolerances = sdk.DefaultTolerancesScale()
	}
	if o.Workers <= 0 {
		o.Workers = sdk.DefaultWorkers
	}
	if !o.Cooking.Tolerances.IsValid() {
		o.Cooking.Tolerances = o.Tolerances
	}
	return o
}
