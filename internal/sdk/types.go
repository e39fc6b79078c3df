package sdk

import "fmt"

// Version is the SDK version handed to CreateFoundation.
const Version uint32 = 5<<24 | 1<<16 | 3<<8

const (
	DefaultWorkers            = 2
	DefaultVisualizationScale = 0.1
	DefaultDebuggerHost       = "127.0.0.1"
	DefaultDebuggerPort       = 5425
	DefaultDebuggerTimeoutMs  = 10
)

// Kind names a handle type.
type Kind string

const (
	KindFoundation Kind = "foundation"
	KindPhysics    Kind = "physics"
	KindDispatcher Kind = "dispatcher"
	KindScene      Kind = "scene"
	KindDebugger   Kind = "debugger"
	KindCooking    Kind = "cooking"
	KindActor      Kind = "actor"
)

// Kinds lists every handle kind in canonical creation order.
var Kinds = []Kind{KindFoundation, KindDispatcher, KindDebugger, KindPhysics, KindCooking, KindScene, KindActor}

type Vec3 struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
	Z float32 `yaml:"z" json:"z"`
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// Quat is a rotation quaternion.
type Quat struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
	Z float32 `yaml:"z" json:"z"`
	W float32 `yaml:"w" json:"w"`
}

var IdentityQuat = Quat{W: 1}

// Transform places an actor in its scene.
type Transform struct {
	Position Vec3 `yaml:"position" json:"position"`
	Rotation Quat `yaml:"rotation" json:"rotation"`
}

// At is a transform at p with no rotation.
func At(p Vec3) Transform {
	return Transform{Position: p, Rotation: IdentityQuat}
}

func (t Transform) IsValid() bool {
	q := t.Rotation
	n := q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W
	return n > 0.99 && n < 1.01
}

// DefaultGravity is the gravity vector given to new scenes.
var DefaultGravity = Vec3{X: 0, Y: -9.81, Z: 0}

// TolerancesScale sets the typical object length and speed the SDK tunes
// its tolerances to.
type TolerancesScale struct {
	Length float32 `yaml:"length" json:"length"`
	Speed  float32 `yaml:"speed" json:"speed"`
}

func DefaultTolerancesScale() TolerancesScale {
	return TolerancesScale{Length: 1, Speed: 10}
}

func (t TolerancesScale) IsValid() bool {
	return t.Length > 0 && t.Speed > 0
}

type SceneDesc struct {
	Tolerances         TolerancesScale
	Gravity            Vec3
	Dispatcher         Dispatcher
	VisualizationScale float32
}

type CookingParams struct {
	Tolerances    TolerancesScale `yaml:"-" json:"tolerances"`
	WeldTolerance float32         `yaml:"weld_tolerance" json:"weld_tolerance"`
	BuildGPUData  bool            `yaml:"build_gpu_data" json:"build_gpu_data"`
}

func DefaultCookingParams(scale TolerancesScale) CookingParams {
	return CookingParams{Tolerances: scale}
}

type DebuggerConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	TimeoutMs int    `yaml:"timeout_ms" json:"timeout_ms"`
}

func DefaultDebuggerConfig() DebuggerConfig {
	return DebuggerConfig{
		Enabled:   true,
		Host:      DefaultDebuggerHost,
		Port:      DefaultDebuggerPort,
		TimeoutMs: DefaultDebuggerTimeoutMs,
	}
}

func (c DebuggerConfig) Endpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
