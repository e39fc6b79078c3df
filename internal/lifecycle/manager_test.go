package lifecycle_test

import (
	"errors"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pxwrap/internal/lifecycle"
	"github.com/san-kum/pxwrap/internal/refsdk"
	"github.com/san-kum/pxwrap/internal/sdk"
	"github.com/san-kum/pxwrap/internal/trace"
)

var simulationOrder = []sdk.Kind{
	sdk.KindFoundation, sdk.KindDispatcher, sdk.KindDebugger, sdk.KindPhysics, sdk.KindScene,
}

func reversed(kinds []sdk.Kind) []sdk.Kind {
	out := make([]sdk.Kind, len(kinds))
	for i, k := range kinds {
		out[len(kinds)-1-i] = k
	}
	return out
}

var _ = Describe("Manager", func() {
	var (
		rt    *refsdk.Runtime
		rec   *trace.Recorder
		alloc *sdk.HeapAllocator
		opts  lifecycle.Options
		m     *lifecycle.Manager
	)

	newManager := func(runtimeOpts ...refsdk.Option) {
		rt = refsdk.New(runtimeOpts...)
		m = lifecycle.New(rt, opts)
	}

	BeforeEach(func() {
		rec = trace.NewRecorder()
		alloc = sdk.NewHeapAllocator(sdk.ModeWide)
		opts = lifecycle.DefaultOptions()
		opts.Allocator = alloc
		opts.Observers = []lifecycle.Observer{rec}
		newManager()
	})

	Describe("Initialize", func() {
		It("builds the simulation handle set in dependency order", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())

			Expect(m.State()).To(Equal(lifecycle.StateReady))
			Expect(m.Mode()).To(Equal(sdk.ModeWide))
			Expect(m.Handles().Count()).To(Equal(5))
			Expect(rec.Creates()).To(Equal(simulationOrder))
			Expect(rec.States()).To(Equal([]string{"initializing", "ready"}))
		})

		It("wires the scene to the dispatcher and debugger", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())

			h := m.Handles()
			Expect(h.Scene.Gravity()).To(Equal(sdk.Vec3{X: 0, Y: -9.81, Z: 0}))
			Expect(h.Scene.VisualizationScale()).To(BeNumerically("~", 0.1, 1e-6))
			Expect(h.Scene.DebugConnection()).NotTo(BeNil())
			Expect(h.Scene.DebugConnection().ID()).To(Equal(h.Debugger.ID()))
			Expect(h.Dispatcher.Workers()).To(Equal(2))
			Expect(h.Debugger.Endpoint()).To(Equal("127.0.0.1:5425"))
		})

		It("skips the debugger when disabled", func() {
			opts.Debugger.Enabled = false
			newManager()

			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			Expect(m.Handles().Debugger).To(BeNil())
			Expect(m.Handles().Count()).To(Equal(4))
		})

		It("builds the cooking variant without a scene", func() {
			opts.Variant = lifecycle.VariantCooking
			newManager()

			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			Expect(rec.Creates()).To(Equal([]sdk.Kind{sdk.KindFoundation, sdk.KindPhysics, sdk.KindCooking}))
			Expect(m.Handles().Scene).To(BeNil())
			Expect(m.Handles().Cooking.Params().Tolerances).To(Equal(sdk.DefaultTolerancesScale()))
		})

		It("rejects the narrow mode without constructing anything", func() {
			err := m.Initialize(sdk.ModeNarrow)

			var unsupported *lifecycle.UnsupportedModeError
			Expect(errors.As(err, &unsupported)).To(BeTrue())
			Expect(unsupported.Mode).To(Equal(sdk.ModeNarrow))

			var initErr *lifecycle.InitError
			Expect(errors.As(err, &initErr)).To(BeFalse())

			Expect(m.State()).To(Equal(lifecycle.StateUninitialized))
			Expect(m.Handles().Count()).To(BeZero())
			Expect(rt.Created()).To(BeEmpty())
		})

		It("rejects a second Initialize while ready", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())

			var stateErr *lifecycle.StateError
			Expect(errors.As(m.Initialize(sdk.ModeWide), &stateErr)).To(BeTrue())
			Expect(stateErr.State).To(Equal(lifecycle.StateReady))
			Expect(rt.Live()).To(Equal(5))
		})

		It("reports the narrow mode as unsupported even when ready", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())

			var unsupported *lifecycle.UnsupportedModeError
			Expect(errors.As(m.Initialize(sdk.ModeNarrow), &unsupported)).To(BeTrue())
			Expect(m.State()).To(Equal(lifecycle.StateReady))
		})

		It("initializes in the detected mode", func() {
			if sdk.DetectMode() != sdk.ModeWide {
				Skip("narrow build")
			}
			Expect(m.InitializeAuto()).To(Succeed())
			Expect(m.Mode()).To(Equal(sdk.ModeWide))
		})

		It("survives initialize, shutdown, initialize without double release", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			Expect(m.Shutdown()).To(Succeed())
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())

			Expect(m.State()).To(Equal(lifecycle.StateReady))
			Expect(m.Handles().Count()).To(Equal(5))
			Expect(rt.Live()).To(Equal(5))
			Expect(rt.Released()).To(HaveLen(5))
			for _, e := range rec.Events() {
				Expect(e.Err).To(BeEmpty())
			}

			Expect(m.Shutdown()).To(Succeed())
			Expect(alloc.LiveBytes()).To(BeZero())
		})
	})

	Describe("rollback", func() {
		DescribeTable("releases everything built before a nil handle",
			func(kind sdk.Kind, built []sdk.Kind) {
				newManager(refsdk.WithNullHandle(kind))

				err := m.Initialize(sdk.ModeWide)

				var initErr *lifecycle.InitError
				Expect(errors.As(err, &initErr)).To(BeTrue())
				Expect(initErr.Step).To(Equal(kind))
				Expect(errors.Is(err, lifecycle.ErrNilHandle)).To(BeTrue())
				Expect(initErr.Rollback).NotTo(HaveOccurred())

				Expect(m.State()).To(Equal(lifecycle.StateUninitialized))
				Expect(m.Handles().Count()).To(BeZero())
				Expect(rt.Live()).To(BeZero())
				Expect(alloc.LiveBytes()).To(BeZero())
				if len(built) == 0 {
					Expect(rt.Released()).To(BeEmpty())
				} else {
					Expect(rt.Released()).To(Equal(reversed(built)))
				}
			},
			Entry("foundation", sdk.KindFoundation, []sdk.Kind{}),
			Entry("dispatcher", sdk.KindDispatcher, []sdk.Kind{sdk.KindFoundation}),
			Entry("debugger", sdk.KindDebugger, []sdk.Kind{sdk.KindFoundation, sdk.KindDispatcher}),
			Entry("physics", sdk.KindPhysics, []sdk.Kind{sdk.KindFoundation, sdk.KindDispatcher, sdk.KindDebugger}),
			Entry("scene", sdk.KindScene, []sdk.Kind{sdk.KindFoundation, sdk.KindDispatcher, sdk.KindDebugger, sdk.KindPhysics}),
		)

		It("wraps SDK errors and stays usable", func() {
			boom := errors.New("out of memory")
			newManager(refsdk.WithError(sdk.KindPhysics, boom))

			err := m.Initialize(sdk.ModeWide)
			Expect(err).To(MatchError(boom))
			Expect(err.Error()).To(ContainSubstring("create physics"))
			Expect(rt.Live()).To(BeZero())

			rt.SetFault(sdk.KindPhysics, false, nil)
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			Expect(m.State()).To(Equal(lifecycle.StateReady))
		})

		It("rolls back the cooking variant", func() {
			opts.Variant = lifecycle.VariantCooking
			newManager(refsdk.WithNullHandle(sdk.KindCooking))

			var initErr *lifecycle.InitError
			Expect(errors.As(m.Initialize(sdk.ModeWide), &initErr)).To(BeTrue())
			Expect(initErr.Step).To(Equal(sdk.KindCooking))
			Expect(rt.Released()).To(Equal([]sdk.Kind{sdk.KindPhysics, sdk.KindFoundation}))
		})
	})

	Describe("Shutdown", func() {
		It("clears every slot and reports a failed release once", func() {
			faults := newReleaseFaults(refsdk.New())
			rt = faults.Runtime
			m = lifecycle.New(faults, opts)
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			faults.failNext(sdk.KindDispatcher, 1)

			err := m.Shutdown()
			Expect(err).To(MatchError(errReleaseRefused))
			Expect(err.Error()).To(ContainSubstring("release dispatcher"))

			Expect(m.State()).To(Equal(lifecycle.StateUninitialized))
			Expect(m.Handles().Count()).To(BeZero())
			Expect(rec.Releases()).To(Equal(reversed(simulationOrder)))
			Expect(rt.Released()).To(Equal([]sdk.Kind{
				sdk.KindScene, sdk.KindPhysics, sdk.KindDebugger, sdk.KindFoundation,
			}))
			Expect(rt.Live()).To(Equal(1))

			Expect(m.Shutdown()).To(Succeed())
			Expect(rt.Released()).To(HaveLen(4))
			Expect(rec.Releases()).To(HaveLen(5))
		})

		It("is a no-op when uninitialized", func() {
			Expect(m.Shutdown()).To(Succeed())
			Expect(m.Shutdown()).To(Succeed())
			Expect(rec.Events()).To(BeEmpty())
			Expect(m.State()).To(Equal(lifecycle.StateUninitialized))
		})

		It("releases in reverse creation order and is idempotent", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			Expect(m.Shutdown()).To(Succeed())
			Expect(m.Close()).To(Succeed())

			Expect(rec.Releases()).To(Equal(reversed(simulationOrder)))
			Expect(rt.Released()).To(Equal(reversed(simulationOrder)))
			Expect(m.Handles().Count()).To(BeZero())
			Expect(alloc.LiveBytes()).To(BeZero())
			Expect(rec.States()).To(Equal([]string{"initializing", "ready", "shutting_down", "uninitialized"}))
		})
	})

	Describe("CreateScene", func() {
		It("fails before Initialize", func() {
			scene, err := m.CreateScene()

			Expect(scene).To(BeNil())
			var sceneErr *lifecycle.SceneCreationError
			Expect(errors.As(err, &sceneErr)).To(BeTrue())
			Expect(rt.Created()).To(BeEmpty())
		})

		It("creates a scene for the cooking variant and releases it first", func() {
			opts.Variant = lifecycle.VariantCooking
			newManager()
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())

			scene, err := m.CreateScene()
			Expect(err).NotTo(HaveOccurred())
			Expect(scene.Gravity()).To(Equal(sdk.Vec3{X: 0, Y: -9.81, Z: 0}))
			Expect(m.Handles().Scene.ID()).To(Equal(scene.ID()))
			Expect(m.Handles().Dispatcher).NotTo(BeNil())

			Expect(m.Shutdown()).To(Succeed())
			Expect(rec.Releases()).To(Equal([]sdk.Kind{
				sdk.KindScene, sdk.KindDispatcher, sdk.KindCooking, sdk.KindPhysics, sdk.KindFoundation,
			}))
		})

		It("replaces an existing scene instead of holding two", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			before := m.Handles().Scene.ID()

			scene, err := m.CreateScene()
			Expect(err).NotTo(HaveOccurred())
			Expect(scene.ID()).NotTo(Equal(before))
			Expect(rt.Live()).To(Equal(5))
			Expect(rec.Releases()).To(Equal([]sdk.Kind{sdk.KindScene}))
		})

		It("keeps the old scene when it cannot be released", func() {
			faults := newReleaseFaults(refsdk.New())
			rt = faults.Runtime
			m = lifecycle.New(faults, opts)
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			old := m.Handles().Scene.ID()
			faults.failNext(sdk.KindScene, 1)

			scene, err := m.CreateScene()
			Expect(scene).To(BeNil())
			var sceneErr *lifecycle.SceneCreationError
			Expect(errors.As(err, &sceneErr)).To(BeTrue())
			Expect(err).To(MatchError(errReleaseRefused))

			Expect(m.Handles().Scene.ID()).To(Equal(old))
			Expect(rt.Live()).To(Equal(5))
			Expect(rt.Created()).To(HaveLen(5))

			replacement, err := m.CreateScene()
			Expect(err).NotTo(HaveOccurred())
			Expect(replacement.ID()).NotTo(Equal(old))
			Expect(rt.Live()).To(Equal(5))

			Expect(m.Shutdown()).To(Succeed())
			Expect(rt.Live()).To(BeZero())
			Expect(alloc.LiveBytes()).To(BeZero())
		})

		It("refuses a shutdown requested from inside scene creation", func() {
			opts.Variant = lifecycle.VariantCooking
			var shutdownErr error
			newManager(refsdk.WithHook(sdk.KindDispatcher, func() {
				shutdownErr = m.Shutdown()
			}))
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())

			_, err := m.CreateScene()
			Expect(err).NotTo(HaveOccurred())

			var stateErr *lifecycle.StateError
			Expect(errors.As(shutdownErr, &stateErr)).To(BeTrue())
			Expect(stateErr.During).To(Equal("create scene"))
			Expect(m.State()).To(Equal(lifecycle.StateReady))
			Expect(m.Handles().Dispatcher).NotTo(BeNil())
			Expect(rt.Live()).To(Equal(5))

			Expect(m.Shutdown()).To(Succeed())
			Expect(rt.Live()).To(BeZero())
		})

		It("reports an invalid scene handle and keeps the manager ready", func() {
			opts.Variant = lifecycle.VariantCooking
			newManager(refsdk.WithNullHandle(sdk.KindScene))
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())

			_, err := m.CreateScene()
			var sceneErr *lifecycle.SceneCreationError
			Expect(errors.As(err, &sceneErr)).To(BeTrue())
			Expect(errors.Is(err, lifecycle.ErrNilHandle)).To(BeTrue())
			Expect(m.State()).To(Equal(lifecycle.StateReady))
			Expect(m.Handles().Scene).To(BeNil())
		})
	})

	Describe("SwitchMode", func() {
		It("leaves handles untouched when the mode is unchanged", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			before := m.Handles().IDs()

			Expect(m.SwitchMode(sdk.ModeWide)).To(Succeed())
			Expect(m.UpgradeToWide()).To(Succeed())

			Expect(m.Handles().IDs()).To(Equal(before))
			Expect(rec.Releases()).To(BeEmpty())
		})

		It("initializes an uninitialized manager", func() {
			Expect(m.SwitchMode(sdk.ModeWide)).To(Succeed())
			Expect(m.State()).To(Equal(lifecycle.StateReady))
		})

		It("rejects the narrow mode without releasing anything", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			before := m.Handles().IDs()

			err := m.DowngradeToNarrow()
			var unsupported *lifecycle.UnsupportedModeError
			Expect(errors.As(err, &unsupported)).To(BeTrue())
			Expect(unsupported.Mode).To(Equal(sdk.ModeNarrow))

			Expect(m.State()).To(Equal(lifecycle.StateReady))
			Expect(m.Mode()).To(Equal(sdk.ModeWide))
			Expect(m.Handles().IDs()).To(Equal(before))
			Expect(rec.Releases()).To(BeEmpty())
			Expect(rt.Live()).To(Equal(5))
		})

		It("rejects the narrow mode on an uninitialized manager", func() {
			var unsupported *lifecycle.UnsupportedModeError
			Expect(errors.As(m.SwitchMode(sdk.ModeNarrow), &unsupported)).To(BeTrue())
			Expect(m.State()).To(Equal(lifecycle.StateUninitialized))
			Expect(rt.Created()).To(BeEmpty())
		})
	})

	Describe("CreateActor", func() {
		origin := sdk.At(sdk.Vec3{Y: 1})

		It("needs a ready manager with a scene", func() {
			var actorErr *lifecycle.ActorCreationError
			_, err := m.CreateActor(origin)
			Expect(errors.As(err, &actorErr)).To(BeTrue())
			var stateErr *lifecycle.StateError
			Expect(errors.As(err, &stateErr)).To(BeTrue())

			opts.Variant = lifecycle.VariantCooking
			newManager()
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			_, err = m.CreateActor(origin)
			Expect(errors.As(err, &actorErr)).To(BeTrue())
			Expect(err).To(MatchError(lifecycle.ErrNoScene))
		})

		It("releases actors before their scene", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			a1, err := m.CreateActor(origin)
			Expect(err).NotTo(HaveOccurred())
			a2, err := m.CreateActor(sdk.At(sdk.Vec3{Y: 2}))
			Expect(err).NotTo(HaveOccurred())

			Expect(a1.SceneID()).To(Equal(m.Handles().Scene.ID()))
			Expect(a2.Pose().Position.Y).To(BeNumerically("==", 2))
			Expect(m.Handles().Actors).To(HaveLen(2))
			Expect(m.Handles().Count()).To(Equal(5))
			Expect(rt.Live()).To(Equal(7))

			Expect(m.Shutdown()).To(Succeed())
			Expect(rec.Releases()).To(Equal(append(
				[]sdk.Kind{sdk.KindActor, sdk.KindActor}, reversed(simulationOrder)...)))
			Expect(m.Handles().Actors).To(BeEmpty())
			Expect(alloc.LiveBytes()).To(BeZero())
		})

		It("drops actors with the scene they belong to", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			_, err := m.CreateActor(origin)
			Expect(err).NotTo(HaveOccurred())

			snapshot := m.Handles()
			_, err = m.CreateScene()
			Expect(err).NotTo(HaveOccurred())

			Expect(snapshot.Actors).To(HaveLen(1))
			Expect(m.Handles().Actors).To(BeEmpty())
			Expect(rec.Releases()).To(Equal([]sdk.Kind{sdk.KindActor, sdk.KindScene}))
			Expect(rt.Live()).To(Equal(5))
		})

		It("rejects a nil actor handle", func() {
			newManager(refsdk.WithNullHandle(sdk.KindActor))
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())

			_, err := m.CreateActor(origin)
			Expect(err).To(MatchError(lifecycle.ErrNilHandle))
			Expect(m.Handles().Actors).To(BeEmpty())
		})

		It("guards the manager while the actor is built", func() {
			var stepErr error
			newManager(refsdk.WithHook(sdk.KindActor, func() {
				stepErr = m.Step(0.01)
			}))
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())

			_, err := m.CreateActor(origin)
			Expect(err).NotTo(HaveOccurred())
			var stateErr *lifecycle.StateError
			Expect(errors.As(stepErr, &stateErr)).To(BeTrue())
			Expect(stateErr.During).To(Equal("create actor"))
		})
	})

	Describe("Reload", func() {
		It("rebuilds with fresh handle identities", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			before := m.Handles().IDs()

			Expect(m.Reload()).To(Succeed())
			after := m.Handles().IDs()

			Expect(after).To(HaveLen(len(before)))
			for kind, id := range before {
				Expect(after[kind]).NotTo(Equal(id), string(kind))
			}
			Expect(rt.Live()).To(Equal(5))
			Expect(rec.States()).To(Equal([]string{
				"initializing", "ready", "shutting_down", "initializing", "ready",
			}))
		})

		It("requires a ready manager", func() {
			var stateErr *lifecycle.StateError
			Expect(errors.As(m.Reload(), &stateErr)).To(BeTrue())
		})
	})

	Describe("reentrancy", func() {
		It("guards lifecycle calls made from inside a constructor", func() {
			var initErr, switchErr, sceneErr error
			newManager(refsdk.WithHook(sdk.KindPhysics, func() {
				initErr = m.Initialize(sdk.ModeWide)
				switchErr = m.SwitchMode(sdk.ModeWide)
				_, sceneErr = m.CreateScene()
			}))

			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())

			var stateErr *lifecycle.StateError
			Expect(errors.As(initErr, &stateErr)).To(BeTrue())
			Expect(stateErr.State).To(Equal(lifecycle.StateInitializing))
			Expect(errors.As(switchErr, &stateErr)).To(BeTrue())
			Expect(errors.As(sceneErr, &stateErr)).To(BeTrue())
			Expect(rt.Live()).To(Equal(5))
		})

		It("aborts initialization when shutdown is requested mid-way", func() {
			var shutdownErr error
			newManager(refsdk.WithHook(sdk.KindPhysics, func() {
				shutdownErr = m.Shutdown()
			}))

			err := m.Initialize(sdk.ModeWide)
			Expect(shutdownErr).NotTo(HaveOccurred())
			Expect(errors.Is(err, lifecycle.ErrAborted)).To(BeTrue())

			var initErr *lifecycle.InitError
			Expect(errors.As(err, &initErr)).To(BeTrue())
			Expect(initErr.Step).To(Equal(sdk.KindPhysics))
			Expect(m.State()).To(Equal(lifecycle.StateUninitialized))
			Expect(rt.Live()).To(BeZero())
		})
	})

	Describe("Step", func() {
		It("runs scene hooks through the dispatcher", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			var calls int32
			m.Handles().Scene.AddStepHook(func(float32) { atomic.AddInt32(&calls, 1) })

			for i := 0; i < 3; i++ {
				Expect(m.Step(1.0 / 60)).To(Succeed())
			}
			Expect(atomic.LoadInt32(&calls)).To(Equal(int32(3)))
			Expect(m.Handles().Scene.Steps()).To(Equal(3))
		})

		It("needs a ready manager with a scene", func() {
			var stateErr *lifecycle.StateError
			Expect(errors.As(m.Step(0.01), &stateErr)).To(BeTrue())

			opts.Variant = lifecycle.VariantCooking
			newManager()
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			Expect(m.Step(0.01)).To(MatchError(lifecycle.ErrNoScene))
		})

		It("surfaces invalid time steps", func() {
			Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
			Expect(m.Step(0)).To(MatchError(refsdk.ErrInvalidArgument))
		})
	})

	It("runs the end-to-end scenario with an ordered release log", func() {
		opts.Variant = lifecycle.VariantCooking
		newManager()

		Expect(m.Initialize(sdk.ModeWide)).To(Succeed())
		scene, err := m.CreateScene()
		Expect(err).NotTo(HaveOccurred())
		Expect(scene.Gravity()).To(Equal(sdk.DefaultGravity))
		Expect(m.Shutdown()).To(Succeed())

		releases := rec.Releases()
		indexOf := func(kind sdk.Kind) int {
			for i, k := range releases {
				if k == kind {
					return i
				}
			}
			return -1
		}
		Expect(indexOf(sdk.KindScene)).To(BeNumerically("<", indexOf(sdk.KindPhysics)))
		Expect(indexOf(sdk.KindPhysics)).To(BeNumerically("<", indexOf(sdk.KindFoundation)))
		Expect(indexOf(sdk.KindFoundation)).To(Equal(len(releases) - 1))
	})
})
