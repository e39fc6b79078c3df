// Package refsdk is an in-process implementation of [sdk.SDK].
//
// It computes no physics. It exists so the lifecycle around the SDK can be
// run and inspected without native libraries:
//
//   - every handle gets a fresh uuid identity and a block from the
//     foundation's allocator, freed on release
//   - releasing a handle that still has live dependents, or releasing it
//     twice, fails and is reported through the foundation's error callback
//   - the dispatcher is a real fixed-size worker pool
//   - scenes fan registered step hooks out across their dispatcher
//
// Construction failures can be injected per handle kind:
//
//	rt := refsdk.New(refsdk.WithNullHandle(sdk.KindScene))
package refsdk
