// Package viz renders lifecycle state for the terminal.
//
// Renderers:
//
//   - [RenderHandles]: table of the manager's handle slots
//   - [RenderEvents]: ordered create/release/state log of a run
//   - [PlotStepTimes]: asciigraph plot of per-step wall time
//   - [SparklineChart]: compact one-line trend
//
// Colors come from the current [Palette]: terminal, light or signal.
package viz
