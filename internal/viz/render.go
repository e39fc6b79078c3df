package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pxwrap/internal/lifecycle"
	"github.com/san-kum/pxwrap/internal/sdk"
	"github.com/san-kum/pxwrap/internal/trace"
)

// RenderHandles draws one row per handle slot in creation order, then the
// actor count. Empty slots are dimmed.
func RenderHandles(h lifecycle.Handles, state lifecycle.State, mode sdk.Mode) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s %s  %s\n",
		StateIcon(state), StateStyle(state).Render(state.String()), MetricLabel.Render("mode "+mode.String())))
	b.WriteString(Separator(48) + "\n")

	ids := h.IDs()
	for _, kind := range sdk.Kinds {
		if kind == sdk.KindActor {
			continue
		}
		id, ok := ids[kind]
		name := fmt.Sprintf("%-11s", kind)
		if !ok {
			b.WriteString("  " + Subtle.Render(name+"-") + "\n")
			continue
		}
		b.WriteString("  " + MetricLabel.Render(name) + MetricValue.Render(shortID(id)) + detail(h, kind) + "\n")
	}

	if n := len(h.Actors); n > 0 {
		b.WriteString("  " + MetricLabel.Render(fmt.Sprintf("%-11s%d", "actors", n)) + "\n")
	} else {
		b.WriteString("  " + Subtle.Render(fmt.Sprintf("%-11s-", "actors")) + "\n")
	}

	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

func detail(h lifecycle.Handles, kind sdk.Kind) string {
	var s string
	switch kind {
	case sdk.KindDispatcher:
		s = fmt.Sprintf("workers=%d", h.Dispatcher.Workers())
	case sdk.KindDebugger:
		s = h.Debugger.Endpoint()
	case sdk.KindPhysics:
		t := h.Physics.Tolerances()
		s = fmt.Sprintf("length=%g speed=%g", t.Length, t.Speed)
	case sdk.KindScene:
		s = fmt.Sprintf("gravity=%s steps=%d", h.Scene.Gravity(), h.Scene.Steps())
	case sdk.KindFoundation:
		s = fmt.Sprintf("version=%#x", h.Foundation.Version())
	}
	if s == "" {
		return ""
	}
	return "  " + Subtle.Render(s)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RenderEvents draws a run's event log, one line per event.
func RenderEvents(events []trace.Event) string {
	if len(events) == 0 {
		return Subtle.Render("no events")
	}

	create := lipgloss.NewStyle().Foreground(CurrentTheme.Create)
	release := lipgloss.NewStyle().Foreground(CurrentTheme.Release)
	failed := lipgloss.NewStyle().Foreground(CurrentTheme.Failure)

	var b strings.Builder
	for _, e := range events {
		seq := Subtle.Render(fmt.Sprintf("%3d ", e.Seq))
		switch e.Type {
		case trace.EventCreate:
			b.WriteString(seq + create.Render("+ "+string(e.Kind)) + " " + Subtle.Render(shortID(e.ID)))
		case trace.EventRelease:
			line := release.Render("- " + string(e.Kind))
			if e.Err != "" {
				line = failed.Render("! "+string(e.Kind)) + " " + failed.Render(e.Err)
			}
			b.WriteString(seq + line + " " + Subtle.Render(shortID(e.ID)))
		case trace.EventState:
			b.WriteString(seq + MetricLabel.Render(e.From+" → ") + Title.Render(e.To))
			if e.Mode != "" && e.Mode != sdk.ModeUnknown.String() {
				b.WriteString(" " + Subtle.Render("("+e.Mode+")"))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// PlotStepTimes plots per-step wall time in milliseconds.
func PlotStepTimes(ms []float64, width, height int) string {
	if len(ms) == 0 {
		return Subtle.Render("no steps recorded")
	}
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 10
	}
	return asciigraph.Plot(ms,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption("step time (ms)"),
	)
}
