package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/pxwrap/internal/lifecycle"
	"github.com/san-kum/pxwrap/internal/metrics"
	"github.com/san-kum/pxwrap/internal/sdk"
	"github.com/san-kum/pxwrap/internal/trace"
	"github.com/san-kum/pxwrap/internal/viz"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

const (
	maxHistory   = 60
	eventsShown  = 8
	defaultWidth = 80
)

// Console is a bubbletea model that drives a Manager from the keyboard.
type Console struct {
	mgr *lifecycle.Manager
	rec *trace.Recorder
	dt  float32

	steps    *metrics.StepTime
	status   string
	err      error
	theme    int
	quitting bool

	width  int
	height int
}

// NewConsole returns a console for m. rec must be one of m's observers for
// the event panel to show anything.
func NewConsole(m *lifecycle.Manager, rec *trace.Recorder, dt float32) Console {
	if dt <= 0 {
		dt = 1.0 / 60
	}
	return Console{
		mgr:    m,
		rec:    rec,
		dt:     dt,
		steps:  metrics.NewStepTime(),
		status: "press i to initialize",
		width:  defaultWidth,
		height: 24,
	}
}

func (c Console) Init() tea.Cmd { return nil }

func (c Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return c.handleKey(msg)
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
	}
	return c, nil
}

func (c Console) handleKey(msg tea.KeyMsg) (Console, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		c.quitting = true
		c = c.report("shutdown", c.mgr.Shutdown())
		return c, tea.Quit
	case "i":
		c = c.report("initialize", c.mgr.InitializeAuto())
	case "s":
		c = c.report("shutdown", c.mgr.Shutdown())
	case "w":
		c = c.report("upgrade to wide", c.mgr.UpgradeToWide())
	case "n":
		c = c.report("downgrade to narrow", c.mgr.DowngradeToNarrow())
	case "r":
		err := c.mgr.Reload()
		if err == nil {
			c.steps.Reset()
		}
		c = c.report("reload", err)
	case "c":
		_, err := c.mgr.CreateScene()
		if err == nil {
			c.steps.Reset()
		}
		c = c.report("create scene", err)
	case "a":
		height := float32(len(c.mgr.Handles().Actors) + 1)
		_, err := c.mgr.CreateActor(sdk.At(sdk.Vec3{Y: height}))
		c = c.report("create actor", err)
	case "x":
		if c.rec != nil {
			c.rec.Reset()
		}
		c.status = "event log cleared"
		c.err = nil
	case " ":
		start := time.Now()
		err := c.mgr.Step(c.dt)
		if err == nil {
			c.steps.Observe(time.Since(start))
		}
		c = c.report("step", err)
	case "t":
		names := viz.ThemeNames()
		c.theme = (c.theme + 1) % len(names)
		viz.SetTheme(names[c.theme])
		c.status = "theme " + names[c.theme]
		c.err = nil
	}
	return c, nil
}

func (c Console) report(op string, err error) Console {
	c.err = err
	if err != nil {
		c.status = op + " failed"
		return c
	}
	c.status = op + " ok"
	return c
}

// Err is the error from the most recent operation.
func (c Console) Err() error { return c.err }

func (c Console) View() string {
	if c.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n  " + cyan.Render("p x w r a p") + "  " + dim.Render("lifecycle console") + "\n\n")
	b.WriteString(indent(viz.RenderHandles(c.mgr.Handles(), c.mgr.State(), c.mgr.Mode())) + "\n\n")

	if c.rec != nil {
		events := c.rec.Events()
		if len(events) > eventsShown {
			events = events[len(events)-eventsShown:]
		}
		b.WriteString(indent(viz.RenderEvents(events)) + "\n")
	}

	if samples := c.steps.Samples(); len(samples) > 0 {
		if len(samples) > maxHistory {
			samples = samples[len(samples)-maxHistory:]
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n\n",
			dim.Render("step"), viz.SparklineChart(samples, 24),
			dim.Render(fmt.Sprintf("%.3fms avg %.3fms", samples[len(samples)-1], c.steps.Value()))))
	}

	if c.err != nil {
		b.WriteString("  " + red.Render(c.status) + "  " + dim.Render(describe(c.err)) + "\n")
	} else {
		b.WriteString("  " + green.Render(c.status) + "\n")
	}

	b.WriteString("\n" + dimmer.Render("  i init  s shutdown  w wide  n narrow  c scene  a actor  space step  r reload  x clear  t theme  q quit") + "\n")
	return b.String()
}

func describe(err error) string {
	var unsupported *lifecycle.UnsupportedModeError
	var state *lifecycle.StateError
	switch {
	case errors.As(err, &unsupported):
		return fmt.Sprintf("%s mode is not implemented", unsupported.Mode)
	case errors.As(err, &state) && state.During != "":
		return fmt.Sprintf("not allowed during %s", state.During)
	case errors.As(err, &state):
		return fmt.Sprintf("not allowed while %s", state.State)
	case errors.Is(err, lifecycle.ErrNoScene):
		return "no scene, press c"
	}
	return err.Error()
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

// RunConsole runs the console until the user quits. The manager is shut
// down on exit.
func RunConsole(m *lifecycle.Manager, rec *trace.Recorder, dt float32) error {
	p := tea.NewProgram(NewConsole(m, rec, dt), tea.WithAltScreen())
	_, err := p.Run()
	if shutdownErr := m.Shutdown(); shutdownErr != nil {
		return errors.Join(err, shutdownErr)
	}
	return err
}
