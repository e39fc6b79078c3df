package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/pxwrap/internal/config"
	"github.com/san-kum/pxwrap/internal/lifecycle"
	"github.com/san-kum/pxwrap/internal/logging"
	"github.com/san-kum/pxwrap/internal/metrics"
	"github.com/san-kum/pxwrap/internal/refsdk"
	"github.com/san-kum/pxwrap/internal/sdk"
	"github.com/san-kum/pxwrap/internal/trace"
	"github.com/san-kum/pxwrap/internal/tui"
	"github.com/san-kum/pxwrap/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	mode       string
	variant    string
	steps      int
	dt         float64
	workers    int
	noDebugger bool
	logLevel   string
	devLog     bool
	theme      string
)

var (
	actors      int
	metricsAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "pxwrap",
		Short:        "physics sdk lifecycle manager",
		SilenceUsage: true,
		RunE:         runConsole,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", "", "data directory (default from config)")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "use preset configuration")
	pf.StringVar(&mode, "mode", "", "wide, narrow or auto")
	pf.StringVar(&variant, "variant", "", "simulation or cooking")
	pf.IntVar(&workers, "workers", 0, "dispatcher worker threads")
	pf.BoolVar(&noDebugger, "no-debugger", false, "skip the debugger connection")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&devLog, "dev-log", false, "human readable logs")
	pf.StringVar(&theme, "theme", "", "color theme")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "initialize, step the scene, shut down and record the run",
		RunE:  runLifecycle,
	}
	runCmd.Flags().IntVar(&steps, "steps", -1, "scene steps to simulate")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "step length in seconds")
	runCmd.Flags().IntVar(&actors, "actors", 0, "actors to add to the scene before stepping")

	switchCmd := &cobra.Command{
		Use:   "switch [mode]",
		Short: "initialize, then switch to another mode",
		Args:  cobra.ExactArgs(1),
		RunE:  switchMode,
	}

	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "print the mode of this binary",
		RunE:  detect,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a run's lifecycle events",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a run's step times",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVARIANT\tWORKERS\tDEBUGGER\tSTEPS")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%d\n", name, p.Variant, p.Workers, p.Debugger.Enabled, p.Steps)
			}
			return w.Flush()
		},
	}

	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "interactive lifecycle console",
		RunE:  runConsole,
	}
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	consoleCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id] [path]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(2),
		RunE:  exportJSON,
	}

	rootCmd.AddCommand(runCmd, switchCmd, detectCmd, listCmd, showCmd, plotCmd, presetsCmd, consoleCmd, exportJSONCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves preset, then config file, then flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", preset)
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("variant") {
		cfg.Variant = variant
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if noDebugger {
		cfg.Debugger.Enabled = false
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if devLog {
		cfg.Log.Development = true
	}
	if flags.Lookup("steps") != nil && flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Lookup("dt") != nil && flags.Changed("dt") {
		cfg.Dt = dt
	}
	if theme != "" {
		viz.SetTheme(theme)
	}
	return cfg, cfg.Validate()
}

type session struct {
	cfg       *config.Config
	log       *zap.Logger
	rec       *trace.Recorder
	collector *metrics.Collector
	alloc     *sdk.HeapAllocator
	mgr       *lifecycle.Manager
	mode      sdk.Mode
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	opts, err := cfg.Options(log)
	if err != nil {
		return nil, err
	}
	rec := trace.NewRecorder()
	collector := metrics.NewCollector("pxwrap")
	opts.Observers = []lifecycle.Observer{rec, collector}

	m, _ := cfg.ParseMode()
	alloc, _ := opts.Allocator.(*sdk.HeapAllocator)
	return &session{
		cfg:       cfg,
		log:       log,
		rec:       rec,
		collector: collector,
		alloc:     alloc,
		mgr:       lifecycle.New(refsdk.New(), opts),
		mode:      m,
	}, nil
}

func runLifecycle(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.log.Sync()

	stepTime := metrics.NewStepTime()
	runErr := s.simulate(stepTime)

	meta := trace.RunMetadata{
		SDK:     "reference",
		Mode:    s.mode.String(),
		Variant: s.cfg.Variant,
		Workers: s.cfg.Workers,
		Gravity: s.cfg.Gravity,
		Steps:   len(stepTime.Samples()),
		Dt:      s.cfg.Dt,
		StepMs:  stepTime.Samples(),
		Metrics: s.collector.Summary(),
	}
	meta.Metrics[stepTime.Name()] = stepTime.Value()
	if s.alloc != nil {
		meta.Metrics["allocations"] = float64(s.alloc.Allocations())
		meta.Metrics["leaked_blocks"] = float64(s.alloc.LiveBlocks())
		meta.Metrics["leaked_bytes"] = float64(s.alloc.LiveBytes())
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}

	st := trace.New(s.cfg.DataDir)
	if err := st.Init(); err != nil {
		return errors.Join(runErr, err)
	}
	runID, err := st.Save(meta, s.rec.Events())
	if err != nil {
		return errors.Join(runErr, err)
	}

	fmt.Printf("run: %s\n", runID)
	fmt.Printf("steps: %d  mean step: %.3fms  max: %.3fms\n", meta.Steps, stepTime.Value(), stepTime.Max())
	fmt.Printf("created: %.0f  released: %.0f\n", meta.Metrics["created"], meta.Metrics["released"])
	if n := meta.Metrics["leaked_blocks"]; n > 0 {
		fmt.Printf("leaked: %.0f blocks, %.0f bytes\n", n, meta.Metrics["leaked_bytes"])
	}
	return runErr
}

func (s *session) simulate(stepTime *metrics.StepTime) error {
	if err := s.mgr.Initialize(s.mode); err != nil {
		return err
	}

	var errs []error
	if (s.cfg.Steps > 0 || actors > 0) && s.mgr.Handles().Scene == nil {
		if _, err := s.mgr.CreateScene(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := 0; i < actors && len(errs) == 0; i++ {
		if _, err := s.mgr.CreateActor(sdk.At(sdk.Vec3{Y: float32(i + 1)})); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		for i := 0; i < s.cfg.Steps; i++ {
			start := time.Now()
			if err := s.mgr.Step(float32(s.cfg.Dt)); err != nil {
				errs = append(errs, fmt.Errorf("step %d: %w", i, err))
				break
			}
			elapsed := time.Since(start)
			stepTime.Observe(elapsed)
			s.collector.ObserveStep(elapsed.Seconds())
		}
	}

	fmt.Println(viz.RenderHandles(s.mgr.Handles(), s.mgr.State(), s.mgr.Mode()))

	if err := s.mgr.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func switchMode(cmd *cobra.Command, args []string) error {
	target, err := sdk.ParseMode(args[0])
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.log.Sync()
	defer s.mgr.Shutdown()

	if err := s.mgr.Initialize(s.mode); err != nil {
		return err
	}
	switchErr := s.mgr.SwitchMode(target)

	fmt.Print(viz.RenderEvents(s.rec.Events()))
	fmt.Println(viz.RenderHandles(s.mgr.Handles(), s.mgr.State(), s.mgr.Mode()))

	var unsupported *lifecycle.UnsupportedModeError
	if errors.As(switchErr, &unsupported) {
		fmt.Printf("%s mode is not implemented; handles were left in place\n", unsupported.Mode)
	}
	return switchErr
}

func detect(cmd *cobra.Command, args []string) error {
	m := sdk.DetectMode()
	fmt.Printf("mode: %s\n", m)
	fmt.Printf("pointer width: %d bits\n", m.Bits())
	fmt.Printf("allocation alignment: %d bytes\n", sdk.Alignment(m))
	if m != sdk.ModeWide {
		fmt.Println("this mode is not supported by the lifecycle manager")
	}
	return nil
}

func store(cmd *cobra.Command) (*trace.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return trace.New(cfg.DataDir), nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := store(cmd)
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVARIANT\tMODE\tTIME\tSTEPS\tSTEP_MS\tERROR")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.3f\t%s\n",
			run.ID,
			run.Variant,
			run.Mode,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Steps,
			run.Metrics["step_time_ms"],
			run.Error,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st, err := store(cmd)
	if err != nil {
		return err
	}
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	events, err := st.LoadEvents(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("sdk: %s  mode: %s  variant: %s  workers: %d\n", meta.SDK, meta.Mode, meta.Variant, meta.Workers)
	if meta.Error != "" {
		fmt.Printf("error: %s\n", meta.Error)
	}
	fmt.Println()
	fmt.Print(viz.RenderEvents(events))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, err := store(cmd)
	if err != nil {
		return err
	}
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("steps: %d  dt: %.4fs\n\n", meta.Steps, meta.Dt)
	fmt.Println(viz.PlotStepTimes(meta.StepMs, 80, 10))
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st, err := store(cmd)
	if err != nil {
		return err
	}
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	events, err := st.LoadEvents(args[0])
	if err != nil {
		return err
	}
	if err := trace.ExportJSON(args[1], *meta, events); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", meta.ID, args[1])
	return nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	// zap output would tear the alt screen
	s.log = zap.NewNop()
	opts, err := s.cfg.Options(s.log)
	if err != nil {
		return err
	}
	opts.Observers = []lifecycle.Observer{s.rec, s.collector}
	s.mgr = lifecycle.New(refsdk.New(), opts)

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: s.collector.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	return tui.RunConsole(s.mgr, s.rec, float32(s.cfg.Dt))
}
