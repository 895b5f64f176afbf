package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/mdcore/internal/analysis"
	"github.com/san-kum/mdcore/internal/compute"
	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/experiment"
	"github.com/san-kum/mdcore/internal/export"
	"github.com/san-kum/mdcore/internal/logging"
	"github.com/san-kum/mdcore/internal/metrics"
	"github.com/san-kum/mdcore/internal/optim"
	"github.com/san-kum/mdcore/internal/restart"
	"github.com/san-kum/mdcore/internal/sim"
	"github.com/san-kum/mdcore/internal/storage"
	"github.com/san-kum/mdcore/internal/store"
	"github.com/san-kum/mdcore/internal/telemetry"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

var (
	dataDir    string
	configFile string
	preset     string

	steps       int64
	dt          float64
	temperature float64
	seed        uint64
	procs       int
	grid        []int
	driver      string
	threads     int
	thermoEvery int64
	ckptEvery   int64
	ckptKeep    int
	rdfBins     int
	rdfCutoff   float64
	msd         bool

	logLevel    string
	logJSON     bool
	logFile     string
	metricsAddr string
	quiet       bool

	outPath   string
	plotCols  []string
	fromFinal bool
	sites     int
	svgDir    string

	pairTypes  []int
	pairRange  []float64
	pairPoints int
	pairWeight float64

	runs        int
	sweepParams []string
	sweepMetric string
	workers     int
)

var presetInfo = map[string]string{
	"lj-liquid":   "fcc start melted at T=1.44, lj/cut 2.5",
	"fcc-crystal": "cold fcc crystal, shifted lj/cut with tail correction",
	"polymer":     "bead-spring chains, fene bonds and wca pairs",
	"lj-2d":       "2d hex lattice with lj/cut",
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "mdsim",
		Short:         "spatially decomposed molecular dynamics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mdsim", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	systemFlags(runCmd)
	runFlags(runCmd)

	resumeCmd := &cobra.Command{
		Use:   "resume [run_id]",
		Short: "continue a stored run from its latest checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  resumeRun,
	}
	runFlags(resumeCmd)
	resumeCmd.Flags().BoolVar(&fromFinal, "final", false, "resume from the final state instead of the latest checkpoint")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets, or print one as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot thermo output",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&plotCols, "columns", []string{"temp", "pe", "etotal", "press"}, "thermo columns to plot")
	plotCmd.Flags().StringVar(&svgDir, "svg", "", "also write one svg per column into this directory")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "block averages, spectra and structure of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	neighborsCmd := &cobra.Command{
		Use:   "neighbors",
		Short: "build the initial neighbor lists and report their statistics",
		Args:  cobra.NoArgs,
		RunE:  neighborStats,
	}
	systemFlags(neighborsCmd)

	latticeCmd := &cobra.Command{
		Use:   "lattice",
		Short: "describe the lattice and box of a configuration",
		Args:  cobra.NoArgs,
		RunE:  describeLattice,
	}
	systemFlags(latticeCmd)
	latticeCmd.Flags().IntVar(&sites, "sites", 8, "number of sites to print")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time every force driver on a configuration",
		Args:  cobra.NoArgs,
		RunE:  benchDrivers,
	}
	systemFlags(benchCmd)

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outPath, "output", "o", "-", "output file, - for stdout")

	pairCmd := &cobra.Command{
		Use:   "pair",
		Short: "tabulate the pair energy and force of two types",
		Args:  cobra.NoArgs,
		RunE:  pairCurve,
	}
	systemFlags(pairCmd)
	pairCmd.Flags().IntSliceVar(&pairTypes, "types", []int{1, 1}, "the two particle types")
	pairCmd.Flags().Float64SliceVar(&pairRange, "range", nil, "rmin,rmax; defaults to 0.8 up to the pair cutoff")
	pairCmd.Flags().IntVar(&pairPoints, "points", 40, "number of separations")
	pairCmd.Flags().Float64Var(&pairWeight, "special", 1, "special-bond weight applied to the pair")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "run replicas that differ only in the velocity seed",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	systemFlags(ensembleCmd)
	runFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&runs, "runs", 4, "number of replicas")
	ensembleCmd.Flags().IntVar(&workers, "workers", 0, "replicas run at once, 0 for all")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "scan a parameter grid and report the best setting",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	systemFlags(sweepCmd)
	runFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, fmt.Sprintf("name=v1,v2,... with name one of %v", optim.Parameters()))
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "energy_drift", "metric to minimise")
	sweepCmd.Flags().IntVar(&workers, "workers", 1, "trials run at once")

	rootCmd.AddCommand(runCmd, resumeCmd, presetsCmd, listCmd, plotCmd, analyzeCmd, neighborsCmd, latticeCmd, benchCmd, pairCmd, ensembleCmd, sweepCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red.Render("error: ")+err.Error())
		var de *dynamo.DivergenceError
		if errors.As(err, &de) {
			for _, p := range de.Particles {
				fmt.Fprintln(os.Stderr, dim.Render("  "+p.String()))
			}
		}
		os.Exit(1)
	}
}

// systemFlags are the flags that select and shape a system.
func systemFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "start from a preset configuration")
	cmd.Flags().IntVar(&procs, "procs", config.DefaultProcs, "number of ranks")
	cmd.Flags().IntSliceVar(&grid, "grid", nil, "processor grid, e.g. 2,2,1")
	cmd.Flags().StringVar(&driver, "driver", "serial", fmt.Sprintf("force driver %v", compute.Drivers()))
	cmd.Flags().IntVar(&threads, "threads", 0, "workers per rank for the threaded driver")
}

// runFlags are the flags that control a run.
func runFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&steps, "steps", config.DefaultSteps, "number of steps")
	cmd.Flags().Float64Var(&dt, "dt", 0, "timestep, 0 for the unit default")
	cmd.Flags().Float64Var(&temperature, "temp", config.DefaultTemperature, "initial temperature")
	cmd.Flags().Uint64Var(&seed, "seed", config.DefaultSeed, "velocity seed")
	cmd.Flags().Int64Var(&thermoEvery, "thermo", config.DefaultThermoEvery, "thermo output interval")
	cmd.Flags().Int64Var(&ckptEvery, "checkpoint", 0, "checkpoint interval, 0 disables")
	cmd.Flags().IntVar(&ckptKeep, "keep", 3, "checkpoints kept per run")
	cmd.Flags().IntVar(&rdfBins, "rdf-bins", 0, "sample g(r) with this many bins")
	cmd.Flags().Float64Var(&rdfCutoff, "rdf-cutoff", 2.5, "g(r) range")
	cmd.Flags().BoolVar(&msd, "msd", false, "sample the mean squared displacement")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "log as json")
	cmd.Flags().StringVar(&logFile, "log-file", "", "also log json records to this file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print thermo rows")
}

// resolveConfig applies the preset, then the config file, then every flag
// the user set. It returns the configuration and a name for the run.
func resolveConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg := config.DefaultConfig()
	name := "custom"
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, "", fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		name = preset
	}
	if configFile != "" {
		if err := config.LoadInto(configFile, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		name = strings.TrimSuffix(filepath.Base(configFile), filepath.Ext(configFile))
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, "", err
	}
	return cfg, name, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	set := func(name string) bool { return f.Lookup(name) != nil && f.Changed(name) }
	if set("procs") {
		cfg.Procs = procs
	}
	if set("grid") {
		if len(grid) != 3 {
			return fmt.Errorf("--grid needs three entries, got %v", grid)
		}
		cfg.Grid = [3]int{grid[0], grid[1], grid[2]}
	}
	if set("driver") {
		cfg.Driver = driver
	}
	if set("threads") {
		cfg.Threads = threads
	}
	if set("steps") {
		cfg.Steps = steps
	}
	if set("dt") {
		cfg.Dt = dt
	}
	if set("temp") {
		cfg.Temperature = temperature
	}
	if set("seed") {
		cfg.Seed = seed
	}
	if set("thermo") {
		cfg.ThermoEvery = thermoEvery
	}
	if set("checkpoint") {
		cfg.CheckpointEvery = ckptEvery
	}
	if set("rdf-bins") {
		cfg.Analysis.RDFBins = rdfBins
		cfg.Analysis.RDFCutoff = rdfCutoff
	}
	if set("msd") {
		cfg.Analysis.MSD = msd
	}
	if set("log-level") {
		cfg.Log.Level = logLevel
	}
	if set("log-json") {
		cfg.Log.JSON = logJSON
	}
	if set("log-file") {
		cfg.Log.File = logFile
	}
	return nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, name, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	reg := experiment.NewRegistry()
	exp, err := experiment.New(cfg, reg)
	if err != nil {
		return err
	}
	return execute(exp, reg, name, "")
}

func resumeRun(cmd *cobra.Command, args []string) error {
	prev := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(prev)
	if err != nil {
		return err
	}
	cfg, err := config.Load(st.ConfigPath(prev))
	if err != nil {
		return fmt.Errorf("failed to load config of %s: %w", prev, err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	snap, err := resumePoint(prev, st)
	if err != nil {
		return err
	}
	fmt.Println(dim.Render(fmt.Sprintf("resuming %s from step %d", prev, snap.Step)))

	reg := experiment.NewRegistry()
	exp, err := experiment.Resume(cfg, reg, snap)
	if err != nil {
		return err
	}
	return execute(exp, reg, meta.Experiment, prev)
}

// resumePoint returns the latest checkpoint of a run, or its final state
// when it has none or --final is set.
func resumePoint(runID string, st *storage.Store) (*restart.Snapshot, error) {
	if !fromFinal {
		ck, err := store.Open(store.Config{Path: checkpointDir()})
		if err != nil {
			return nil, err
		}
		defer ck.Close()
		snap, err := ck.Latest(runID)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return st.LoadSnapshot(runID)
}

func checkpointDir() string { return filepath.Join(dataDir, "checkpoints") }

// execute runs exp with logging, telemetry and checkpoints attached and
// stores the outcome.
func execute(exp *experiment.Experiment, reg *experiment.Registry, name, resumedFrom string) error {
	cfg := exp.Config()
	logger, closeLog, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID := storage.NewID()

	if err := exp.Setup(reg.DefaultMetrics(cfg)); err != nil {
		return err
	}
	s := exp.GetSimulator()
	s.SetRunID(runID)
	s.SetLogger(logger)

	rec := telemetry.New()
	s.SetTelemetry(rec)
	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, rec, logger)
		defer srv.Shutdown(context.Background())
	}

	if cfg.CheckpointEvery > 0 {
		ck, err := store.Open(store.Config{Path: checkpointDir(), Logger: logger, Keep: ckptKeep})
		if err != nil {
			return err
		}
		defer ck.Close()
		s.SetCheckpointer(ck)
	}

	if !quiet {
		fmt.Println(thermoHeader())
		s.AddObserver(sim.ObserverFunc(func(smp metrics.Sample) { fmt.Println(thermoRow(smp)) }))
	}

	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	sys := exp.System()
	simCfg := exp.SimConfig()
	set, err := sys.Forces()
	if err != nil {
		return err
	}
	meta := storage.RunMetadata{
		ID:          runID,
		Experiment:  name,
		Seed:        simCfg.Seed,
		Dt:          simCfg.Dt,
		Steps:       simCfg.Steps,
		Units:       cfg.Units,
		Dimension:   cfg.Dimension,
		Natoms:      int64(len(sys.Atoms)),
		Procs:       result.Grid,
		Driver:      cfg.Driver,
		Potentials:  set.Names(),
		Builds:      result.Neighbor.Builds,
		Dangerous:   result.Neighbor.Dangerous,
		ResumedFrom: resumedFrom,
		Metrics:     result.Metrics,
	}
	if _, err := st.Save(meta, result.Thermo); err != nil {
		return err
	}
	if err := saveExtras(st, runID, cfg, result); err != nil {
		return err
	}

	kv := [][2]string{
		{"run id", runID},
		{"steps", fmt.Sprintf("%d → %d", sys.Step, result.Final.Step)},
		{"atoms", fmt.Sprint(meta.Natoms)},
		{"grid", fmt.Sprint(result.Grid)},
		{"elapsed", result.Elapsed.Round(time.Millisecond).String()},
		{"neighbor builds", fmt.Sprintf("%d (%d dangerous)", result.Neighbor.Builds, result.Neighbor.Dangerous)},
		{"atoms exchanged", fmt.Sprint(result.Exchanged)},
	}
	for _, m := range reg.ListMetrics() {
		if v, ok := result.Metrics[m]; ok {
			kv = append(kv, [2]string{m, fmt.Sprintf("%.6g", v)})
		}
	}
	fmt.Println(summary("completed", kv))
	return nil
}

func saveExtras(st *storage.Store, runID string, cfg *config.Config, res *sim.Result) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := st.SaveConfig(runID, data); err != nil {
		return err
	}
	if err := st.SaveSnapshot(runID, res.Final); err != nil {
		return err
	}
	if res.RDF != nil {
		r, g := res.RDF.Result()
		if err := st.SaveSeries(runID, "rdf", []string{"r", "g"}, r, g); err != nil {
			return err
		}
	}
	if len(res.MSD) > 0 {
		var step, tm, v []float64
		for _, p := range res.MSD {
			step = append(step, float64(p.Step))
			tm = append(tm, p.Time)
			v = append(v, p.MSD)
		}
		if err := st.SaveSeries(runID, "msd", []string{"step", "time", "msd"}, step, tm, v); err != nil {
			return err
		}
	}
	return nil
}

func serveMetrics(addr string, rec *telemetry.Recorder, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}

func showPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION")
		for _, p := range config.ListPresets() {
			fmt.Fprintf(w, "%s\t%s\n", p, presetInfo[p])
		}
		return w.Flush()
	}
	cfg := config.GetPreset(args[0])
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEXPERIMENT\tTIME\tSTEPS\tATOMS\tGRID\tDRIVER\tDRIFT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%dx%dx%d\t%s\t%.3g\n",
			run.ID,
			run.Experiment,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Steps,
			run.Natoms,
			run.Procs[0], run.Procs[1], run.Procs[2],
			run.Driver,
			run.Metrics["energy_drift"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	cols, err := st.LoadThermo(runID)
	if err != nil {
		return err
	}
	if len(cols["step"]) < 2 {
		return fmt.Errorf("not enough thermo rows to plot")
	}

	fmt.Println(title.Render(fmt.Sprintf("run %s (%s)", meta.ID, meta.Experiment)))
	fmt.Println(dim.Render(fmt.Sprintf("samples: %d\n", len(cols["step"]))))

	for _, c := range plotCols {
		data, ok := cols[c]
		if !ok {
			return fmt.Errorf("unknown column %q (have %v)", c, metrics.Columns())
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(c+" vs step"),
		)
		fmt.Println(graph)
		fmt.Println()

		if svgDir != "" {
			svg := export.PlotSVG([]export.Series{{Name: c, X: cols["step"], Y: data}}, 800, 300,
				fmt.Sprintf("%s %s vs step", meta.ID, c))
			path := filepath.Join(svgDir, fmt.Sprintf("%s-%s.svg", meta.ID, c))
			if err := os.MkdirAll(svgDir, 0755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
				return err
			}
			fmt.Println(dim.Render("wrote " + path))
		}
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	cols, err := st.LoadThermo(runID)
	if err != nil {
		return err
	}
	times := cols["time"]
	if len(times) < 8 {
		return fmt.Errorf("need at least 8 thermo rows, got %d", len(times))
	}
	interval := times[1] - times[0]

	var kv [][2]string
	for _, c := range []string{"temp", "pe", "etotal", "press"} {
		mean, se := analysis.BlockAverage(cols[c], 5)
		kv = append(kv, [2]string{c, fmt.Sprintf("%.6g ± %.2g", mean, se)})
	}
	kv = append(kv, [2]string{"temp frequency", fmt.Sprintf("%.4g", analysis.DominantFrequency(cols["temp"], interval))})
	fmt.Println(summary("thermo averages", kv))

	_, power := analysis.Spectrum(cols["temp"], interval)
	if len(power) > 1 {
		fmt.Println(asciigraph.Plot(power[1:],
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.Caption("power spectrum (temp)"),
		))
		fmt.Println()
	}

	if rdf, _, err := st.LoadSeries(runID, "rdf"); err == nil {
		r, g := rdf["r"], rdf["g"]
		peak := 0
		for k := range g {
			if g[k] > g[peak] {
				peak = k
			}
		}
		fmt.Println(asciigraph.Plot(g,
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("g(r), first peak %.3g at r=%.3g", g[peak], r[peak])),
		))
		fmt.Println()
	}

	if series, _, err := st.LoadSeries(runID, "msd"); err == nil {
		var pts []analysis.MSDPoint
		for k := range series["msd"] {
			pts = append(pts, analysis.MSDPoint{Step: int64(series["step"][k]), Time: series["time"][k], MSD: series["msd"][k]})
		}
		d := meta.Dimension
		if d == 0 {
			d = 3
		}
		fmt.Println(summary("diffusion", [][2]string{
			{"final msd", fmt.Sprintf("%.6g", pts[len(pts)-1].MSD)},
			{"D", fmt.Sprintf("%.6g", analysis.Diffusion(pts, d))},
		}))
	}
	return nil
}

func neighborStats(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Steps = 0
	reg := experiment.NewRegistry()
	exp, err := experiment.New(cfg, reg)
	if err != nil {
		return err
	}
	if err := exp.Setup(nil); err != nil {
		return err
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		return err
	}
	natoms := float64(len(exp.System().Atoms))
	n := cfg.NeighborConfig()
	fmt.Println(summary("neighbor lists", [][2]string{
		{"style", fmt.Sprintf("%s, newton %v", n.Style, n.Newton)},
		{"cutoff + skin", fmt.Sprintf("%g + %g", n.Cutoff, n.Skin)},
		{"grid", fmt.Sprint(res.Grid)},
		{"total neighbors", fmt.Sprint(res.Pairs)},
		{"neighbors/atom", fmt.Sprintf("%.4g", float64(res.Pairs)/natoms)},
		{"ghost atoms", fmt.Sprint(res.Ghosts)},
		{"ghosts/atom", fmt.Sprintf("%.4g", float64(res.Ghosts)/natoms)},
	}))
	return nil
}

func describeLattice(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	l, err := experiment.Lattice(cfg)
	if err != nil {
		return err
	}
	b, err := experiment.Box(cfg, l)
	if err != nil {
		return err
	}
	pts := l.Sites(b)
	fmt.Println(summary("lattice", [][2]string{
		{"lattice", l.String()},
		{"box lo", fmt.Sprintf("%.6g %.6g %.6g", b.Lo.X, b.Lo.Y, b.Lo.Z)},
		{"box hi", fmt.Sprintf("%.6g %.6g %.6g", b.Hi.X, b.Hi.Y, b.Hi.Z)},
		{"tilt", fmt.Sprintf("%g %g %g", b.XY, b.XZ, b.YZ)},
		{"volume", fmt.Sprintf("%.6g", b.Volume())},
		{"sites", fmt.Sprint(len(pts))},
		{"density", fmt.Sprintf("%.6g", float64(len(pts))/b.Volume())},
	}))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SITE\tBASIS\tX\tY\tZ")
	for k := 0; k < min(sites, len(pts)); k++ {
		p := pts[k]
		fmt.Fprintf(w, "%d\t%d\t%.6g\t%.6g\t%.6g\n", k+1, p.Basis, p.X.X, p.X.Y, p.X.Z)
	}
	return w.Flush()
}

func benchDrivers(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("steps") {
		cfg.Steps = 100
	}
	cfg.ThermoEvery = 0

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DRIVER\tSTEPS\tTOTAL\tPER STEP\tATOM-STEPS/S")
	for _, name := range compute.Drivers() {
		cfg.Driver = name
		reg := experiment.NewRegistry()
		exp, err := experiment.New(cfg, reg)
		if err != nil {
			return err
		}
		if err := exp.Setup(nil); err != nil {
			return err
		}
		res, err := exp.Run(context.Background())
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		n := float64(len(exp.System().Atoms))
		per := res.Elapsed / time.Duration(max(cfg.Steps, 1))
		rate := n * float64(cfg.Steps) / res.Elapsed.Seconds()
		fmt.Fprintf(w, "%s\t%d\t%v\t%v\t%.3g\n", name, cfg.Steps, res.Elapsed.Round(time.Millisecond), per, rate)
	}
	return w.Flush()
}

func pairCurve(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if len(pairTypes) != 2 {
		return fmt.Errorf("--types needs two entries, got %v", pairTypes)
	}
	ti, tj := pairTypes[0], pairTypes[1]
	for _, ty := range pairTypes {
		if ty < 1 || ty > cfg.Types {
			return fmt.Errorf("type %d out of range 1..%d", ty, cfg.Types)
		}
	}
	if pairPoints < 2 {
		return fmt.Errorf("--points must be at least 2")
	}

	forces, err := experiment.NewRegistry().Forces(cfg)
	if err != nil {
		return err
	}
	set, err := forces()
	if err != nil {
		return err
	}
	if err := set.Init(); err != nil {
		return err
	}

	rmin, rmax := 0.8, set.Cutoff()
	if len(pairRange) == 2 {
		rmin, rmax = pairRange[0], pairRange[1]
	}
	if !(rmax > rmin) || rmin <= 0 {
		return fmt.Errorf("bad range %g..%g", rmin, rmax)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "R\tENERGY\tFORCE\tTERMS")
	energies := make([]float64, 0, pairPoints)
	lowest := 0.0
	for k := 0; k < pairPoints; k++ {
		r := rmin + (rmax-rmin)*float64(k)/float64(pairPoints-1)
		e, f, terms := set.Single(ti, tj, r*r, pairWeight)
		fmt.Fprintf(w, "%.4f\t%.6g\t%.6g\t%s\n", r, e, f*r, strings.Join(terms, ","))
		energies = append(energies, e)
		lowest = min(lowest, e)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// Clip the repulsive wall so the well stays visible.
	ceiling := max(1, -2*lowest)
	for k := range energies {
		energies[k] = min(energies[k], ceiling)
	}
	fmt.Println(asciigraph.Plot(energies,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("E(r) for types %d-%d, r %.3g..%.3g", ti, tj, rmin, rmax)),
	))
	return nil
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	reg := experiment.NewRegistry()
	exp, err := experiment.New(cfg, reg)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ens := sim.NewEnsemble(exp.System(), exp.SimConfig(), runs, cfg.Seed)
	ens.SetLimit(workers)
	ens.OnCreate(func(i int, s *sim.Simulator) {
		for _, m := range reg.DefaultMetrics(cfg) {
			s.AddMetric(m)
		}
	})
	results, err := ens.Run(ctx)
	if err != nil {
		return err
	}

	names := reg.ListMetrics()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\t"+strings.ToUpper(strings.Join(names, "\t")))
	values := make([][]float64, len(names))
	for i, res := range results {
		row := []string{fmt.Sprint(cfg.Seed + uint64(i))}
		for k, name := range names {
			v := res.Metrics[name]
			values[k] = append(values[k], v)
			row = append(row, fmt.Sprintf("%.6g", v))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	var kv [][2]string
	for k, name := range names {
		mean, std := stat.MeanStdDev(values[k], nil)
		kv = append(kv, [2]string{name, fmt.Sprintf("%.6g ± %.2g", mean, std)})
	}
	fmt.Println(summary(fmt.Sprintf("ensemble of %d", len(results)), kv))
	return nil
}

func parseSweep(specs []string) ([]string, [][]float64, error) {
	if len(specs) == 0 {
		return nil, nil, fmt.Errorf("no --param given")
	}
	var names []string
	var ranges [][]float64
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, nil, fmt.Errorf("bad --param %q, want name=v1,v2", spec)
		}
		var vals []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("bad value in --param %q: %w", spec, err)
			}
			vals = append(vals, v)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	names, ranges, err := parseSweep(sweepParams)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g := optim.NewGridSearch(names, ranges)
	g.SetWorkers(workers)
	best, trials, err := g.Search(ctx, func(params map[string]float64) (*experiment.Experiment, error) {
		cfg, err := optim.Apply(base, params)
		if err != nil {
			return nil, err
		}
		reg := experiment.NewRegistry()
		exp, err := experiment.New(cfg, reg)
		if err != nil {
			return nil, err
		}
		if err := exp.Setup(reg.DefaultMetrics(cfg)); err != nil {
			return nil, err
		}
		return exp, nil
	}, sweepMetric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(sweepMetric))
	for _, t := range trials {
		var row []string
		for _, n := range names {
			row = append(row, fmt.Sprintf("%g", t.Params[n]))
		}
		if t.Err != nil {
			row = append(row, red.Render("failed: "+t.Err.Error()))
		} else {
			row = append(row, fmt.Sprintf("%.6g", t.Value))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	kv := [][2]string{{sweepMetric, fmt.Sprintf("%.6g", best.Value)}}
	for _, n := range names {
		kv = append(kv, [2]string{n, fmt.Sprintf("%g", best.Params[n])})
	}
	fmt.Println(summary("best setting", kv))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	return st.ExportJSON(args[0], outPath)
}
