package main

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cubature/internal/ckf"
	"github.com/banshee-data/cubature/internal/config"
	"github.com/banshee-data/cubature/internal/db"
	"github.com/banshee-data/cubature/internal/fsutil"
	"github.com/banshee-data/cubature/internal/monitoring"
	"github.com/banshee-data/cubature/internal/simulate"
	"github.com/banshee-data/cubature/internal/timeutil"
)

// options are the command-line settings of one run.
type options struct {
	ConfigPath string
	DBPath     string
	OutPath    string
	Steps      int   // < 0 keeps the config value
	Seed       int64 // < 0 keeps the config value
	Linear     bool
	Quiet      bool

	Clock timeutil.Clock
	FS    fsutil.FileSystem
}

// summary is what a finished run reports.
type summary struct {
	RunID            string
	MotionModel      string
	MeasurementModel string
	Linear           bool
	Cycles           int
	RMSE             float64
	MaxError         float64
	Elapsed          time.Duration
	Final            ckf.Snapshot
	Truth            []float64
}

// progressEvery is the number of log lines a run emits at most.
const progressEvery = 10

func run(ctx context.Context, opts options) (*summary, error) {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	start := opts.Clock.Now()

	cfg, err := config.LoadFilterConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, opts)

	filterCfg, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}
	filter, err := ckf.New(filterCfg)
	if err != nil {
		return nil, fmt.Errorf("create filter: %w", err)
	}

	n := filterCfg.Motion.StateDim()
	o := filterCfg.Measurement.MeasurementDim()
	truth, err := cfg.GetTruthState(n)
	if err != nil {
		return nil, err
	}
	simNoise, err := cfg.GetSimulationNoise(o)
	if err != nil {
		return nil, fmt.Errorf("simulation_noise: %w", err)
	}
	samples, err := simulate.Run(simulate.Scenario{
		Motion:      filterCfg.Motion,
		Measurement: filterCfg.Measurement,
		Initial:     truth,
		DT:          cfg.GetDT(),
		Steps:       cfg.GetSteps(),
		Noise:       simNoise,
		Seed:        cfg.GetSeed(),
	})
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	sum := &summary{
		MotionModel:      cfg.GetMotionModel(),
		MeasurementModel: cfg.GetMeasurementModel(),
		Linear:           cfg.GetLinearUpdate(),
		Final:            filter.Snapshot(),
		Truth:            truth,
	}

	var rec *db.RunRecorder
	if opts.DBPath != "" {
		store, err := db.NewDBWithClock(opts.DBPath, opts.Clock)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		defer store.Close()
		rec, err = store.CreateRun(ctx, db.RunParams{
			MotionModel:      sum.MotionModel,
			MeasurementModel: sum.MeasurementModel,
			LinearUpdate:     sum.Linear,
			DT:               cfg.GetDT(),
			Steps:            cfg.GetSteps(),
			Seed:             cfg.GetSeed(),
			Config:           cfg,
		})
		if err != nil {
			return nil, err
		}
		sum.RunID = rec.RunID()
	}

	var export *jsonLinesWriter
	if opts.OutPath != "" {
		export, err = newJSONLinesWriter(opts.FS, opts.OutPath)
		if err != nil {
			return nil, fmt.Errorf("open export: %w", err)
		}
		defer export.Close()
	}

	logEvery := max(len(samples)/progressEvery, 1)
	errs := make([]float64, 0, len(samples))
	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := filter.Step(mat.NewVecDense(len(s.Measured), s.Measured), cfg.GetDT()); err != nil {
			return nil, fmt.Errorf("cycle %d: %w", s.Step, err)
		}
		snap := filter.Snapshot()
		e := simulate.PositionError(snap.State, s.Truth)
		errs = append(errs, e)
		sum.MaxError = max(sum.MaxError, e)

		if rec != nil {
			if err := rec.Record(ctx, snap, s.Measured, s.Truth); err != nil {
				return nil, err
			}
		}
		if export != nil {
			if err := export.Write(exportRow{Time: s.Time, Snapshot: snap, Measurement: s.Measured, Truth: s.Truth, PositionError: e}); err != nil {
				return nil, fmt.Errorf("export: %w", err)
			}
		}
		if s.Step%logEvery == 0 {
			monitoring.Logf("cycle %d/%d: position error %.4f m", s.Step, len(samples), e)
		}
		sum.Final = snap
		sum.Truth = s.Truth
	}

	sum.Cycles = filter.Cycle()
	sum.RMSE = simulate.RMSE(errs)
	if rec != nil {
		if err := rec.Finish(ctx, sum.RMSE); err != nil {
			return nil, err
		}
	}
	if export != nil {
		if err := export.Close(); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
	}
	sum.Elapsed = opts.Clock.Since(start)
	return sum, nil
}

// applyOverrides copies command-line overrides into cfg.
func applyOverrides(cfg *config.FilterConfig, opts options) {
	if opts.Steps >= 0 {
		steps := opts.Steps
		cfg.Steps = &steps
	}
	if opts.Seed >= 0 {
		seed := uint64(opts.Seed)
		cfg.Seed = &seed
	}
	if opts.Linear {
		linear := true
		cfg.LinearUpdate = &linear
	}
}
