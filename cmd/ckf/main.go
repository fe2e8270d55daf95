// Command ckf runs a Cubature Kalman Filter over a simulated trajectory,
// stores every estimate in SQLite and prints a summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/cubature/internal/config"
	"github.com/banshee-data/cubature/internal/db"
	"github.com/banshee-data/cubature/internal/fsutil"
	"github.com/banshee-data/cubature/internal/monitoring"
	"github.com/banshee-data/cubature/internal/security"
	"github.com/banshee-data/cubature/internal/timeutil"
	"github.com/banshee-data/cubature/internal/units"
	"github.com/banshee-data/cubature/internal/version"
)

func main() {
	var opts options
	var showVersion, listRuns bool
	var system, migrateAction string

	flag.StringVar(&opts.ConfigPath, "config", config.DefaultConfigPath, "path to filter config JSON")
	flag.StringVar(&opts.DBPath, "db", "ckf_runs.db", "path to sqlite db (empty disables storage)")
	flag.StringVar(&opts.OutPath, "out", "", "write estimates as JSON lines to this file")
	flag.IntVar(&opts.Steps, "steps", -1, "number of filter cycles (overrides config when >= 0)")
	flag.Int64Var(&opts.Seed, "seed", -1, "simulation noise seed (overrides config when >= 0)")
	flag.BoolVar(&opts.Linear, "linear", false, "use the closed-form update for linear measurement models")
	flag.BoolVar(&opts.Quiet, "quiet", false, "suppress progress logging")
	flag.StringVar(&system, "units", units.SI, "display units for the summary ("+units.GetValidSystemsString()+")")
	flag.BoolVar(&listRuns, "runs", false, "list stored runs and exit")
	flag.StringVar(&migrateAction, "migrate", "", "apply a schema action to -db and exit ("+db.MigrateActions+")")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("ckf", version.String())
		return
	}
	if !units.IsValid(system) {
		log.Fatalf("invalid -units %q: must be one of %s", system, units.GetValidSystemsString())
	}
	if opts.OutPath != "" {
		if err := security.ValidateExportPath(opts.OutPath); err != nil {
			log.Fatalf("invalid -out: %v", err)
		}
	}
	if opts.Quiet {
		monitoring.SetLogger(nil)
	}
	opts.Clock = timeutil.RealClock{}
	opts.FS = fsutil.OSFileSystem{}

	ctx := context.Background()
	if migrateAction != "" {
		if opts.DBPath == "" {
			log.Fatalf("-migrate requires -db")
		}
		if err := migrateDB(opts.DBPath, migrateAction, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	if listRuns {
		if opts.DBPath == "" {
			log.Fatalf("-runs requires -db")
		}
		if err := printRuns(ctx, opts.DBPath, os.Stdout); err != nil {
			log.Fatalf("list runs: %v", err)
		}
		return
	}

	sum, err := run(ctx, opts)
	if err != nil {
		log.Fatalf("ckf: %v", err)
	}
	renderSummary(os.Stdout, sum, system)
}
