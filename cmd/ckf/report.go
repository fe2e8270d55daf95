package main

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/banshee-data/cubature/internal/db"
	"github.com/banshee-data/cubature/internal/models"
	"github.com/banshee-data/cubature/internal/units"
)

type stateField struct {
	name     string
	quantity string
}

var stateFields = map[int]stateField{
	models.IdxX:       {"x", "length"},
	models.IdxY:       {"y", "length"},
	models.IdxYaw:     {"yaw", "angle"},
	models.IdxSpeed:   {"speed", "speed"},
	models.IdxYawRate: {"yaw rate", "rate"},
	models.IdxAccel:   {"accel", "accel"},
}

// convert maps an SI state value of the given quantity into system.
func convert(v float64, quantity, system string) float64 {
	switch quantity {
	case "speed":
		return units.Speed(v, system)
	case "accel":
		return units.Acceleration(v, system)
	case "length":
		return units.Length(v, system)
	case "angle", "rate":
		return units.Angle(v, system)
	}
	return v
}

func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Options.SeparateColumns = true
	style.Options.DrawBorder = true
	t.SetStyle(style)
	if len(header) > 0 {
		t.AppendHeader(table.Row(header))
	}
	return t
}

// renderSummary prints the run overview followed by the final state in the
// display units of system.
func renderSummary(w io.Writer, sum *summary, system string) {
	runID := sum.RunID
	if runID == "" {
		runID = "(not stored)"
	}
	length := units.Label("length", system)
	over := newTable(w)
	over.SetTitle("CKF run")
	over.AppendRows([]table.Row{
		{"run id", runID},
		{"motion model", sum.MotionModel},
		{"measurement model", sum.MeasurementModel},
		{"linear update", sum.Linear},
		{"cycles", sum.Cycles},
		{fmt.Sprintf("position RMSE (%s)", length), fmt.Sprintf("%.6f", units.Length(sum.RMSE, system))},
		{fmt.Sprintf("max position error (%s)", length), fmt.Sprintf("%.6f", units.Length(sum.MaxError, system))},
		{"elapsed", sum.Elapsed.String()},
	})
	over.Render()

	n := len(sum.Final.State)
	state := newTable(w, "state", "estimate", "truth", "σ")
	for i := 0; i < n; i++ {
		field, ok := stateFields[i]
		if !ok {
			field = stateField{fmt.Sprintf("x[%d]", i), ""}
		}
		name := field.name
		if field.quantity != "" {
			name = fmt.Sprintf("%s (%s)", field.name, units.Label(field.quantity, system))
		}
		truth := "-"
		if i < len(sum.Truth) {
			truth = fmt.Sprintf("%.6f", convert(sum.Truth[i], field.quantity, system))
		}
		sigma := math.Sqrt(math.Max(sum.Final.Covariance[i*n+i], 0))
		state.AppendRow(table.Row{
			name,
			fmt.Sprintf("%.6f", convert(sum.Final.State[i], field.quantity, system)),
			truth,
			fmt.Sprintf("%.3g", math.Abs(convert(sigma, field.quantity, system))),
		})
	}
	state.Render()
}

// printRuns lists the runs stored in the database at path.
func printRuns(ctx context.Context, path string, w io.Writer) error {
	store, err := db.NewDB(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	t := newTable(w, "run id", "created", "motion", "measurement", "cycles", "RMSE (m)", "version")
	for _, r := range runs {
		rmse := "-"
		if r.RMSE != nil {
			rmse = fmt.Sprintf("%.6f", *r.RMSE)
		}
		t.AppendRow(table.Row{r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.MotionModel, r.MeasurementModel, r.Cycles, rmse, r.AppVersion})
	}
	t.Render()
	return nil
}

// migrateDB applies a schema action to the database at path without the
// automatic upgrade that opening a run store performs.
func migrateDB(path, action string, w io.Writer) error {
	store, err := db.OpenDB(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.RunMigrateCommand(action, w)
}
