package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/cubature/internal/ckf"
	"github.com/banshee-data/cubature/internal/simulate"
	"github.com/banshee-data/cubature/internal/version"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// RunParams describes the filter configuration a run was started with.
type RunParams struct {
	MotionModel      string
	MeasurementModel string
	LinearUpdate     bool
	DT               float64
	Steps            int
	Seed             uint64

	// Config is stored verbatim as JSON for later inspection.
	Config any
}

// Run is one stored filter run.
type Run struct {
	ID         string     `json:"run_id"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	MotionModel      string  `json:"motion_model"`
	MeasurementModel string  `json:"measurement_model"`
	LinearUpdate     bool    `json:"linear_update"`
	DT               float64 `json:"dt"`
	Steps            int     `json:"steps"`
	Seed             uint64  `json:"seed"`
	AppVersion       string  `json:"app_version"`
	ConfigJSON       string  `json:"config_json"`

	Cycles int      `json:"cycles"`
	RMSE   *float64 `json:"rmse,omitempty"`
}

// EstimateRow is one stored filter cycle.
type EstimateRow struct {
	RunID           string    `json:"run_id"`
	Cycle           int       `json:"cycle"`
	Phase           ckf.Phase `json:"phase"`
	State           []float64 `json:"state"`
	Covariance      []float64 `json:"covariance"`
	Measurement     []float64 `json:"measurement,omitempty"`
	Truth           []float64 `json:"truth,omitempty"`
	CovarianceTrace float64   `json:"covariance_trace"`
	PositionError   *float64  `json:"position_error,omitempty"`
}

// RunRecorder appends estimates to a single run.
type RunRecorder struct {
	db     *DB
	run    Run
	cycles int
}

// CreateRun inserts a new run row and returns a recorder for it.
func (db *DB) CreateRun(ctx context.Context, p RunParams) (*RunRecorder, error) {
	cfgJSON, err := json.Marshal(p.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run config: %w", err)
	}
	run := Run{
		ID:               uuid.NewString(),
		CreatedAt:        db.clock.Now().UTC(),
		MotionModel:      p.MotionModel,
		MeasurementModel: p.MeasurementModel,
		LinearUpdate:     p.LinearUpdate,
		DT:               p.DT,
		Steps:            p.Steps,
		Seed:             p.Seed,
		AppVersion:       version.Version,
		ConfigJSON:       string(cfgJSON),
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, created_unix_nanos, motion_model, measurement_model,
			linear_update, dt, steps, seed, app_version, config_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixNano(), run.MotionModel, run.MeasurementModel,
		run.LinearUpdate, run.DT, run.Steps, int64(run.Seed), run.AppVersion, run.ConfigJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return &RunRecorder{db: db, run: run}, nil
}

// RunID returns the ID of the run being recorded.
func (r *RunRecorder) RunID() string { return r.run.ID }

// Record stores one filter snapshot with the measurement that produced it
// and, for simulated runs, the true state. Either may be nil.
func (r *RunRecorder) Record(ctx context.Context, snap ckf.Snapshot, measurement, truth []float64) error {
	stateJSON, err := json.Marshal(snap.State)
	if err != nil {
		return err
	}
	covJSON, err := json.Marshal(snap.Covariance)
	if err != nil {
		return err
	}
	zJSON, err := nullableJSON(measurement)
	if err != nil {
		return err
	}
	truthJSON, err := nullableJSON(truth)
	if err != nil {
		return err
	}

	trace, err := snap.CovarianceTrace()
	if err != nil {
		return fmt.Errorf("cycle %d: %w", snap.Cycle, err)
	}
	var posErr sql.NullFloat64
	if len(truth) >= 2 && len(snap.State) >= 2 {
		posErr = sql.NullFloat64{Float64: simulate.PositionError(snap.State, truth), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO estimates (
			run_id, cycle, phase, state_json, covariance_json,
			measurement_json, truth_json, covariance_trace, position_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.run.ID, snap.Cycle, string(snap.Phase), string(stateJSON), string(covJSON),
		zJSON, truthJSON, trace, posErr,
	)
	if err != nil {
		return fmt.Errorf("failed to insert estimate for cycle %d: %w", snap.Cycle, err)
	}
	r.cycles++
	return nil
}

// Finish marks the run complete with its position RMSE.
func (r *RunRecorder) Finish(ctx context.Context, rmse float64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET finished_unix_nanos = ?, cycles = ?, rmse = ? WHERE run_id = ?`,
		r.db.clock.Now().UTC().UnixNano(), r.cycles, rmse, r.run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, r.run.ID)
	}
	return nil
}

const runColumns = `run_id, created_unix_nanos, finished_unix_nanos, motion_model,
	measurement_model, linear_update, dt, steps, seed, app_version, config_json,
	cycles, rmse`

// Runs returns the stored runs, newest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_unix_nanos DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by ID.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Estimates returns every stored cycle of a run in cycle order.
func (db *DB) Estimates(ctx context.Context, runID string) ([]EstimateRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT cycle, phase, state_json, covariance_json, measurement_json,
		       truth_json, covariance_trace, position_error
		FROM estimates WHERE run_id = ? ORDER BY cycle`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EstimateRow
	for rows.Next() {
		var (
			e                  = EstimateRow{RunID: runID}
			phase              string
			stateJSON, covJSON string
			zJSON, truthJSON   sql.NullString
			posErr             sql.NullFloat64
		)
		if err := rows.Scan(&e.Cycle, &phase, &stateJSON, &covJSON, &zJSON, &truthJSON, &e.CovarianceTrace, &posErr); err != nil {
			return nil, err
		}
		e.Phase = ckf.Phase(phase)
		if err := json.Unmarshal([]byte(stateJSON), &e.State); err != nil {
			return nil, fmt.Errorf("cycle %d state: %w", e.Cycle, err)
		}
		if err := json.Unmarshal([]byte(covJSON), &e.Covariance); err != nil {
			return nil, fmt.Errorf("cycle %d covariance: %w", e.Cycle, err)
		}
		if zJSON.Valid {
			if err := json.Unmarshal([]byte(zJSON.String), &e.Measurement); err != nil {
				return nil, fmt.Errorf("cycle %d measurement: %w", e.Cycle, err)
			}
		}
		if truthJSON.Valid {
			if err := json.Unmarshal([]byte(truthJSON.String), &e.Truth); err != nil {
				return nil, fmt.Errorf("cycle %d truth: %w", e.Cycle, err)
			}
		}
		if posErr.Valid {
			v := posErr.Float64
			e.PositionError = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (Run, error) {
	var (
		run      Run
		created  int64
		finished sql.NullInt64
		seed     int64
		rmse     sql.NullFloat64
	)
	err := s.Scan(&run.ID, &created, &finished, &run.MotionModel, &run.MeasurementModel,
		&run.LinearUpdate, &run.DT, &run.Steps, &seed, &run.AppVersion, &run.ConfigJSON,
		&run.Cycles, &rmse)
	if err != nil {
		return Run{}, err
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		run.FinishedAt = &t
	}
	run.Seed = uint64(seed)
	if rmse.Valid {
		v := rmse.Float64
		run.RMSE = &v
	}
	return run, nil
}

func nullableJSON(v []float64) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
