package db

import (
	"fmt"
	"io"
	"io/fs"
)

// MigrateActions lists the actions accepted by RunMigrateCommand.
const MigrateActions = "up, down, status"

// RunMigrateCommand applies action ("up", "down" or "status") with the
// embedded migrations and writes the resulting schema version to w.
func (db *DB) RunMigrateCommand(action string, w io.Writer) error {
	migrations, err := getMigrationsFS()
	if err != nil {
		return err
	}
	return db.runMigrateCommand(action, migrations, w)
}

func (db *DB) runMigrateCommand(action string, migrations fs.FS, w io.Writer) error {
	switch action {
	case "up":
		if err := db.MigrateUp(migrations); err != nil {
			return err
		}
	case "down":
		if err := db.MigrateDown(migrations); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown migrate action %q (want one of %s)", action, MigrateActions)
	}

	version, dirty, err := db.MigrateVersion(migrations)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	latest, err := LatestMigrationVersion(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "schema version %d of %d (dirty: %v)\n", version, latest, dirty)
	if dirty {
		fmt.Fprintln(w, "a migration failed mid-execution; inspect the database before retrying")
	}
	return nil
}
