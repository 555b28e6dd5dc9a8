package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/NERRecon/internal/infrastructure/database/postgres"
	"github.com/turtacn/NERRecon/pkg/errors"
)

// migrationFuncs are variables so tests can run the commands without a
// database.
var (
	runMigrations     = postgres.RunMigrations
	rollbackMigration = postgres.RollbackMigration
	migrationStatus   = postgres.MigrationStatus
	forceMigration    = postgres.ForceMigrationVersion
)

// databaseURL returns the migration target.  --database-url wins over the
// database section of the configuration.
func databaseURL(cmd *cobra.Command) (string, error) {
	if u, _ := cmd.Flags().GetString("database-url"); u != "" {
		return u, nil
	}
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return "", err
	}
	if cc.Config.Database.Host == "" {
		return "", errors.New(errors.ErrCodeValidation, "database.host is not configured")
	}
	return postgres.BuildDSN(cc.Config.Database), nil
}

// MigrationVersion is the printable schema state.
type MigrationVersion struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (v MigrationVersion) String() string {
	if v.Version == 0 {
		return "no migrations applied"
	}
	if v.Dirty {
		return fmt.Sprintf("version %d (dirty)", v.Version)
	}
	return fmt.Sprintf("version %d", v.Version)
}

// NewMigrateCmd manages the run history schema.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run history database schema",
	}
	cmd.PersistentFlags().String("database-url", "", "postgres URL (default: built from the database section)")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			if err := runMigrations(dsn); err != nil {
				return errors.Wrap(err, errors.ErrCodeDatabaseError, "migrate up")
			}
			PrintSuccess(cmd, "schema is up to date")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			if err := rollbackMigration(dsn, steps); err != nil {
				return errors.Wrap(err, errors.ErrCodeDatabaseError, "migrate down")
			}
			PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			v, dirty, err := migrationStatus(dsn)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeDatabaseError, "migrate version")
			}
			return PrintResult(cmd, MigrationVersion{Version: v, Dirty: dirty})
		},
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark the schema as being at VERSION after a manual fix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v int
			if _, err := fmt.Sscanf(args[0], "%d", &v); err != nil {
				return errors.Newf(errors.ErrCodeValidation, "invalid version %q", args[0])
			}
			dsn, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			if err := forceMigration(dsn, v); err != nil {
				return errors.Wrap(err, errors.ErrCodeDatabaseError, "migrate force")
			}
			PrintSuccess(cmd, fmt.Sprintf("schema forced to version %d", v))
			return nil
		},
	}

	cmd.AddCommand(up, down, version, force)
	return cmd
}

//Personal.AI order the ending
