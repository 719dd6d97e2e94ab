package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-queue/internal/repository/postgres"
)

var errNoDatabase = errors.New("migrations need the postgres store")

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.backend()
			if err != nil {
				return err
			}
			defer b.Close()
			if b.DB == nil {
				return errNoDatabase
			}
			return postgres.RunMigrations(b.DB.DB, b.Log)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.backend()
			if err != nil {
				return err
			}
			defer b.Close()
			if b.DB == nil {
				return errNoDatabase
			}
			return postgres.RollbackMigrations(b.DB.DB, steps, b.Log)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")
	cmd.AddCommand(down)

	return cmd
}
