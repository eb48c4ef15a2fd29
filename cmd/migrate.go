package cmd

import (
	"fmt"

	"github.com/malwarebo/condopay/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *db.Migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			printSuccess("Migrations applied")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down <version>",
	Short: "Roll back one migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *db.Migrator) error {
			if err := m.Down(args[0]); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Rolled back migration %s", args[0]))
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *db.Migrator) error {
			statuses, err := m.Status()
			if err != nil {
				return err
			}
			for _, s := range statuses {
				mark := colorYellow + "pending" + colorReset
				if s.Applied {
					mark = colorGreen + "applied" + colorReset
				}
				fmt.Printf("%s  %-32s %s\n", s.Version, s.Name, mark)
			}
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func withMigrator(fn func(*db.Migrator) error) error {
	database, err := db.CreateDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	return fn(db.CreateSchemaMigrator(database.GetDB()))
}
