package main

import (
	"fmt"

	"github.com/OFFIS-RIT/fingraph/internal/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
