package main

import (
	"fmt"

	"github.com/spf13/cobra"

	eventstore "github.com/aneshas/cockroach-eventstore"
)

func newSchemaCommand(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the CockroachDB DDL of the events table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), eventstore.CreateTableSQL(flags.table))

			return err
		},
	}
}

func newMigrateCommand(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the events table and its indexes if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			es, err := flags.open()
			if err != nil {
				return err
			}

			defer es.Close()

			if err := es.Migrate(cmd.Context()); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "table %s is ready\n", es.Table())

			return err
		},
	}
}
