// Command alloydbpg migrates legacy PGVector collections into native
// vectorstore tables.
package main

import (
	"fmt"
	"os"

	"github.com/kataras/golog"
	"github.com/spf13/cobra"

	"github.com/smallnest/alloydbpg/engine"
	"github.com/smallnest/alloydbpg/log"
	"github.com/smallnest/alloydbpg/migrator"
)

var (
	dsn     string
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "alloydbpg",
		Short: "Manage AlloyDB vector store data",
		PersistentPreRun: func(*cobra.Command, []string) {
			logger := log.NewGologLogger(golog.Default)
			if verbose {
				logger.SetLevel(log.LogLevelDebug)
			}
			log.SetDefaultLogger(logger)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string (required)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = root.MarkPersistentFlagRequired("dsn")

	root.AddCommand(collectionsCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func collectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List PGVector collections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := engine.New(cmd.Context(), engine.Config{ConnString: dsn})
			if err != nil {
				return err
			}
			defer eng.Close()

			names, err := migrator.New(eng).ListCollections(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var opts migrator.Options

	cmd := &cobra.Command{
		Use:   "migrate <collection>",
		Short: "Copy a PGVector collection into a vectorstore table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := engine.New(cmd.Context(), engine.Config{ConnString: dsn})
			if err != nil {
				return err
			}
			defer eng.Close()

			return migrator.New(eng).Migrate(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.DestinationTable, "dest", "", "destination table (defaults to the collection name)")
	cmd.Flags().StringVar(&opts.DestinationSchema, "schema", "", "destination schema (defaults to public)")
	cmd.Flags().StringSliceVar(&opts.MetadataColumns, "metadata-columns", nil, "metadata keys copied into typed columns")
	cmd.Flags().BoolVar(&opts.UseJSONMetadata, "json-metadata", false, "copy remaining metadata into the langchain_metadata JSON column")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 1000, "rows copied per batch")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 1, "batches copied in parallel")
	cmd.Flags().BoolVar(&opts.DeleteOriginal, "delete-original", false, "delete the source collection after a verified copy")

	return cmd
}
