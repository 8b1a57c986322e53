package cmd

import (
	"fmt"

	"db-relay/internal/engine"
	"db-relay/internal/schema"

	"github.com/spf13/cobra"
)

var truncateAll bool

var truncateCmd = &cobra.Command{
	Use:     "truncate [table...]",
	Aliases: []string{"clean"},
	Short:   "Empty tables in one batch",
	Long: `Empties the named tables, or every table with --all. A table referenced
by a foreign key of a table left out of the batch is refused.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if len(args) == 0 && !truncateAll {
			return fmt.Errorf("name the tables to truncate or use --all")
		}
		ctx := cmd.Context()
		s, err := openSession(ctx, connName, engine.Options{})
		if err != nil {
			return err
		}
		defer closeSession(ctx, s, &err)

		cat, err := s.catalog(ctx)
		if err != nil {
			return err
		}
		rels, err := selectRelations(cat, args, false)
		if err != nil {
			return err
		}
		if truncateAll {
			rels = tablesOnly(rels)
		}
		res, err := s.engine.Truncate(ctx, schema.SortByDependencies(rels))
		if err != nil {
			return err
		}
		printResult(res)
		log.Infof("Truncated %d table(s)", len(rels))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(truncateCmd)
	truncateCmd.Flags().BoolVar(&truncateAll, "all", false, "truncate every table of the schema")
}
