package cmd

import (
	"fmt"

	"db-relay/internal/engine"
	"db-relay/internal/schema"

	"github.com/spf13/cobra"
)

var (
	dropAll      bool
	dropIfExists bool
	dropStrict   bool
)

var dropCmd = &cobra.Command{
	Use:   "drop [relation...]",
	Short: "Drop tables and views, dependents first",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if len(args) == 0 && !dropAll {
			return fmt.Errorf("name the relations to drop or use --all")
		}
		ctx := cmd.Context()
		s, err := openSession(ctx, connName, engine.Options{Strict: dropStrict})
		if err != nil {
			return err
		}
		defer closeSession(ctx, s, &err)

		cat, err := s.catalog(ctx)
		if err != nil {
			return err
		}
		rels, err := selectRelations(cat, args, dropIfExists)
		if err != nil {
			return err
		}
		res, err := s.engine.DropAll(ctx, schema.SortByDependencies(rels))
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(dropCmd)
	dropCmd.Flags().BoolVar(&dropAll, "all", false, "drop every relation of the schema")
	dropCmd.Flags().BoolVar(&dropIfExists, "if-exists", false, "skip the relations that do not exist")
	dropCmd.Flags().BoolVar(&dropStrict, "strict", false, "fail on objects of a kind that cannot be dropped")
}
