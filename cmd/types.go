package cmd

import (
	"fmt"

	"db-relay/internal/engine"

	"github.com/spf13/cobra"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the native types of a connection and their categories",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		s, err := openSession(ctx, connName, engine.Options{})
		if err != nil {
			return err
		}
		defer closeSession(ctx, s, &err)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-28s %6s  %-28s %9s %7s %6s  %s\n", "NAME", "CODE", "CATEGORY", "PRECISION", "DEFAULT", "SCALE", "ROOT")
		for _, t := range s.db.Registry().Types() {
			root := ""
			if t.IsAlias() {
				root = t.Root().Name()
			}
			fmt.Fprintf(out, "%-28s %6d  %-28s %9d %7d %6d  %s\n",
				t.Name(), t.Code(), t.Category(), t.MaxPrecision(), t.DefaultPrecision(), t.MaxScale(), root)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(typesCmd)
}
