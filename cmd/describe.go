package cmd

import (
	"fmt"
	"io"
	"os"

	"db-relay/internal/engine"
	"db-relay/internal/schema"

	"github.com/spf13/cobra"
)

var describeOut string

var describeCmd = &cobra.Command{
	Use:   "describe [relation...]",
	Short: "Write the schema of a connection as a YAML manifest",
	Long: `Reflects the tables, views, keys and columns of the default schema of the
connection and writes them, parents first, as a manifest that create -f
accepts.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
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

		var w io.Writer = cmd.OutOrStdout()
		if describeOut != "" {
			f, err := os.Create(describeOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", describeOut, err)
			}
			defer f.Close()
			w = f
		}
		return schema.ManifestOf(schema.SortByDependencies(rels)).Write(w)
	},
}

func init() {
	RootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVarP(&describeOut, "out", "o", "", "manifest file (default is stdout)")
}
