package cmd

import (
	"context"
	"fmt"

	"db-relay/internal/engine"
	"db-relay/internal/errs"
	"db-relay/internal/schema"

	"github.com/spf13/cobra"
)

var (
	createManifest string
	createFrom     string
	createDrop     bool
)

var createCmd = &cobra.Command{
	Use:   "create [relation...]",
	Short: "Create tables from a manifest or from the schema of another connection",
	Long: `Creates relations on the connection, parents first. The definitions come
from a YAML manifest (-f) or from the tables of another connection (--from),
with their types translated to the target. Foreign keys may reference
tables that already exist on the connection.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if (createManifest == "") == (createFrom == "") {
			return fmt.Errorf("exactly one of --manifest or --from is required")
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

		var rels []*schema.Relation
		if createManifest != "" {
			rels, err = manifestRelations(cat, args)
		} else {
			rels, err = copiedRelations(ctx, cat, args)
		}
		if err != nil {
			return err
		}
		rels = schema.SortByDependencies(rels)

		if createDrop {
			for i := len(rels) - 1; i >= 0; i-- {
				if _, err := s.engine.DropIfExists(ctx, rels[i]); err != nil {
					return err
				}
			}
		}
		for _, r := range rels {
			res, err := s.engine.Create(ctx, r)
			if err != nil {
				return err
			}
			s.created(r)
			printResult(res)
		}
		return nil
	},
}

func manifestRelations(cat *schema.Catalog, names []string) ([]*schema.Relation, error) {
	m, err := schema.LoadManifestFile(createManifest)
	if err != nil {
		return nil, err
	}
	rels, err := m.Build(cat)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return rels, nil
	}
	wanted := make(map[*schema.Relation]bool)
	for _, n := range names {
		r, ok := cat.Relation(n)
		if !ok {
			return nil, errs.Newf(errs.ErrKindNotFound, "The relation (%s) is not in the manifest %s", n, createManifest)
		}
		wanted[r] = true
	}
	var out []*schema.Relation
	for _, r := range rels {
		if wanted[r] {
			out = append(out, r)
		}
	}
	return out, nil
}

// copiedRelations defines in cat the tables of the --from connection.
func copiedRelations(ctx context.Context, cat *schema.Catalog, names []string) (rels []*schema.Relation, err error) {
	src, err := openSource(ctx, createFrom)
	if err != nil {
		return nil, err
	}
	defer closeSession(ctx, src, &err)

	srcCat, err := src.catalog(ctx)
	if err != nil {
		return nil, err
	}
	picked, err := selectRelations(srcCat, names, false)
	if err != nil {
		return nil, err
	}
	for _, from := range schema.SortByDependencies(tablesOnly(picked)) {
		if _, ok := cat.Relation(from.Name()); ok {
			if !createDrop {
				return nil, errs.Newf(errs.ErrKindPrecondition,
					"The table (%s) already exists on %s. Use --drop to replace it", from.Name(), cat.Connection())
			}
			cat.Remove(from.Name())
		}
		to := cat.GetOrCreate(from.Name(), schema.KindTable)
		if err := to.CopyDefinition(from, nil); err != nil {
			return nil, err
		}
		rels = append(rels, to)
	}
	return rels, nil
}

func init() {
	RootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&createManifest, "manifest", "f", "", "YAML manifest of the relations to create")
	createCmd.Flags().StringVar(&createFrom, "from", "", "connection whose tables are copied")
	createCmd.Flags().BoolVar(&createDrop, "drop", false, "drop the relations first when they exist")
}
