package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"db-relay/internal/engine"
	"db-relay/internal/errs"
	"db-relay/internal/relay"
	"db-relay/internal/schema"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	transferTo    string
	transferQuery string
	transferMap   map[string]string
)

var transferCmd = &cobra.Command{
	Use:   "transfer SOURCE [TARGET]",
	Short: "Copy, insert, update, upsert, delete or move rows between relations",
	Long: `Transfers the rows of SOURCE into TARGET (default is SOURCE on the --to
connection). On one connection every operation runs as SQL statements; across
connections rows are pumped for the copy and insert operations.

With --query, SOURCE names the select given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		opts, err := transferOptions()
		if err != nil {
			return err
		}
		srcName, tgtName := args[0], args[0]
		if len(args) == 2 {
			tgtName = args[1]
		}
		ctx := cmd.Context()
		if transferTo == "" || strings.EqualFold(transferTo, connName) {
			if len(args) == 1 {
				return fmt.Errorf("a TARGET is required on one connection")
			}
			return transferLocal(ctx, srcName, tgtName, opts)
		}
		if dryRun {
			return errs.New(errs.ErrKindUnsupported, "a transfer across connections moves rows and cannot be recorded")
		}
		return transferAcross(ctx, srcName, tgtName, opts)
	},
}

func transferOptions() (engine.TransferOptions, error) {
	opts, err := settings.TransferOptions()
	if err != nil {
		return opts, err
	}
	switch opts.Mapping {
	case engine.MapByName:
		opts.ColumnMap = transferMap
	case engine.MapByPosition:
		opts.PositionMap = make(map[int]int, len(transferMap))
		for k, v := range transferMap {
			from, err1 := strconv.Atoi(k)
			to, err2 := strconv.Atoi(v)
			if err1 != nil || err2 != nil {
				return opts, errs.Newf(errs.ErrKindInvalidInput, "invalid position mapping %s=%s", k, v)
			}
			opts.PositionMap[from] = to
		}
	}
	return opts, nil
}

// sourceRelation finds name in cat, or wraps the --query select.
func sourceRelation(cat *schema.Catalog, name string) (*schema.Relation, error) {
	if transferQuery != "" {
		return schema.NewQuery(name, transferQuery, cat.Types()), nil
	}
	r, ok := cat.Relation(name)
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "The source (%s) does not exist in %s", name, cat.Connection())
	}
	return r, nil
}

// targetRelation finds name in cat or defines it, empty, for the transfer
// to create.
func targetRelation(cat *schema.Catalog, name string) *schema.Relation {
	if r, ok := cat.Relation(name); ok {
		return r
	}
	return cat.GetOrCreate(name, schema.KindTable)
}

func transferLocal(ctx context.Context, srcName, tgtName string, opts engine.TransferOptions) (err error) {
	s, err := openSession(ctx, connName, engine.Options{Strict: opts.Strict})
	if err != nil {
		return err
	}
	defer closeSession(ctx, s, &err)

	cat, err := s.catalog(ctx)
	if err != nil {
		return err
	}
	src, err := sourceRelation(cat, srcName)
	if err != nil {
		return err
	}
	res, err := s.engine.Transfer(ctx, src, targetRelation(cat, tgtName), opts)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func transferAcross(ctx context.Context, srcName, tgtName string, opts engine.TransferOptions) (err error) {
	src, err := openSource(ctx, connName)
	if err != nil {
		return err
	}
	defer closeSession(ctx, src, &err)
	dst, err := openSession(ctx, transferTo, engine.Options{Strict: opts.Strict})
	if err != nil {
		return err
	}
	defer closeSession(ctx, dst, &err)

	srcCat, err := src.catalog(ctx)
	if err != nil {
		return err
	}
	from, err := sourceRelation(srcCat, srcName)
	if err != nil {
		return err
	}
	dstCat, err := dst.catalog(ctx)
	if err != nil {
		return err
	}

	bars := newProgressBars()
	res, err := relay.Copy(ctx, src.db, dst.db, from, targetRelation(dstCat, tgtName), relay.Options{
		Transfer: opts,
		Pump:     settings.PumpOptions(),
		Engine:   engine.Options{Strict: opts.Strict},
		Progress: bars,
	}, log)
	bars.Stop()
	if res != nil {
		fmt.Println(res)
	}
	return err
}

func init() {
	RootCmd.AddCommand(transferCmd)
	flags := transferCmd.Flags()
	flags.StringVar(&transferTo, "to", "", "target connection (default is the source connection)")
	flags.StringVar(&transferQuery, "query", "", "select statement read instead of the SOURCE table")
	flags.StringToStringVar(&transferMap, "map", nil, "column map for map_by_name (src=tgt) or map_by_position (1=2)")
	flags.String("operation", "", "copy, insert, update, upsert, delete or move")
	flags.StringSlice("target-ops", nil, "operations on the target first: drop, create, truncate, replace")
	flags.String("mapping", "", "name, position, map_by_name or map_by_position")
	flags.Bool("strict", true, "fail on unmapped or nullable-into-not-null columns")
	flags.Int("workers", 0, "pump writers across connections")
	flags.Int("batch-size", 0, "rows per pump batch")

	viper.BindPFlag("transfer.operation", flags.Lookup("operation"))
	viper.BindPFlag("transfer.target_operations", flags.Lookup("target-ops"))
	viper.BindPFlag("transfer.mapping", flags.Lookup("mapping"))
	viper.BindPFlag("transfer.strict", flags.Lookup("strict"))
	viper.BindPFlag("transfer.workers", flags.Lookup("workers"))
	viper.BindPFlag("transfer.batch_size", flags.Lookup("batch-size"))
}
