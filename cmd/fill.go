package cmd

import (
	"fmt"
	"strings"
	"time"

	"db-relay/internal/pump"
	"db-relay/internal/relay"
	"db-relay/internal/schema"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var fillClean bool

var fillCmd = &cobra.Command{
	Use:   "fill [table...]",
	Short: "Fill tables with random data",
	Long: `Generates rows into the named tables, the tables of fill.tables, or every
table. Parents are filled first and foreign keys take existing keys.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		s, err := openSource(ctx, connName)
		if err != nil {
			return err
		}
		defer closeSession(ctx, s, &err)

		cat, err := s.catalog(ctx)
		if err != nil {
			return err
		}
		names := args
		if len(names) == 0 {
			names = settings.Fill.Tables
		}
		rels, err := selectRelations(cat, names, false)
		if err != nil {
			return err
		}
		rels = schema.SortByDependencies(tablesOnly(rels))
		if len(rels) == 0 {
			return fmt.Errorf("no table to fill")
		}
		count := settings.Fill.Count

		if dryRun {
			log.Info("[SIMULATION] Dry-Run Mode Active: No data will be written.")
			for i, r := range rels {
				fmt.Printf("[%02d] %-20s %d rows (depends on: %s)\n",
					i+1, r.Name(), pump.MaxRows(r, count, log), strings.Join(parentsOf(r), ", "))
			}
			return nil
		}

		log.Infof("Starting fill with count=%d per table...", count)
		start := time.Now()
		bars := newProgressBars()
		results, err := relay.Fill(ctx, s.db, rels, relay.FillOptions{
			Options: relay.Options{
				Pump:     settings.PumpOptions(),
				Progress: bars,
			},
			Count: count,
			Seed:  settings.Fill.Seed,
			Clean: fillClean,
		}, log)
		bars.Stop()

		fmt.Println("\nSummary Report (Dependency Order):")
		var total int64
		for i, r := range results {
			icon := "✓"
			if r.Status != relay.StatusOK {
				icon = "!"
			}
			fmt.Printf("[%s] [%02d/%02d] %-20s : %d rows (Target: %d) - %s\n",
				icon, i+1, len(rels), r.Relation, r.Actual, r.Target, r.Status)
			if r.Err != nil {
				fmt.Printf("    └ Error: %v\n", r.Err)
			}
			total += r.Actual
		}
		fmt.Println("--------------------------------------------------")
		fmt.Printf("Total Rows: %d\n", total)
		log.Infof("Fill done in %s", time.Since(start).Round(time.Millisecond))
		return err
	},
}

func parentsOf(r *schema.Relation) []string {
	var out []string
	for _, fk := range r.ForeignKeys() {
		out = append(out, fk.ForeignRelation().Name())
	}
	if len(out) == 0 {
		return []string{"-"}
	}
	return out
}

func init() {
	RootCmd.AddCommand(fillCmd)
	fillCmd.Flags().Int("count", 0, "rows to generate per table (overrides fill.count)")
	fillCmd.Flags().Int64("seed", 0, "seed of the generator, 0 for a random one")
	fillCmd.Flags().BoolVar(&fillClean, "clean", false, "truncate the tables before filling them")

	viper.BindPFlag("fill.count", fillCmd.Flags().Lookup("count"))
	viper.BindPFlag("fill.seed", fillCmd.Flags().Lookup("seed"))
}
