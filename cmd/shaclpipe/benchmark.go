package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaclpipe/shaclpipe/jsonld"
	"github.com/shaclpipe/shaclpipe/mapping"
	"github.com/shaclpipe/shaclpipe/profile"
	"github.com/shaclpipe/shaclpipe/transform"
)

type benchmarkConfig struct {
	Shape     string
	ShapesDir string
	N         int
	Profile   profile.Config
}

func newBenchmarkCmd() *cobra.Command {
	cfg := &benchmarkConfig{}

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Time the map and build path over synthetic records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.Shape, "shape", "s", "", "shape name to benchmark")
	cmd.Flags().StringVar(&cfg.ShapesDir, "shapes-dir", "", "directory holding shape folders")
	cmd.Flags().IntVarP(&cfg.N, "records", "n", 100_000, "number of synthetic records")
	cfg.Profile.RegisterFlags(cmd.Flags())

	_ = cmd.MarkFlagRequired("shape")

	return cmd
}

func runBenchmark(cmd *cobra.Command, cfg *benchmarkConfig) error {
	def, err := newRegistry(cfg.ShapesDir).Load(cfg.Shape)
	if err != nil {
		return err
	}

	mapper := mapping.NewMapper(def.Mapping, transform.New())

	builder, err := jsonld.NewBuilder(def)
	if err != nil {
		return err
	}

	rows := syntheticRows(def.Mapping, cfg.N)

	profiler := cfg.Profile.NewProfiler()
	if err := profiler.Start(); err != nil {
		return err
	}

	start := time.Now()

	var built int

	for _, row := range rows {
		md, err := mapper.Map(row)
		if err != nil {
			continue
		}

		doc, err := builder.Build(md)
		if err != nil {
			continue
		}

		if _, err := jsonld.Marshal(doc); err != nil {
			continue
		}

		built++
	}

	elapsed := time.Since(start)

	if err := profiler.Stop(); err != nil {
		return err
	}

	perRecord := elapsed / time.Duration(max(built, 1))

	fmt.Fprintf(cmd.OutOrStdout(), "built %d/%d documents in %s (%.0f records/s, %s/record)\n",
		built, cfg.N, elapsed.Round(time.Millisecond),
		float64(built)/elapsed.Seconds(), perRecord)

	return nil
}

// syntheticRows fabricates plausible values per declared source column so a
// benchmark run exercises the full transform and coercion path.
func syntheticRows(cfg *mapping.Config, n int) []mapping.RawRecord {
	base := mapping.RawRecord{}

	if cfg.IDSource != "" {
		base[cfg.IDSource] = "100000001"
	}

	for _, prop := range cfg.Properties {
		for _, f := range prop.Plan.Fields {
			if f.Rule.Source == "" {
				continue
			}

			switch f.Rule.Datatype {
			case mapping.DatatypeDate:
				base[f.Rule.Source] = "2001-09-01"
			case mapping.DatatypeDateTime:
				base[f.Rule.Source] = "2001-09-01T00:00:00"
			case mapping.DatatypeInteger, mapping.DatatypeDecimal:
				base[f.Rule.Source] = "42"
			case mapping.DatatypeBoolean:
				base[f.Rule.Source] = "true"
			default:
				base[f.Rule.Source] = "Value"
			}
		}
	}

	rows := make([]mapping.RawRecord, n)

	for i := range rows {
		row := make(mapping.RawRecord, len(base)+1)
		for k, v := range base {
			row[k] = v
		}

		if cfg.IDSource != "" {
			row[cfg.IDSource] = strconv.Itoa(100000000 + i)
		}

		rows[i] = row
	}

	return rows
}
