// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/settings"
	"github.com/cockroachdb/optcost/pkg/sql/opt/optplan"
	"github.com/cockroachdb/optcost/pkg/sql/opt/xform"
	"github.com/cockroachdb/optcost/pkg/util/log"
	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	"github.com/spf13/cobra"
)

// loadSettings returns the setting values with the overrides of the given
// file applied. An empty path means no overrides.
func loadSettings(path string) (*settings.Values, error) {
	sv := settings.MakeValues()
	if path == "" {
		return sv, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading settings")
	}
	if err := sv.LoadYAML(data); err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return sv, nil
}

// buildPlan loads, builds and costs the plan of the given file.
func buildPlan(ctx context.Context, cfg *globalConfig, path string) (*optplan.Result, error) {
	sv, err := loadSettings(cfg.settingsFile)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading plan")
	}
	p, err := optplan.Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	res, err := optplan.Build(ctx, p, xform.MakeCostParams(sv))
	if err != nil {
		return nil, errors.Wrapf(err, "building %s", path)
	}
	if err := res.Cost(ctx); err != nil {
		return nil, errors.Wrapf(err, "costing %s", path)
	}
	log.Infof(ctx, "costed %d contexts of %s", len(res.Entries), path)
	return res, nil
}

// planLabel renders the operator of the entry indented by its depth.
func planLabel(e optplan.Entry) string {
	return fmt.Sprintf("%s%s#%d", strings.Repeat("  ", e.Depth), e.Context.Expr().Op(), e.Context.Expr().ID())
}

// status summarizes the outcome of the context.
func status(ctx context.Context, res *optplan.Result, cc *xform.CostContext) string {
	switch {
	case cc.State() != xform.CostContextCosted:
		return cc.State().String()
	case !cc.IsValid(ctx):
		return "invalid"
	case res.Optimizer.BestContext(cc.Expr().Group(), cc.Required()) == cc:
		return "best"
	}
	return "valid"
}

func makeCostCommand(cfg *globalConfig) *cobra.Command {
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		res, err := buildPlan(ctx, cfg, args[0])
		if err != nil {
			return err
		}
		header := []string{"plan", "request", "rows", "width", "size", "cost", "status"}
		rows := make([][]string, len(res.Entries))
		for i, e := range res.Entries {
			cc := e.Context
			stats := cc.Stats()
			r, w := stats.RowCount(), stats.Width(cc.Expr().Relational().OutputCols)
			rows[i] = []string{
				planLabel(e),
				strconv.Itoa(cc.Request()),
				humanize.Commaf(r),
				strconv.FormatFloat(w, 'g', -1, 64),
				humanize.IBytes(uint64(r * w)),
				cc.Cost().String(),
				status(ctx, res, cc),
			}
		}
		if err := render(cmd.OutOrStdout(), cfg.format, header, rows); err != nil {
			return err
		}
		if cfg.format == displayTable {
			fmt.Fprintf(cmd.OutOrStdout(), "total cost: %s\n", res.Root.Cost())
		}
		return nil
	}
	return &cobra.Command{
		Use:   "cost <plan.yaml>",
		Short: "Cost every expression of a plan.",
		Long: `Build the cost contexts of the plan and cost them bottom-up. The status
column tells whether the context delivers its required properties and whether
it is the best context of its group.`,
		Args: cobra.ExactArgs(1),
		RunE: runCmdFunc,
	}
}

func makePropsCommand(cfg *globalConfig) *cobra.Command {
	var showStats bool
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		res, err := buildPlan(ctx, cfg, args[0])
		if err != nil {
			return err
		}
		header := []string{"plan", "required", "derived", "enforcement", "valid"}
		rows := make([][]string, len(res.Entries))
		for i, e := range res.Entries {
			cc := e.Context
			rows[i] = []string{
				planLabel(e),
				cc.Required().String(),
				cc.Derived().String(),
				cc.Enforcement().String(),
				strconv.FormatBool(cc.IsValid(ctx)),
			}
		}
		if err := render(cmd.OutOrStdout(), cfg.format, header, rows); err != nil {
			return err
		}
		if showStats {
			for _, e := range res.Entries {
				pretty.Fprintf(cmd.OutOrStdout(), "%s: %# v\n", planLabel(e), e.Context.Stats())
			}
		}
		return nil
	}
	cmd := &cobra.Command{
		Use:   "props <plan.yaml>",
		Short: "Print the physical properties of every expression of a plan.",
		Long: `Print the properties required of every expression of the plan, the
properties it derives from its children and whether an enforcer is needed to
reconcile them.`,
		Args: cobra.ExactArgs(1),
		RunE: runCmdFunc,
	}
	cmd.Flags().BoolVar(&showStats, "stats", false, "also dump the statistics of every expression")
	return cmd
}
