package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/evmerge/internal/app/run"
	"github.com/John-Robertt/evmerge/internal/domain"
	"github.com/John-Robertt/evmerge/internal/stats"
)

func newStatsCmd(g *globalFlags) *cobra.Command {
	var last bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "统计现有存储的开催形式与主办方",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := loadConfig(g.cliArgs(cmd))
			if err != nil {
				return withCode(exitUsage, err)
			}

			var st domain.Stats
			if last {
				rr, ok, err := run.LastReport(eff)
				if err != nil {
					return withCode(exitStoreRead, err)
				}
				if !ok || rr.Stats == nil {
					return withCode(exitStoreRead, errors.New("没有可用的运行报告（先执行 evmerge run）"))
				}
				st = *rr.Stats
			} else {
				sum, exists, err := run.Summarize(context.Background(), eff)
				if err != nil {
					return withCode(exitStoreRead, err)
				}
				if !exists {
					return withCode(exitStoreRead, fmt.Errorf("存储 %q 不存在", eff.Store))
				}
				st = sum
			}

			out := cmd.OutOrStdout()
			if !isTerminal(out) {
				return writeJSON(out, st)
			}
			stats.Print(out, st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&last, "last", false, "读取最近一次 run 的 report.json，而不是重新统计存储")
	return cmd
}
