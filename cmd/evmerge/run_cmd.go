package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/evmerge/internal/app/run"
	"github.com/John-Robertt/evmerge/internal/config"
	"github.com/John-Robertt/evmerge/internal/domain"
	"github.com/John-Robertt/evmerge/internal/infra/cache"
)

type runFlags struct {
	encoding   string
	sortByDate bool
	ascending  bool
	dryRun     bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [inputs...]",
		Short: "去重、解析输入并合并进存储（输入可以是文件或目录；默认 ./csv_data.txt）",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := g.cliArgs(cmd)
			cli.Inputs = args
			f := cmd.Flags()
			cli.InputEncoding, cli.InputEncodingSet = rf.encoding, f.Changed("encoding")
			cli.SortByDate, cli.SortByDateSet = rf.sortByDate, f.Changed("sort")
			cli.Ascending, cli.AscendingSet = rf.ascending, f.Changed("ascending")
			cli.DryRun, cli.DryRunSet = rf.dryRun, f.Changed("dry-run")
			return runMerge(cmd, cli)
		},
	}
	f := cmd.Flags()
	f.StringVar(&rf.encoding, "encoding", "", "输入编码：utf-8/shift_jis/euc-jp/auto（默认 utf-8）")
	f.BoolVar(&rf.sortByDate, "sort", false, "合并后按开催日时排序")
	f.BoolVar(&rf.ascending, "ascending", true, "排序方向；--ascending=false 为降序")
	f.BoolVar(&rf.dryRun, "dry-run", false, "只计算不落盘（不写存储、不写工作目录）")
	return cmd
}

func runMerge(cmd *cobra.Command, cli config.CLIArgs) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	eff, err := loadConfig(cli)
	if err != nil {
		emitReport(stdout, stderr, reportForConfigError(cli, err))
		return withCode(exitUsage, err)
	}
	log, err := newLogger(eff, stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	deps := run.Deps{Log: log}
	progressW, interactive := pickProgressWriter(stdout, stderr)
	if interactive {
		deps.Observer = newProgressUI(progressW)
	}

	rr := run.Execute(ctx, eff, deps)

	// 正常运行：写入 .evmerge/report.json；dry-run 禁止落盘。
	if !eff.DryRun {
		if _, err := run.WriteReport(eff, rr); err != nil {
			emitReport(stdout, stderr, rr)
			return fmt.Errorf("写入 report.json 失败：%w", err)
		}
	}

	emitReport(stdout, stderr, rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	if code := exitForCode(rr.ErrorCode); code != exitOK {
		return withCode(code, fmt.Errorf("%s: %s", rr.ErrorCode, rr.ErrorMsg))
	}
	return nil
}

func reportForConfigError(cli config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Inputs:     cli.Inputs,
		Store:      cli.Store,
		DryRun:     cli.DryRunSet && cli.DryRun,
		StartedAt:  now,
		FinishedAt: now,
	}
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr.Fail(code, err.Error())
	rr.Finalize()
	return rr
}

// emitLocations 在交互终端里补充产物位置，不影响 stdout 的 JSON 契约。
func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	if !eff.DryRun {
		fmt.Fprintf(w, "report: %s\n", cache.New(eff.Store, false).ReportPath())
	}
	fmt.Fprintf(w, "store: %s\n", eff.Store)
}
