package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/evmerge/internal/config"
	"github.com/John-Robertt/evmerge/internal/infra/logx"
)

// globalFlags 是各子命令共享的持久参数。
type globalFlags struct {
	configPath string
	store      string
	sheet      string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "evmerge",
		Short:         "把活动导出文本合并进累积的活动表（xlsx / sqlite）",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "配置文件路径（默认读取 ./evmerge.yaml，若存在）")
	pf.StringVar(&g.store, "store", "", "存储文件（.xlsx / .db / .sqlite / .sqlite3）")
	pf.StringVar(&g.sheet, "sheet", "", "xlsx 工作表名（默认第一个工作表）")
	pf.StringVar(&g.logLevel, "log-level", "", "日志级别：error/warn/info/debug")
	pf.StringVar(&g.logFormat, "log-format", "", "日志格式：text/json")

	cmd.AddCommand(newRunCmd(g))
	cmd.AddCommand(newDedupLinesCmd())
	cmd.AddCommand(newStatsCmd(g))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}

// cliArgs 从持久参数构造 config.CLIArgs；是否显式指定以 Flags().Changed 为准。
func (g *globalFlags) cliArgs(cmd *cobra.Command) config.CLIArgs {
	f := cmd.Flags()
	return config.CLIArgs{
		ConfigPath:   g.configPath,
		Store:        g.store,
		StoreSet:     f.Changed("store"),
		Sheet:        g.sheet,
		SheetSet:     f.Changed("sheet"),
		LogLevel:     g.logLevel,
		LogLevelSet:  f.Changed("log-level"),
		LogFormat:    g.logFormat,
		LogFormatSet: f.Changed("log-format"),
	}
}

func loadConfig(cli config.CLIArgs) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, fmt.Errorf("读取当前目录失败：%w", err)
	}
	environ, err := config.Environ(cwd)
	if err != nil {
		return config.EffectiveConfig{}, err
	}
	return config.LoadEffective(cwd, environ, cli)
}

func newLogger(eff config.EffectiveConfig, w io.Writer) (*logrus.Logger, error) {
	log, err := logx.New(logx.Config{Level: eff.LogLevel, Format: eff.LogFormat, Out: w})
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	return log, nil
}
