package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, nil, CLIArgs{})
	require.NoError(t, err)

	assert.Equal(t, "", eff.ConfigFile)
	assert.Equal(t, []string{filepath.Join(cwd, DefaultInput)}, eff.Inputs)
	assert.Equal(t, filepath.Join(cwd, DefaultStore), eff.Store)
	assert.Equal(t, "utf-8", eff.InputEncoding)
	assert.False(t, eff.SortByDate)
	assert.True(t, eff.Ascending)
	assert.False(t, eff.DryRun)
	assert.Equal(t, 5, eff.TopOrganizers)
	assert.Equal(t, "イベント名", eff.Schema.EventName)
	assert.Equal(t, "info", eff.LogLevel)
	assert.Equal(t, "text", eff.LogFormat)
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, nil, CLIArgs{ConfigPath: "missing.yaml"})
	assert.Equal(t, ErrCodeNotFound, Code(err), "err=%v", err)

	_, err = LoadEffective(cwd, map[string]string{"EVMERGE_CONFIG": "missing.yaml"}, CLIArgs{})
	assert.Equal(t, ErrCodeNotFound, Code(err), "err=%v", err)
}

func TestLoadEffective_FileValuesRelativeToConfigDir(t *testing.T) {
	cwd := t.TempDir()
	confDir := filepath.Join(cwd, "conf")
	require.NoError(t, os.MkdirAll(confDir, 0o755))
	writeFile(t, filepath.Join(confDir, "evmerge.yaml"), []byte(`
inputs: [in/a.txt, in/b.txt]
store: data/events.db
table: archive
input_encoding: SJIS
sort_by_date: true
ascending: false
top_organizers: 3
columns:
  event_name: タイトル
  format: 形式
log:
  level: debug
  format: json
`))

	eff, err := LoadEffective(cwd, nil, CLIArgs{ConfigPath: "conf/evmerge.yaml"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(confDir, "evmerge.yaml"), eff.ConfigFile)
	assert.Equal(t, []string{filepath.Join(confDir, "in/a.txt"), filepath.Join(confDir, "in/b.txt")}, eff.Inputs)
	assert.Equal(t, filepath.Join(confDir, "data/events.db"), eff.Store)
	assert.Equal(t, "archive", eff.Table)
	assert.Equal(t, "shift_jis", eff.InputEncoding)
	assert.True(t, eff.SortByDate)
	assert.False(t, eff.Ascending)
	assert.Equal(t, 3, eff.TopOrganizers)
	assert.Equal(t, "タイトル", eff.Schema.EventName)
	assert.Equal(t, "形式", eff.Schema.Format)
	assert.Equal(t, "開催日時", eff.Schema.DateTime)
	assert.Equal(t, "debug", eff.LogLevel)
	assert.Equal(t, "json", eff.LogFormat)
}

func TestLoadEffective_Precedence(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, DefaultConfigName), []byte("store: file.xlsx\ndry_run: true\nsheet: FromFile\nsort_by_date: true\n"))

	// 仅配置文件
	eff, err := LoadEffective(cwd, nil, CLIArgs{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "file.xlsx"), eff.Store)
	assert.True(t, eff.DryRun)
	assert.Equal(t, "FromFile", eff.Sheet)

	// 环境变量覆盖配置文件
	environ := map[string]string{
		"EVMERGE_STORE":        "env.xlsx",
		"EVMERGE_DRY_RUN":      "false",
		"EVMERGE_SORT_BY_DATE": "false",
		"UNRELATED":            "x",
	}
	eff, err = LoadEffective(cwd, environ, CLIArgs{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "env.xlsx"), eff.Store)
	assert.False(t, eff.DryRun)
	assert.False(t, eff.SortByDate)
	assert.Equal(t, "FromFile", eff.Sheet, "未设置的环境变量不应覆盖")

	// CLI 覆盖环境变量（包括显式 false）
	eff, err = LoadEffective(cwd, environ, CLIArgs{
		Store: "cli.xlsx", StoreSet: true,
		DryRun: true, DryRunSet: true,
		Sheet: "FromCLI", SheetSet: true,
		Inputs: []string{"x.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "cli.xlsx"), eff.Store)
	assert.True(t, eff.DryRun)
	assert.Equal(t, "FromCLI", eff.Sheet)
	assert.Equal(t, []string{filepath.Join(cwd, "x.txt")}, eff.Inputs)

	eff, err = LoadEffective(cwd, nil, CLIArgs{DryRun: false, DryRunSet: true})
	require.NoError(t, err)
	assert.False(t, eff.DryRun, "--dry-run=false 必须能覆盖配置文件")
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		environ map[string]string
		cli     CLIArgs
	}{
		{name: "yaml 语法", file: "store: [\n"},
		{name: "编码", file: "input_encoding: latin1\n"},
		{name: "日志级别", cli: CLIArgs{LogLevel: "loud", LogLevelSet: true}},
		{name: "日志格式", environ: map[string]string{"EVMERGE_LOG_FORMAT": "xml"}},
		{name: "负数 top", file: "top_organizers: -1\n"},
		{name: "环境变量布尔", environ: map[string]string{"EVMERGE_DRY_RUN": "maybe"}},
		{name: "列名冲突", file: "columns:\n  datetime: イベント名\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cwd := t.TempDir()
			if tc.file != "" {
				writeFile(t, filepath.Join(cwd, DefaultConfigName), []byte(tc.file))
			}
			_, err := LoadEffective(cwd, tc.environ, tc.cli)
			assert.Equal(t, ErrCodeInvalid, Code(err), "err=%v", err)
		})
	}
}

func TestEnviron_DotEnv(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, ".env"), []byte("EVMERGE_STORE=dot.xlsx\nEVMERGE_SHEET=DotSheet\n"))
	writeFile(t, filepath.Join(cwd, ".env.local"), []byte("EVMERGE_SHEET=LocalSheet\n"))
	t.Setenv("EVMERGE_STORE", "process.xlsx")

	environ, err := Environ(cwd)
	require.NoError(t, err)
	assert.Equal(t, "process.xlsx", environ["EVMERGE_STORE"], "进程环境优先")
	assert.Equal(t, "LocalSheet", environ["EVMERGE_SHEET"])

	eff, err := LoadEffective(cwd, environ, CLIArgs{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "process.xlsx"), eff.Store)
	assert.Equal(t, "LocalSheet", eff.Sheet)
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
